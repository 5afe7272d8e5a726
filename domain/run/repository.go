package run

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/logger"
	"github.com/agentcp/controlplane/pkg/pgutils"
)

// Repository handles database operations for runs, messages, and tool call
// logs.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new run repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("run.repo"))}
}

// CreateRun inserts a new run with the status it is given.
func (r *Repository) CreateRun(ctx context.Context, run *Run) error {
	_, err := r.db.NewInsert().Model(run).Returning("*").Exec(ctx)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return apperror.ErrConflict.WithMessage("run already exists")
		}
		r.log.Error("failed to create run", logger.Error(err), slog.String("id", run.ID))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetRun returns a run by id, scoped to its cluster.
func (r *Repository) GetRun(ctx context.Context, clusterID, id string) (*Run, error) {
	var run Run
	err := r.db.NewSelect().
		Model(&run).
		Where("id = ? AND cluster_id = ?", id, clusterID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NewNotFound("run", id)
		}
		r.log.Error("failed to get run", logger.Error(err), slog.String("id", id))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &run, nil
}

// UpdateRun persists a run's mutable fields: status, failure reason, result,
// feedback, and updatedAt.
func (r *Repository) UpdateRun(ctx context.Context, run *Run) error {
	_, err := r.db.NewUpdate().
		Model(run).
		Column("status", "failure_reason", "result", "feedback_score", "feedback_comment", "updated_at").
		Where("id = ? AND cluster_id = ?", run.ID, run.ClusterID).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to update run", logger.Error(err), slog.String("id", run.ID))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// AppendMessage inserts a new message on the run's append-only log.
func (r *Repository) AppendMessage(ctx context.Context, msg *Message) error {
	_, err := r.db.NewInsert().Model(msg).Exec(ctx)
	if err != nil {
		r.log.Error("failed to append message", logger.Error(err), slog.String("runId", msg.RunID))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// ListMessages returns messages for a run created after the given cursor id
// (exclusive), ordered oldest-first, for GET .../messages?after=.
func (r *Repository) ListMessages(ctx context.Context, clusterID, runID, after string, limit int) ([]Message, error) {
	q := r.db.NewSelect().
		Model((*Message)(nil)).
		Where("run_id = ? AND cluster_id = ?", runID, clusterID).
		OrderExpr("id ASC")
	if after != "" {
		q = q.Where("id > ?", after)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []Message
	if err := q.Scan(ctx, &msgs); err != nil {
		r.log.Error("failed to list messages", logger.Error(err), slog.String("runId", runID))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return msgs, nil
}

// LastMessages returns up to n most recent messages for a run, oldest-first —
// used by the cycle guard to inspect the tail of the conversation.
func (r *Repository) LastMessages(ctx context.Context, runID string, n int) ([]Message, error) {
	var msgs []Message
	err := r.db.NewSelect().
		Model(&msgs).
		Where("run_id = ?", runID).
		OrderExpr("id DESC").
		Limit(n).
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to load last messages", logger.Error(err), slog.String("runId", runID))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CountMessages returns the total number of messages on a run, used by the
// cycle guard's message-count ceiling.
func (r *Repository) CountMessages(ctx context.Context, runID string) (int, error) {
	n, err := r.db.NewSelect().Model((*Message)(nil)).Where("run_id = ?", runID).Count(ctx)
	if err != nil {
		r.log.Error("failed to count messages", logger.Error(err), slog.String("runId", runID))
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return n, nil
}

// PendingToolJobsCount returns how many jobs dispatched for this run are
// still not terminal — used by the post-start edge to decide whether the
// engine must wait on outstanding tool calls before advancing to MODEL.
func (r *Repository) PendingToolJobsCount(ctx context.Context, clusterID, runID string) (int, error) {
	n, err := r.db.NewRaw(`
		SELECT count(*) FROM cp.jobs
		WHERE cluster_id = ? AND run_id = ? AND status IN ('pending', 'running', 'interrupted')`,
		clusterID, runID,
	).Count(ctx)
	if err != nil {
		r.log.Error("failed to count pending tool jobs", logger.Error(err), slog.String("runId", runID))
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return n, nil
}

// LogToolCall records the start of a dispatched invocation in the audit
// trail.
func (r *Repository) LogToolCall(ctx context.Context, log *ToolCallLog) error {
	_, err := r.db.NewInsert().Model(log).Exec(ctx)
	if err != nil {
		r.log.Error("failed to log tool call", logger.Error(err), slog.String("invocationId", log.InvocationID))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// CompleteToolCall marks a previously logged invocation as finished.
func (r *Repository) CompleteToolCall(ctx context.Context, invocationID, resultType string) error {
	_, err := r.db.NewUpdate().
		Model((*ToolCallLog)(nil)).
		Set("completed_at = now()").
		Set("result_type = ?", resultType).
		Where("invocation_id = ?", invocationID).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to complete tool call log", logger.Error(err), slog.String("invocationId", invocationID))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// ListToolCalls returns the audit trail for a run, oldest-first.
func (r *Repository) ListToolCalls(ctx context.Context, runID string) ([]ToolCallLog, error) {
	var logs []ToolCallLog
	err := r.db.NewSelect().
		Model(&logs).
		Where("run_id = ?", runID).
		OrderExpr("started_at ASC").
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to list tool calls", logger.Error(err), slog.String("runId", runID))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return logs, nil
}
