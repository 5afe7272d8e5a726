package job

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/logger"
)

// Repository handles database operations for jobs.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new job repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("job.repo"))}
}

// Create inserts a new job in pending status.
func (r *Repository) Create(ctx context.Context, j *Job) error {
	_, err := r.db.NewInsert().Model(j).Returning("*").Exec(ctx)
	if err != nil {
		r.log.Error("failed to create job", logger.Error(err), slog.String("targetFn", j.TargetFn))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// FindByCacheKey returns the most recent non-expired successful job with the
// given cache key, or nil if none exists.
func (r *Repository) FindByCacheKey(ctx context.Context, clusterID, cacheKey string, ttl time.Duration) (*Job, error) {
	var j Job
	err := r.db.NewSelect().
		Model(&j).
		Where("cluster_id = ?", clusterID).
		Where("cache_key = ?", cacheKey).
		Where("status = ?", StatusSuccess).
		Where("created_at > ?", time.Now().Add(-ttl)).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.log.Error("failed to look up cache key", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &j, nil
}

// GetByID returns a job by id, scoped to its cluster.
func (r *Repository) GetByID(ctx context.Context, clusterID, id string) (*Job, error) {
	var j Job
	err := r.db.NewSelect().
		Model(&j).
		Where("id = ? AND cluster_id = ?", id, clusterID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NewNotFound("job", id)
		}
		r.log.Error("failed to get job", logger.Error(err), slog.String("id", id))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &j, nil
}

// Claim atomically selects up to limit pending jobs whose targetFn is in
// tools and which this machine may execute (public tools, or private tools
// it owns), marks them running, and bumps attempts/lease. Grounded on
// internal/jobs.Queue.Dequeue's FOR UPDATE SKIP LOCKED CTE pattern,
// extended with the tool-ownership join and per-job lease duration.
func (r *Repository) Claim(ctx context.Context, clusterID, machineID string, tools []string, limit int) ([]Job, error) {
	if len(tools) == 0 || limit <= 0 {
		return nil, nil
	}

	var jobs []Job
	err := r.db.NewRaw(`
		WITH candidates AS (
			SELECT j.id
			FROM cp.jobs j
			JOIN cp.tools t ON t.cluster_id = j.cluster_id AND t.name = j.target_fn
			WHERE j.cluster_id = ?
			  AND j.status = 'pending'
			  AND j.target_fn IN (?)
			  AND (
			        COALESCE((t.config->>'private')::boolean, false) = false
			     OR t.owner_machine_id = ?
			  )
			ORDER BY j.created_at ASC
			FOR UPDATE OF j SKIP LOCKED
			LIMIT ?
		)
		UPDATE cp.jobs j
		SET status = 'running',
		    executing_machine_id = ?,
		    attempts = j.attempts + 1,
		    lease_expires_at = now() + make_interval(secs => GREATEST(j.timeout_seconds, ?))
		FROM candidates
		WHERE j.id = candidates.id
		RETURNING j.*`,
		clusterID, bun.In(tools), machineID, limit, machineID, DefaultTimeoutSeconds,
	).Scan(ctx, &jobs)
	if err != nil {
		r.log.Error("failed to claim jobs", logger.Error(err), slog.String("clusterId", clusterID))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return jobs, nil
}

// SubmitResult applies a worker's result, valid only if the job is running
// and the caller holds the lease. Returns apperror.ErrConflict otherwise —
// the caller must not overwrite state it no longer owns.
func (r *Repository) SubmitResult(ctx context.Context, clusterID, id, machineID string, terminalStatus string, resultType string, result []byte, approvalRequested bool) (*Job, error) {
	var j Job
	err := r.db.NewRaw(`
		UPDATE cp.jobs
		SET status = ?,
		    result_type = ?,
		    result = ?,
		    approval_requested = ?
		WHERE id = ? AND cluster_id = ? AND status = 'running' AND executing_machine_id = ?
		RETURNING *`,
		terminalStatus, resultType, result, approvalRequested, id, clusterID, machineID,
	).Scan(ctx, &j)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.ErrConflict.WithMessage("job is not running under this machine's lease")
		}
		r.log.Error("failed to submit job result", logger.Error(err), slog.String("id", id))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &j, nil
}

// Approve records an approval decision on an interrupted job. Reject ⇒
// terminal failure; approve ⇒ back to pending with attempts preserved.
func (r *Repository) Approve(ctx context.Context, clusterID, id string, approved bool) (*Job, error) {
	var j Job
	if approved {
		err := r.db.NewRaw(`
			UPDATE cp.jobs
			SET status = 'pending', approved = true, approval_requested = false
			WHERE id = ? AND cluster_id = ? AND status = 'interrupted' AND approval_requested = true
			RETURNING *`, id, clusterID).Scan(ctx, &j)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, apperror.ErrConflict.WithMessage("job is not awaiting approval")
			}
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		return &j, nil
	}

	err := r.db.NewRaw(`
		UPDATE cp.jobs
		SET status = 'failure', approved = false, approval_requested = false,
		    result_type = 'rejection'
		WHERE id = ? AND cluster_id = ? AND status = 'interrupted' AND approval_requested = true
		RETURNING *`, id, clusterID).Scan(ctx, &j)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.ErrConflict.WithMessage("job is not awaiting approval")
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &j, nil
}

// Reopen transitions an interrupted job with no pending approval back to
// running under machineID's lease, mirroring Approve's shape. Used by the
// workflow engine to re-enter a handler that previously paused on
// WorkflowPausable: the job never left its own engine-held lease, so this is
// scoped to machineID rather than any caller.
func (r *Repository) Reopen(ctx context.Context, clusterID, id, machineID string) (*Job, error) {
	var j Job
	err := r.db.NewRaw(`
		UPDATE cp.jobs
		SET status = 'running', result_type = NULL, result = NULL
		WHERE id = ? AND cluster_id = ? AND status = 'interrupted'
		  AND executing_machine_id = ? AND approval_requested = false
		RETURNING *`, id, clusterID, machineID).Scan(ctx, &j)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.ErrConflict.WithMessage("job is not an engine-held interrupted job")
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &j, nil
}

// ReclaimExpired moves jobs whose lease has expired while running back to
// pending (if retries remain) or to terminal failure/stalled otherwise.
// Used by the stall-reaper background loop.
func (r *Repository) ReclaimExpired(ctx context.Context) (retried []Job, stalled []Job, err error) {
	var retriedRows []Job
	err = r.db.NewRaw(`
		UPDATE cp.jobs
		SET status = 'pending', executing_machine_id = NULL, lease_expires_at = NULL
		WHERE status = 'running' AND lease_expires_at < now() AND attempts < max_attempts
		RETURNING *`).Scan(ctx, &retriedRows)
	if err != nil {
		return nil, nil, apperror.ErrDatabase.WithInternal(err)
	}

	var stalledRows []Job
	err = r.db.NewRaw(`
		UPDATE cp.jobs
		SET status = 'failure', result_type = 'rejection',
		    result = '{"reason":"stalled"}'::jsonb,
		    executing_machine_id = NULL, lease_expires_at = NULL
		WHERE status = 'running' AND lease_expires_at < now() AND attempts >= max_attempts
		RETURNING *`).Scan(ctx, &stalledRows)
	if err != nil {
		return retriedRows, nil, apperror.ErrDatabase.WithInternal(err)
	}

	return retriedRows, stalledRows, nil
}
