package workflow

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/logger"
)

// Repository handles database operations for workflow executions.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new workflow repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("workflow.repo"))}
}

// TryClaim inserts the execution row for (clusterID, name, executionID) if
// none exists yet. won=false means another caller already owns this
// execution; the caller should look up its job rather than start a new one.
func (r *Repository) TryClaim(ctx context.Context, clusterID, name string, version int, executionID, jobID string) (won bool, err error) {
	res, err := r.db.NewInsert().
		Model(&Execution{ClusterID: clusterID, Name: name, Version: version, ExecutionID: executionID, JobID: jobID}).
		On("CONFLICT (cluster_id, name, execution_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to claim workflow execution", logger.Error(err), slog.String("name", name), slog.String("executionId", executionID))
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Get returns the execution row for (clusterID, name, executionID), or
// (nil, nil) if it doesn't exist.
func (r *Repository) Get(ctx context.Context, clusterID, name, executionID string) (*Execution, error) {
	var e Execution
	err := r.db.NewSelect().
		Model(&e).
		Where("cluster_id = ? AND name = ? AND execution_id = ?", clusterID, name, executionID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &e, nil
}

// GetByExecutionID looks up an execution by id alone, scoped to a cluster.
// Used by the status-change dispatcher's workflow delivery variant, whose
// payload carries only {executionId} and not the workflow's name.
func (r *Repository) GetByExecutionID(ctx context.Context, clusterID, executionID string) (*Execution, error) {
	var e Execution
	err := r.db.NewSelect().
		Model(&e).
		Where("cluster_id = ? AND execution_id = ?", clusterID, executionID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &e, nil
}
