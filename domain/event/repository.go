package event

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/logger"
)

// Repository handles database operations for the event audit log.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new event repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("event.repo"))}
}

// Append inserts a new event row. Assigns an id if the caller left one unset.
func (r *Repository) Append(ctx context.Context, ev *Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if _, err := r.db.NewInsert().Model(ev).Exec(ctx); err != nil {
		r.log.Error("failed to append event", logger.Error(err), slog.String("type", ev.Type))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// List scans a cluster's events newest-first, applying filter's optional
// predicates. Grounded on domain/job.Repository's range-scan query shape
// (cluster_id, status, targetFn, created_at), generalized to events'
// additional jobId/machineId/runId/type dimensions.
func (r *Repository) List(ctx context.Context, clusterID string, filter ListFilter) ([]Event, error) {
	q := r.db.NewSelect().
		Model((*Event)(nil)).
		Where("cluster_id = ?", clusterID)

	if filter.JobID != "" {
		q = q.Where("job_id = ?", filter.JobID)
	}
	if filter.MachineID != "" {
		q = q.Where("machine_id = ?", filter.MachineID)
	}
	if filter.RunID != "" {
		q = q.Where("run_id = ?", filter.RunID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.TargetFn != "" {
		q = q.Where("target_fn = ?", filter.TargetFn)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if !filter.Before.IsZero() {
		q = q.Where("created_at < ?", filter.Before)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var events []Event
	if err := q.Order("created_at DESC", "id DESC").Limit(limit).Scan(ctx, &events); err != nil {
		r.log.Error("failed to list events", logger.Error(err), slog.String("clusterId", clusterID))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return events, nil
}
