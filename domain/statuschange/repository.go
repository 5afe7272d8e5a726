package statuschange

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/logger"
)

// claimLease is how far ClaimPending pushes next_attempt_at forward while an
// entry is out for delivery — a short processing lease, not a hard
// guarantee; a crash mid-delivery just means the entry becomes due again.
const claimLease = 30 * time.Second

// Repository handles database operations for the status-change outbox.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new status-change repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("statuschange.repo"))}
}

// Enqueue records a pending delivery, due immediately.
func (r *Repository) Enqueue(ctx context.Context, clusterID, runID string, payload []byte) error {
	entry := &OutboxEntry{
		ClusterID:     clusterID,
		RunID:         runID,
		NextAttemptAt: time.Now(),
		Payload:       payload,
	}
	if _, err := r.db.NewInsert().Model(entry).Exec(ctx); err != nil {
		r.log.Error("failed to enqueue status-change delivery", logger.Error(err), slog.String("runId", runID))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// ClaimPending atomically selects up to limit due, undelivered entries and
// pushes their next_attempt_at forward by claimLease, so a concurrent poll
// (or a crashed prior attempt) doesn't redeliver the same entry mid-flight.
// Grounded on domain/job.Repository.Claim's FOR UPDATE SKIP LOCKED CTE.
func (r *Repository) ClaimPending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	var entries []OutboxEntry
	err := r.db.NewRaw(`
		WITH candidates AS (
			SELECT id
			FROM cp.status_change_outbox
			WHERE delivered_at IS NULL AND next_attempt_at <= now()
			ORDER BY next_attempt_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT ?
		)
		UPDATE cp.status_change_outbox o
		SET next_attempt_at = now() + make_interval(secs => ?)
		FROM candidates
		WHERE o.id = candidates.id
		RETURNING o.*`,
		limit, claimLease.Seconds(),
	).Scan(ctx, &entries)
	if err != nil {
		r.log.Error("failed to claim pending status-change deliveries", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return entries, nil
}

// MarkDelivered finalizes a delivery (success, or a terminally dropped
// entry — see Dispatcher.retryOrGiveUp).
func (r *Repository) MarkDelivered(ctx context.Context, id int64) error {
	_, err := r.db.NewUpdate().
		Model((*OutboxEntry)(nil)).
		Set("delivered_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// MarkRetry bumps attempts and schedules the next attempt at next.
func (r *Repository) MarkRetry(ctx context.Context, id int64, next time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*OutboxEntry)(nil)).
		Set("attempts = attempts + 1").
		Set("next_attempt_at = ?", next).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}
