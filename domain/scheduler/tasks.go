package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/uptrace/bun"

	"github.com/agentcp/controlplane/pkg/logger"
)

// OutboxRetentionTask purges delivered status-change outbox rows past their
// retention window, keeping cp.status_change_outbox from growing unbounded.
type OutboxRetentionTask struct {
	db               *bun.DB
	log              *slog.Logger
	retentionMinutes int
	mu               sync.RWMutex
}

// NewOutboxRetentionTask creates a new outbox retention task
func NewOutboxRetentionTask(db *bun.DB, log *slog.Logger, retentionMinutes int) *OutboxRetentionTask {
	if retentionMinutes <= 0 {
		retentionMinutes = 10080
	}
	return &OutboxRetentionTask{
		db:               db,
		log:              log.With(logger.Scope("scheduler.outbox_retention")),
		retentionMinutes: retentionMinutes,
	}
}

// SetRetentionMinutes updates the retention window at runtime.
func (t *OutboxRetentionTask) SetRetentionMinutes(minutes int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retentionMinutes = minutes
}

// GetRetentionMinutes returns the current retention window.
func (t *OutboxRetentionTask) GetRetentionMinutes() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.retentionMinutes
}

// Run purges delivered outbox rows older than the retention window.
func (t *OutboxRetentionTask) Run(ctx context.Context) error {
	start := time.Now()
	t.log.Debug("purging delivered status-change outbox rows")

	t.mu.RLock()
	retentionMinutes := t.retentionMinutes
	t.mu.RUnlock()

	cutoff := time.Now().Add(-time.Duration(retentionMinutes) * time.Minute)

	result, err := t.db.ExecContext(ctx, `
		DELETE FROM cp.status_change_outbox
		WHERE delivered_at IS NOT NULL AND delivered_at < ?
	`, cutoff)
	if err != nil {
		t.log.Error("failed to purge delivered outbox rows", logger.Error(err))
		return err
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		t.log.Info("purged delivered outbox rows",
			slog.Int64("count", rowsAffected),
			slog.Duration("duration", time.Since(start)))
	} else {
		t.log.Debug("no delivered outbox rows to purge", slog.Duration("duration", time.Since(start)))
	}

	return nil
}

// StaleMachineSweepTask marks machines whose last ping has expired inactive.
// CallableTools does not read machine status; it filters tools by their own
// last ping time.
type StaleMachineSweepTask struct {
	db           *bun.DB
	log          *slog.Logger
	staleMinutes int
	mu           sync.RWMutex
}

// NewStaleMachineSweepTask creates a new stale machine sweep task
func NewStaleMachineSweepTask(db *bun.DB, log *slog.Logger, staleMinutes int) *StaleMachineSweepTask {
	if staleMinutes <= 0 {
		staleMinutes = 5
	}
	return &StaleMachineSweepTask{
		db:           db,
		log:          log.With(logger.Scope("scheduler.stale_machine_sweep")),
		staleMinutes: staleMinutes,
	}
}

// SetStaleMinutes updates the stale threshold at runtime.
func (t *StaleMachineSweepTask) SetStaleMinutes(minutes int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.staleMinutes = minutes
}

// GetStaleMinutes returns the current stale threshold.
func (t *StaleMachineSweepTask) GetStaleMinutes() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.staleMinutes
}

// Run marks machines that haven't pinged within the stale window inactive.
func (t *StaleMachineSweepTask) Run(ctx context.Context) error {
	start := time.Now()
	t.log.Debug("sweeping stale machines")

	t.mu.RLock()
	staleMinutes := t.staleMinutes
	t.mu.RUnlock()

	cutoff := time.Now().Add(-time.Duration(staleMinutes) * time.Minute)

	result, err := t.db.ExecContext(ctx, `
		UPDATE cp.machines
		SET status = 'inactive'
		WHERE status = 'active' AND last_ping_at < ?
	`, cutoff)
	if err != nil {
		t.log.Error("failed to sweep stale machines", logger.Error(err))
		return err
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		t.log.Info("marked machines inactive",
			slog.Int64("count", rowsAffected),
			slog.Duration("duration", time.Since(start)))
	} else {
		t.log.Debug("no stale machines to sweep", slog.Duration("duration", time.Since(start)))
	}

	return nil
}
