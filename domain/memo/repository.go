package memo

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/logger"
)

// Repository handles database operations for MemoKV cells.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new memo repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("memo.repo"))}
}

// Get returns the cell at key, or (nil, nil) if it doesn't exist yet —
// grounded on domain/job.Repository.FindByCacheKey's no-error-on-miss shape.
func (r *Repository) Get(ctx context.Context, clusterID, key string) (*Cell, error) {
	var c Cell
	err := r.db.NewSelect().
		Model(&c).
		Where("cluster_id = ? AND key = ?", clusterID, key).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.log.Error("failed to get memo cell", logger.Error(err), slog.String("key", key))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &c, nil
}

// Upsert writes value at key under the requested conflict policy and
// returns the cell as it now reads: on OnConflictDoNothing, if another
// writer already holds the key, the pre-existing value is returned rather
// than the one just offered.
func (r *Repository) Upsert(ctx context.Context, clusterID, key string, value []byte, onConflict string) (*Cell, error) {
	c := &Cell{ClusterID: clusterID, Key: key, Value: value}

	q := r.db.NewInsert().Model(c)
	if onConflict == OnConflictDoNothing {
		q = q.On("CONFLICT (cluster_id, key) DO NOTHING")
	} else {
		q = q.On("CONFLICT (cluster_id, key) DO UPDATE").Set("value = EXCLUDED.value")
	}

	if _, err := q.Returning("*").Exec(ctx); err != nil {
		r.log.Error("failed to upsert memo cell", logger.Error(err), slog.String("key", key))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	// DO NOTHING with an existing row returns zero rows; bun leaves the
	// model's DB-defaulted fields (CreatedAt) unpopulated in that case.
	if c.CreatedAt.IsZero() {
		existing, err := r.Get(ctx, clusterID, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	return c, nil
}
