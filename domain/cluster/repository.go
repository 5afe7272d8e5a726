package cluster

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/logger"
	"github.com/agentcp/controlplane/pkg/pgutils"
)

// Repository handles database operations for clusters.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new cluster repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("cluster.repo"))}
}

// Create inserts a cluster. apiKeyHash is precomputed by the service.
func (r *Repository) Create(ctx context.Context, c *Cluster) error {
	_, err := r.db.NewInsert().Model(c).Returning("*").Exec(ctx)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return apperror.ErrConflict.WithMessage("cluster already exists")
		}
		r.log.Error("failed to create cluster", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetByID returns a cluster by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*Cluster, error) {
	var c Cluster
	err := r.db.NewSelect().Model(&c).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NewNotFound("cluster", id)
		}
		r.log.Error("failed to get cluster", logger.Error(err), slog.String("id", id))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &c, nil
}

// List returns all clusters ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]Cluster, error) {
	var clusters []Cluster
	err := r.db.NewSelect().Model(&clusters).Order("created_at DESC").Scan(ctx)
	if err != nil {
		r.log.Error("failed to list clusters", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return clusters, nil
}
