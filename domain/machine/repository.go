package machine

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/logger"
)

// Repository handles database operations for machines and tools.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new machine repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("machine.repo"))}
}

// GetMachinePing returns the last ping time for a machine, or the zero time
// if the machine has never registered, so the caller can decide whether this
// poll falls within the throttle window.
func (r *Repository) GetMachinePing(ctx context.Context, clusterID, machineID string) (time.Time, error) {
	var m Machine
	err := r.db.NewSelect().
		Model(&m).
		Column("last_ping_at").
		Where("cluster_id = ? AND id = ?", clusterID, machineID).
		Scan(ctx)
	if err != nil {
		return time.Time{}, nil
	}
	return m.LastPingAt, nil
}

// UpsertMachine inserts or updates a machine's heartbeat row.
func (r *Repository) UpsertMachine(ctx context.Context, m *Machine) error {
	_, err := r.db.NewInsert().
		Model(m).
		On("CONFLICT (cluster_id, id) DO UPDATE").
		Set("last_ping_at = EXCLUDED.last_ping_at").
		Set("ip = EXCLUDED.ip").
		Set("sdk_version = EXCLUDED.sdk_version").
		Set("sdk_language = EXCLUDED.sdk_language").
		Set("status = EXCLUDED.status").
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to upsert machine", logger.Error(err), slog.String("clusterId", m.ClusterID), slog.String("machineId", m.ID))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// UpsertTool inserts or refreshes a machine-registered tool's declaration and
// liveness ping. Tool config/schema/description are refreshed on every
// registration so a machine's latest declaration always wins.
func (r *Repository) UpsertTool(ctx context.Context, t *Tool) error {
	_, err := r.db.NewInsert().
		Model(t).
		On("CONFLICT (cluster_id, name) DO UPDATE").
		Set("description = EXCLUDED.description").
		Set("schema = EXCLUDED.schema").
		Set("config = EXCLUDED.config").
		Set("should_expire = EXCLUDED.should_expire").
		Set("last_ping_at = EXCLUDED.last_ping_at").
		Set("owner_machine_id = EXCLUDED.owner_machine_id").
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to upsert tool", logger.Error(err), slog.String("clusterId", t.ClusterID), slog.String("name", t.Name))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetTool returns a tool declaration by (clusterId, name).
func (r *Repository) GetTool(ctx context.Context, clusterID, name string) (*Tool, error) {
	var t Tool
	err := r.db.NewSelect().
		Model(&t).
		Where("cluster_id = ? AND name = ?", clusterID, name).
		Scan(ctx)
	if err != nil {
		return nil, apperror.NewNotFound("tool", name)
	}
	return &t, nil
}

// ListLiveTools returns every tool in the cluster that is callable right
// now: non-expiring declarations, or expiring ones pinged within window.
func (r *Repository) ListLiveTools(ctx context.Context, clusterID string, names []string, window time.Duration) ([]Tool, error) {
	var tools []Tool
	q := r.db.NewSelect().
		Model(&tools).
		Where("cluster_id = ?", clusterID).
		Where("(should_expire = false OR last_ping_at > ?)", time.Now().Add(-window))
	if len(names) > 0 {
		q = q.Where("name IN (?)", bun.In(names))
	}
	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to list live tools", logger.Error(err), slog.String("clusterId", clusterID))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return tools, nil
}

// ListMachines returns all machines in a cluster.
func (r *Repository) ListMachines(ctx context.Context, clusterID string) ([]Machine, error) {
	var machines []Machine
	err := r.db.NewSelect().
		Model(&machines).
		Where("cluster_id = ?", clusterID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to list machines", logger.Error(err), slog.String("clusterId", clusterID))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return machines, nil
}
