package machine

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/logger"
)

// LivenessWindow is the tool/machine liveness window: a tool or machine is
// live if it was pinged within this duration of now.
const LivenessWindow = 60 * time.Second

// Service implements machine registration and tool-registry business logic.
type Service struct {
	repo     *Repository
	log      *slog.Logger
	throttle time.Duration
	liveness time.Duration
}

// NewService creates a new machine service. throttle bounds how often a
// machine's own heartbeat row is rewritten; liveness bounds how long a
// ping keeps an expiring tool callable.
func NewService(repo *Repository, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		log:      log.With(logger.Scope("machine.svc")),
		throttle: LivenessWindow,
		liveness: LivenessWindow,
	}
}

// Register upserts a machine's heartbeat (throttled) and refreshes every
// tool it declares as live.
func (s *Service) Register(ctx context.Context, clusterID string, req RegisterRequest) error {
	if req.ID == "" {
		return apperror.ErrBadRequest.WithMessage("machine id is required")
	}

	now := time.Now()
	lastPing, err := s.repo.GetMachinePing(ctx, clusterID, req.ID)
	if err != nil {
		return err
	}

	if lastPing.IsZero() || now.Sub(lastPing) >= s.throttle {
		m := &Machine{
			ClusterID:   clusterID,
			ID:          req.ID,
			LastPingAt:  now,
			IP:          req.IP,
			SDKVersion:  req.SDKVersion,
			SDKLanguage: req.SDKLanguage,
			Status:      StatusActive,
		}
		if err := s.repo.UpsertMachine(ctx, m); err != nil {
			return err
		}
	}

	for _, decl := range req.Tools {
		if decl.Name == "" {
			return apperror.ErrBadRequest.WithMessage("tool name is required")
		}
		if len(decl.Name) > 30 {
			return apperror.ErrBadRequest.WithMessage("tool name must be at most 30 characters")
		}

		t := &Tool{
			ClusterID:      clusterID,
			Name:           decl.Name,
			Description:    decl.Description,
			Schema:         decl.Schema,
			Config:         decl.Config,
			ShouldExpire:   true,
			LastPingAt:     &now,
			OwnerMachineID: req.ID,
		}
		if err := s.repo.UpsertTool(ctx, t); err != nil {
			return err
		}
	}

	s.log.Info("machine registered", slog.String("clusterId", clusterID), slog.String("machineId", req.ID), slog.Int("tools", len(req.Tools)))
	return nil
}

// CallableTools returns the tools in names (or all tools if names is empty)
// that are currently callable: non-expiring, or pinged within the liveness
// window.
func (s *Service) CallableTools(ctx context.Context, clusterID string, names []string) ([]Tool, error) {
	return s.repo.ListLiveTools(ctx, clusterID, names, s.liveness)
}

// List returns all machines registered in a cluster.
func (s *Service) List(ctx context.Context, clusterID string) ([]Machine, error) {
	return s.repo.ListMachines(ctx, clusterID)
}
