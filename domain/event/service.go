package event

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/agentcp/controlplane/pkg/logger"
)

// Service appends and queries the cluster event audit log.
type Service struct {
	repo *Repository
	log  *slog.Logger
}

// NewService creates a new event service.
func NewService(repo *Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log.With(logger.Scope("event.svc"))}
}

// EmitOptions carries the optional correlating ids and payload for Emit.
type EmitOptions struct {
	JobID     string
	MachineID string
	RunID     string
	TargetFn  string
	Status    string
	Payload   json.RawMessage
}

// Emit appends one audit event. Failures are logged and swallowed: a
// missed audit row must never fail the job/run transition that produced
// it, matching how domain/job.notifyRun treats its own side effects as
// best-effort.
func (s *Service) Emit(ctx context.Context, clusterID, eventType string, opts EmitOptions) {
	ev := buildEvent(clusterID, eventType, opts)

	if err := s.repo.Append(ctx, ev); err != nil {
		s.log.Error("failed to emit event", logger.Error(err), slog.String("type", eventType), slog.String("clusterId", clusterID))
	}
}

// buildEvent maps EmitOptions' empty-string-means-absent fields onto Event's
// pointer columns, so optional correlating ids are stored as SQL NULL rather
// than empty strings.
func buildEvent(clusterID, eventType string, opts EmitOptions) *Event {
	ev := &Event{
		ClusterID: clusterID,
		Type:      eventType,
		Payload:   opts.Payload,
	}
	if opts.JobID != "" {
		ev.JobID = &opts.JobID
	}
	if opts.MachineID != "" {
		ev.MachineID = &opts.MachineID
	}
	if opts.RunID != "" {
		ev.RunID = &opts.RunID
	}
	if opts.TargetFn != "" {
		ev.TargetFn = &opts.TargetFn
	}
	if opts.Status != "" {
		ev.Status = &opts.Status
	}
	return ev
}

// List returns a cluster's events matching filter, newest first.
func (s *Service) List(ctx context.Context, clusterID string, filter ListFilter) ([]Event, error) {
	return s.repo.List(ctx, clusterID, filter)
}
