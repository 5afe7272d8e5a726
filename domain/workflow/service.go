package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentcp/controlplane/domain/job"
	"github.com/agentcp/controlplane/domain/memo"
	"github.com/agentcp/controlplane/domain/run"
	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/logger"
)

type registryKey struct {
	name    string
	version int
}

// Service implements the workflow engine: registration of handlers,
// idempotent execution creation, and re-entry on status-change re-trigger.
// Workflow jobs run in-process — there is no separate worker that claims
// them — so Service talks to job.Repository directly rather than through
// job.Service's tool-registration/claim protocol.
type Service struct {
	repo *Repository
	jobs *job.Repository
	memo *memo.Service
	runs *run.Service
	log  *slog.Logger

	mu       sync.RWMutex
	registry map[registryKey]Handler
}

// NewService creates a new workflow service.
func NewService(repo *Repository, jobs *job.Repository, memoSvc *memo.Service, runs *run.Service, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		jobs:     jobs,
		memo:     memoSvc,
		runs:     runs,
		log:      log.With(logger.Scope("workflow.svc")),
		registry: make(map[registryKey]Handler),
	}
}

// RegisterHandler registers the deterministic body for name/version. Called
// at startup; there is no dynamic or remote registration path.
func (s *Service) RegisterHandler(name string, version int, fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[registryKey{name, version}] = fn
}

func (s *Service) handlerFor(name string, version int) (Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.registry[registryKey{name, version}]
	return fn, ok
}

// CreateExecution idempotently creates the workflow job for (name,
// executionId) and runs the handler to its first blocking point. A second
// call with the same executionId returns the existing execution and job
// untouched rather than starting a duplicate.
func (s *Service) CreateExecution(ctx context.Context, clusterID, name string, version int, req CreateExecutionRequest) (*Execution, *job.Job, error) {
	if req.ExecutionID == "" {
		return nil, nil, apperror.ErrBadRequest.WithMessage("executionId is required")
	}
	if _, ok := s.handlerFor(name, version); !ok {
		return nil, nil, apperror.NewNotFound("workflow", fmt.Sprintf("%s/%d", name, version))
	}

	input := req.Input
	if input == nil {
		input = json.RawMessage("{}")
	}
	jobID := "wfjob_" + req.ExecutionID

	won, err := s.repo.TryClaim(ctx, clusterID, name, version, req.ExecutionID, jobID)
	if err != nil {
		return nil, nil, err
	}

	if !won {
		exec, err := s.repo.Get(ctx, clusterID, name, req.ExecutionID)
		if err != nil {
			return nil, nil, err
		}
		if exec == nil {
			return nil, nil, apperror.ErrConflict.WithMessage("workflow execution disappeared mid-create")
		}
		j, err := s.jobs.GetByID(ctx, clusterID, exec.JobID)
		if err != nil {
			return nil, nil, err
		}
		return exec, j, nil
	}

	executingMachineID := engineMachineID
	j := &job.Job{
		ID:                  jobID,
		ClusterID:           clusterID,
		WorkflowExecutionID: &req.ExecutionID,
		TargetFn:            workflowToolName(name, version),
		TargetArgs:          input,
		Status:              job.StatusRunning,
		Attempts:            1,
		MaxAttempts:         1,
		TimeoutSeconds:      job.DefaultTimeoutSeconds,
		ExecutingMachineID:  &executingMachineID,
	}
	if err := s.jobs.Create(ctx, j); err != nil {
		return nil, nil, err
	}

	exec, err := s.repo.Get(ctx, clusterID, name, req.ExecutionID)
	if err != nil {
		return nil, nil, err
	}

	j, err = s.runHandler(ctx, clusterID, name, version, exec, j, input)
	return exec, j, err
}

// ReTrigger re-enters the handler for a workflow execution whose dependent
// run just became terminal. A no-op if the job isn't currently an
// engine-held interrupted job — the status-change dispatcher delivers
// at-least-once, so a benign race here is expected.
func (s *Service) ReTrigger(ctx context.Context, clusterID, executionID string) error {
	exec, err := s.repo.GetByExecutionID(ctx, clusterID, executionID)
	if err != nil {
		return err
	}
	if exec == nil {
		return apperror.NewNotFound("workflow execution", executionID)
	}

	j, err := s.jobs.Reopen(ctx, clusterID, exec.JobID, engineMachineID)
	if err != nil {
		var ae *apperror.Error
		if errors.As(err, &ae) && ae.Code == apperror.ErrConflict.Code {
			return nil
		}
		return err
	}

	_, err = s.runHandler(ctx, clusterID, exec.Name, exec.Version, exec, j, j.TargetArgs)
	return err
}

// runHandler invokes the registered handler and drives the job it owns to a
// terminal or interrupted state. An ordinary handler error is recorded on
// the job as a failure, never returned to the HTTP caller.
func (s *Service) runHandler(ctx context.Context, clusterID, name string, version int, exec *Execution, j *job.Job, input json.RawMessage) (*job.Job, error) {
	fn, ok := s.handlerFor(name, version)
	if !ok {
		return j, nil
	}

	ec := &ExecutionContext{
		clusterID:   clusterID,
		executionID: exec.ExecutionID,
		wfName:      name,
		version:     version,
		memo:        s.memo,
		runs:        s.runs,
		log:         s.log,
	}

	result, handlerErr := fn(ctx, ec, input)

	switch {
	case handlerErr == nil:
		return s.finishJob(ctx, clusterID, j.ID, job.StatusSuccess, job.ResultTypeResolution, result)

	case errors.Is(handlerErr, WorkflowPausable):
		payload, _ := json.Marshal(map[string]any{
			job.InterruptSentinelKey: map[string]string{"type": job.InterruptTypeGeneral},
		})
		return s.finishJob(ctx, clusterID, j.ID, job.StatusInterrupted, job.ResultTypeInterrupt, payload)

	case errors.Is(handlerErr, WorkflowTerminable):
		reason, _ := json.Marshal(map[string]string{"reason": "dependent run failed"})
		return s.finishJob(ctx, clusterID, j.ID, job.StatusFailure, job.ResultTypeRejection, reason)

	default:
		s.log.Error("workflow handler error", logger.Error(handlerErr), slog.String("name", name), slog.String("executionId", exec.ExecutionID))
		reason, _ := json.Marshal(map[string]string{"reason": handlerErr.Error()})
		return s.finishJob(ctx, clusterID, j.ID, job.StatusFailure, job.ResultTypeRejection, reason)
	}
}

func (s *Service) finishJob(ctx context.Context, clusterID, jobID, status, resultType string, result json.RawMessage) (*job.Job, error) {
	return s.jobs.SubmitResult(ctx, clusterID, jobID, engineMachineID, status, resultType, result, false)
}

// GetExecution returns a workflow execution and its job.
func (s *Service) GetExecution(ctx context.Context, clusterID, name, executionID string) (*Execution, *job.Job, error) {
	exec, err := s.repo.Get(ctx, clusterID, name, executionID)
	if err != nil {
		return nil, nil, err
	}
	if exec == nil {
		return nil, nil, apperror.NewNotFound("workflow execution", executionID)
	}
	j, err := s.jobs.GetByID(ctx, clusterID, exec.JobID)
	if err != nil {
		return nil, nil, err
	}
	return exec, j, nil
}
