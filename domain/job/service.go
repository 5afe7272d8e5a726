package job

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/agentcp/controlplane/domain/machine"
	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/logger"
)

// RunResumeHook is invoked whenever a job bound to a run reaches a state the
// agent engine must react to, so the run loop can consume the result and
// advance. Set directly by the agent engine's constructor rather than
// injected via fx: the agent engine (domain/run) already imports domain/job
// to dispatch tool invocations, so job cannot import run back without a
// cycle.
type RunResumeHook func(ctx context.Context, clusterID, runID string)

// jobResultEventType matches domain/event.TypeJobResult; duplicated as a
// local constant rather than imported so this package stays ignorant of
// domain/event, the whole point of the hook indirection below.
const jobResultEventType = "job.result"

// EventHook is invoked to append an audit-log row whenever a job reaches a
// result-bearing terminal state. Set from cmd/server/main.go rather than
// injected via fx: domain/event has no reason to import domain/job, so the
// func-field/setter indirection (same shape as RunResumeHook above) keeps
// the dependency one-directional.
type EventHook func(ctx context.Context, j *Job, eventType string)

// Service implements job creation, claiming, result submission, and
// approval flow.
type Service struct {
	repo        *Repository
	machines    *machine.Service
	log         *slog.Logger
	onRunResume RunResumeHook
	onEvent     EventHook
}

// NewService creates a new job service.
func NewService(repo *Repository, machines *machine.Service, log *slog.Logger) *Service {
	return &Service{repo: repo, machines: machines, log: log.With(logger.Scope("job.svc"))}
}

// SetRunResumeHook registers the callback fired when a run-bound job
// reaches a terminal or interrupted state. Safe to leave unset (no-op).
func (s *Service) SetRunResumeHook(hook RunResumeHook) {
	s.onRunResume = hook
}

// SetEventHook registers the callback fired to record a job's audit event.
// Safe to leave unset (no-op).
func (s *Service) SetEventHook(hook EventHook) {
	s.onEvent = hook
}

func (s *Service) notifyRun(ctx context.Context, j *Job) {
	if s.onRunResume == nil || j == nil || j.RunID == nil {
		return
	}
	s.onRunResume(ctx, j.ClusterID, *j.RunID)
}

func (s *Service) emitEvent(ctx context.Context, j *Job, eventType string) {
	if s.onEvent == nil || j == nil {
		return
	}
	s.onEvent(ctx, j, eventType)
}

// Create creates a job, honoring cache-key idempotency: if the target tool
// configures caching and a non-expired successful job with the same
// extracted cache key exists, its result is returned directly and no new
// row is inserted.
func (s *Service) Create(ctx context.Context, clusterID string, req CreateRequest) (*Job, error) {
	if req.TargetFn == "" || len(req.TargetFn) > 30 {
		return nil, apperror.ErrBadRequest.WithMessage("targetFn must be 1-30 characters")
	}

	tools, err := s.machines.CallableTools(ctx, clusterID, []string{req.TargetFn})
	if err != nil {
		return nil, err
	}
	if len(tools) == 0 {
		return nil, apperror.NewNotFound("tool", req.TargetFn)
	}
	tool := tools[0]

	var cacheKey *string
	if tool.Config.Cache != nil {
		key := computeCacheKey(tool.Name, req.TargetArgs, tool.Config.Cache.KeyPath)
		cacheKey = &key

		ttl := time.Duration(tool.Config.Cache.TTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = 0
		}
		if ttl > 0 {
			if cached, err := s.repo.FindByCacheKey(ctx, clusterID, key, ttl); err != nil {
				return nil, err
			} else if cached != nil {
				return cached, nil
			}
		}
	}

	id := req.ID
	if id == "" {
		id = generateJobID()
	}

	timeout := tool.Config.TimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultTimeoutSeconds
	}

	targetArgs := req.TargetArgs
	if targetArgs == nil {
		targetArgs = json.RawMessage("{}")
	}

	j := &Job{
		ID:             id,
		ClusterID:      clusterID,
		RunID:          req.RunID,
		TargetFn:       req.TargetFn,
		TargetArgs:     targetArgs,
		Status:         StatusPending,
		Attempts:       0,
		MaxAttempts:    tool.Config.RetryCountOnStall + 1,
		CacheKey:       cacheKey,
		TimeoutSeconds: timeout,
		AuthContext:    req.AuthContext,
		RunContext:     req.RunContext,
	}

	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}

	s.log.Info("job created", slog.String("id", j.ID), slog.String("targetFn", j.TargetFn))
	return j, nil
}

// Claim dispatches up to limit pending jobs whose targetFn is in tools to
// machineID.
func (s *Service) Claim(ctx context.Context, clusterID, machineID string, tools []string, limit int) ([]ClaimResponse, error) {
	jobs, err := s.repo.Claim(ctx, clusterID, machineID, tools, limit)
	if err != nil {
		return nil, err
	}

	resp := make([]ClaimResponse, len(jobs))
	for i, j := range jobs {
		resp[i] = ClaimResponse{
			ID:          j.ID,
			Function:    j.TargetFn,
			Input:       j.TargetArgs,
			AuthContext: j.AuthContext,
			RunContext:  j.RunContext,
			Approved:    j.Approved,
		}
	}
	return resp, nil
}

// SubmitResult applies a worker's result. It detects the interrupt sentinel
// to route resultType=interrupt payloads to either the approval-gated path
// or a plain pausable interrupt.
func (s *Service) SubmitResult(ctx context.Context, clusterID, id, machineID string, req SubmitResultRequest) (*Job, error) {
	switch req.ResultType {
	case ResultTypeResolution, ResultTypeRejection:
		terminal := StatusSuccess
		if req.ResultType == ResultTypeRejection {
			terminal = StatusFailure
		}
		j, err := s.repo.SubmitResult(ctx, clusterID, id, machineID, terminal, req.ResultType, req.Result, false)
		if err != nil {
			return nil, err
		}
		s.emitEvent(ctx, j, jobResultEventType)
		s.notifyRun(ctx, j)
		return j, nil

	case ResultTypeInterrupt:
		var payload interruptPayload
		_ = json.Unmarshal(req.Result, &payload)

		approvalRequested := payload.Sentinel != nil && payload.Sentinel.Type == InterruptTypeApproval
		j, err := s.repo.SubmitResult(ctx, clusterID, id, machineID, StatusInterrupted, req.ResultType, req.Result, approvalRequested)
		if err != nil {
			return nil, err
		}
		if !approvalRequested {
			// a "general" interrupt still pauses the job, but the run that
			// triggered it (e.g. a workflow awaiting an agent run) needs to
			// wake and observe it.
			s.notifyRun(ctx, j)
		}
		return j, nil

	default:
		return nil, apperror.ErrBadRequest.WithMessage("unknown resultType")
	}
}

// Approve records an approval decision on an interrupted job. Rejection is
// terminal and wakes any bound run; approval only unblocks the next claim.
func (s *Service) Approve(ctx context.Context, clusterID, id string, approved bool) (*Job, error) {
	j, err := s.repo.Approve(ctx, clusterID, id, approved)
	if err != nil {
		return nil, err
	}
	if !approved {
		s.notifyRun(ctx, j)
	}
	return j, nil
}

// ReclaimExpired runs the stall reaper: expired leases go back to pending if
// retries remain, or terminal failure otherwise. Terminal stalls wake their
// bound run. Driven by an internal/jobs.Worker-style background loop.
func (s *Service) ReclaimExpired(ctx context.Context) (retried int, stalled int, err error) {
	retriedRows, stalledRows, err := s.repo.ReclaimExpired(ctx)
	if err != nil {
		return 0, 0, err
	}
	for i := range stalledRows {
		s.notifyRun(ctx, &stalledRows[i])
	}
	return len(retriedRows), len(stalledRows), nil
}

// GetByID returns a job by id.
func (s *Service) GetByID(ctx context.Context, clusterID, id string) (*Job, error) {
	return s.repo.GetByID(ctx, clusterID, id)
}

// computeCacheKey hashes the tool name and the value extracted from input at
// keyPath (dot-separated JSON path) with xxhash:
// cacheKey = hash(tool, extract(input, keyPath)).
func computeCacheKey(tool string, input json.RawMessage, keyPath string) string {
	value := extractPath(input, keyPath)
	h := xxhash.New()
	_, _ = h.WriteString(tool)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(value)
	return strconv.FormatUint(h.Sum64(), 16)
}

// extractPath walks a dot-separated path through a JSON object, returning
// the canonical JSON encoding of whatever it finds ("" if the path is
// absent or input isn't an object).
func extractPath(input json.RawMessage, keyPath string) string {
	if keyPath == "" {
		return string(input)
	}

	var cur any
	if err := json.Unmarshal(input, &cur); err != nil {
		return ""
	}

	for _, part := range strings.Split(keyPath, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = obj[part]
		if !ok {
			return ""
		}
	}

	data, err := json.Marshal(cur)
	if err != nil {
		return ""
	}
	return string(data)
}

func generateJobID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("job_%s", hex.EncodeToString(buf))
}
