package run

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/agentcp/controlplane/domain/cluster"
	"github.com/agentcp/controlplane/domain/job"
	"github.com/agentcp/controlplane/domain/machine"
	"github.com/agentcp/controlplane/domain/model"
	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/logger"
)

const (
	// cycleGuardMaxMessages and cycleGuardTailWindow are the cycle-guard
	// thresholds that keep a stuck run from looping forever.
	cycleGuardMaxMessages = 100
	cycleGuardTailWindow  = 10
	// maxStepsPerAdvance is a defensive bound on a single Advance call: the
	// cycle guard inside runModelNode is the real limit (100 messages), this
	// just stops a routing bug from spinning forever in-process.
	maxStepsPerAdvance = 200
)

type routeNode int

const (
	nodeEnd routeNode = iota
	nodeModel
	nodeTool
)

// TerminalHook is invoked whenever a run reaches a terminal status (done or
// failed), so a listener that doesn't otherwise import domain/run (the
// status-change dispatcher) can react. Set directly by that listener's
// constructor rather than injected via fx, the same way domain/job wires
// RunResumeHook back to domain/run.
type TerminalHook func(ctx context.Context, r *Run)

// FindRelevantTools narrows the callable tool set considered for a single
// model step. The default considers every callable tool; an implementation
// may swap in embeddings-based retrieval. Contract: the result must be a
// finite subset of the tools passed in.
type FindRelevantTools func(ctx context.Context, tools []machine.Tool) []machine.Tool

func allTools(_ context.Context, tools []machine.Tool) []machine.Tool { return tools }

// Service drives the agent engine: a three-node graph (START/MODEL/TOOL)
// over a run's append-only message log.
type Service struct {
	repo              *Repository
	jobs              *job.Service
	machines          *machine.Service
	clusters          *cluster.Service
	model             model.Model
	notifier          *Notifier
	findRelevantTools FindRelevantTools
	log               *slog.Logger
	onTerminal        TerminalHook
}

// SetTerminalHook registers the callback fired when a run reaches done or
// failed. Safe to leave unset (no-op).
func (s *Service) SetTerminalHook(hook TerminalHook) {
	s.onTerminal = hook
}

func (s *Service) notifyTerminal(ctx context.Context, r *Run) {
	if s.onTerminal == nil || (r.Status != StatusDone && r.Status != StatusFailed) {
		return
	}
	s.onTerminal(ctx, r)
}

// NewService creates a new run service and wires itself as the job
// service's resume hook, so a terminal tool job bound to a run wakes the
// run loop.
func NewService(repo *Repository, jobsSvc *job.Service, machines *machine.Service, clusters *cluster.Service, m model.Model, log *slog.Logger) *Service {
	s := &Service{
		repo:              repo,
		jobs:              jobsSvc,
		machines:          machines,
		clusters:          clusters,
		model:             m,
		notifier:          NewNotifier(),
		findRelevantTools: allTools,
		log:               log.With(logger.Scope("run.svc")),
	}
	jobsSvc.SetRunResumeHook(s.ResumeRun)
	return s
}

// CreateRun idempotently creates a run by id (returning the existing run
// unchanged if it already exists) and drives it forward until it blocks.
func (s *Service) CreateRun(ctx context.Context, clusterID string, req CreateRequest) (*Run, error) {
	id := req.ID
	if id == "" {
		id = GenerateID()
	} else if err := ValidateID(id); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetRun(ctx, clusterID, id); err == nil {
		return existing, nil
	} else if ae, ok := err.(*apperror.Error); !ok || ae.Code != "not_found" {
		return nil, err
	}

	typ := req.Type
	if typ == "" {
		typ = TypeMultiStep
	}

	now := time.Now()
	r := &Run{
		ID:                    id,
		ClusterID:             clusterID,
		Type:                  typ,
		Status:                StatusRunning,
		SystemPrompt:          req.SystemPrompt,
		InitialPrompt:         req.InitialPrompt,
		ResultSchema:          req.ResultSchema,
		Tools:                 marshalTools(req.Tools),
		Context:               req.Context,
		AuthContext:           req.AuthContext,
		Tags:                  req.Tags,
		Interactive:           req.Interactive,
		ReasoningTraces:       req.ReasoningTraces,
		EnableResultGrounding: req.EnableResultGrounding,
		OnStatusChange:        req.OnStatusChange,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repo.CreateRun(ctx, r); err != nil {
		return nil, err
	}

	if req.InitialPrompt != "" {
		data, _ := json.Marshal(map[string]string{"message": req.InitialPrompt})
		if err := s.repo.AppendMessage(ctx, &Message{
			ID:        NewMessageID(),
			RunID:     r.ID,
			ClusterID: clusterID,
			Type:      MessageTypeHuman,
			Data:      data,
			CreatedAt: time.Now(),
		}); err != nil {
			return nil, err
		}
	}

	if err := s.advance(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetRun returns a run by id.
func (s *Service) GetRun(ctx context.Context, clusterID, id string) (*Run, error) {
	return s.repo.GetRun(ctx, clusterID, id)
}

// AppendMessage appends a human or supervisor message and, if the run was
// paused, resumes it.
func (s *Service) AppendMessage(ctx context.Context, clusterID, runID string, req AppendMessageRequest) error {
	if req.Type != MessageTypeHuman && req.Type != MessageTypeSupervisor {
		return apperror.ErrBadRequest.WithMessage("message type must be human or supervisor")
	}

	r, err := s.repo.GetRun(ctx, clusterID, runID)
	if err != nil {
		return err
	}

	if err := s.repo.AppendMessage(ctx, &Message{
		ID:        NewMessageID(),
		RunID:     runID,
		ClusterID: clusterID,
		Type:      req.Type,
		Data:      req.Data,
		CreatedAt: time.Now(),
	}); err != nil {
		return err
	}
	s.notifier.Broadcast(runID)

	if r.Status == StatusPaused {
		r.Status = StatusRunning
		if err := s.repo.UpdateRun(ctx, r); err != nil {
			return err
		}
	}

	return s.advance(ctx, r)
}

// ResumeRun re-enters the engine for a run whose outstanding tool job just
// reached a terminal or interrupted state (job.RunResumeHook).
func (s *Service) ResumeRun(ctx context.Context, clusterID, runID string) {
	r, err := s.repo.GetRun(ctx, clusterID, runID)
	if err != nil {
		s.log.Warn("resume for unknown run", logger.Error(err), slog.String("runId", runID))
		return
	}
	if err := s.advance(ctx, r); err != nil {
		s.log.Error("advance failed on resume", logger.Error(err), slog.String("runId", runID))
	}
}

// ListMessages returns messages after the given cursor id.
func (s *Service) ListMessages(ctx context.Context, clusterID, runID, after string) ([]Message, error) {
	return s.repo.ListMessages(ctx, clusterID, runID, after, 0)
}

// WaitForMessages blocks until a message arrives after the cursor, waitTime
// elapses, or ctx is cancelled, then returns whatever is available. Grounded
// on the "goroutine-per-request, context-cancellable" long-poll
// model: select on the per-run notifier channel, a wait deadline, and a 1s
// fallback poll in case a broadcast racily preceded the subscribe.
func (s *Service) WaitForMessages(ctx context.Context, clusterID, runID, after string, waitTime time.Duration) ([]Message, error) {
	msgs, err := s.repo.ListMessages(ctx, clusterID, runID, after, 0)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 || waitTime <= 0 {
		return msgs, nil
	}

	deadline := time.NewTimer(waitTime)
	defer deadline.Stop()
	fallback := time.NewTicker(time.Second)
	defer fallback.Stop()
	wake := s.notifier.Subscribe(runID)

	for {
		select {
		case <-ctx.Done():
			return s.repo.ListMessages(ctx, clusterID, runID, after, 0)
		case <-deadline.C:
			return s.repo.ListMessages(ctx, clusterID, runID, after, 0)
		case <-wake:
			return s.repo.ListMessages(ctx, clusterID, runID, after, 0)
		case <-fallback.C:
			msgs, err := s.repo.ListMessages(ctx, clusterID, runID, after, 0)
			if err != nil {
				return nil, err
			}
			if len(msgs) > 0 {
				return msgs, nil
			}
		}
	}
}

// ListToolCalls returns the audit trail for a run.
func (s *Service) ListToolCalls(ctx context.Context, runID string) ([]ToolCallLog, error) {
	return s.repo.ListToolCalls(ctx, runID)
}

// advance drives the run through the graph until it reaches END: blocked on
// outstanding tool jobs, paused, done, or failed.
func (s *Service) advance(ctx context.Context, r *Run) error {
	for i := 0; i < maxStepsPerAdvance; i++ {
		next, err := s.route(ctx, r)
		if err != nil {
			return s.fail(ctx, r, err)
		}

		switch next {
		case nodeEnd:
			return s.maybePause(ctx, r)
		case nodeTool:
			if err := s.runToolNode(ctx, r); err != nil {
				return s.fail(ctx, r, err)
			}
		case nodeModel:
			if err := s.runModelNode(ctx, r); err != nil {
				return s.fail(ctx, r, err)
			}
		}
	}
	return nil
}

// route implements the post-start/post-model/post-tool edges. the original design gives
// post-start an extra leading "pending tool jobs ⇒ END" check that
// post-model/post-tool omit; in practice a TOOL node that dispatches real
// async jobs always leaves work pending, so evaluating that check uniformly
// is equivalent and lets one function serve all three edges.
func (s *Service) route(ctx context.Context, r *Run) (routeNode, error) {
	pending, err := s.repo.PendingToolJobsCount(ctx, r.ClusterID, r.ID)
	if err != nil {
		return nodeEnd, err
	}
	if pending > 0 {
		return nodeEnd, nil
	}

	if r.Status == StatusDone || r.Status == StatusFailed || r.Status == StatusPaused {
		return nodeEnd, nil
	}

	last, err := s.repo.LastMessages(ctx, r.ID, 1)
	if err != nil {
		return nodeEnd, err
	}
	if len(last) == 1 && last[0].Type == MessageTypeAgent {
		var data AgentMessageData
		if err := json.Unmarshal(last[0].Data, &data); err == nil && len(data.Invocations) > 0 {
			return nodeTool, nil
		}
	}

	unresolved, err := s.unresolvedInvocationIDs(ctx, r.ClusterID, r.ID)
	if err != nil {
		return nodeEnd, err
	}
	if len(unresolved) > 0 {
		return nodeTool, nil
	}

	return nodeModel, nil
}

// maybePause applies the pause condition when route has nothing left to do:
// interactive run, no pending work, latest agent message carries neither
// invocations nor done.
func (s *Service) maybePause(ctx context.Context, r *Run) error {
	if !r.Interactive || r.Status != StatusRunning {
		return nil
	}
	last, err := s.repo.LastMessages(ctx, r.ID, 1)
	if err != nil {
		return err
	}
	if len(last) != 1 || last[0].Type != MessageTypeAgent {
		return nil
	}
	var data AgentMessageData
	if err := json.Unmarshal(last[0].Data, &data); err != nil {
		return nil
	}
	if len(data.Invocations) > 0 || data.Done {
		return nil
	}

	r.Status = StatusPaused
	r.UpdatedAt = time.Now()
	return s.repo.UpdateRun(ctx, r)
}

// fail transitions a run to failed with the given error's reason, per
// the AgentError failure model.
func (s *Service) fail(ctx context.Context, r *Run, err error) error {
	reason := err.Error()
	if ae, ok := err.(*AgentError); ok {
		reason = ae.Reason
	}
	r.Status = StatusFailed
	r.FailureReason = reason
	r.UpdatedAt = time.Now()
	if uerr := s.repo.UpdateRun(ctx, r); uerr != nil {
		s.log.Error("failed to persist run failure", logger.Error(uerr), slog.String("runId", r.ID))
	}
	s.notifier.Broadcast(r.ID)
	s.notifyTerminal(ctx, r)
	return err
}

func marshalTools(names []string) json.RawMessage {
	if len(names) == 0 {
		return nil
	}
	data, _ := json.Marshal(names)
	return data
}
