package run

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentcp/controlplane/domain/job"
	"github.com/agentcp/controlplane/domain/machine"
	"github.com/agentcp/controlplane/domain/model"
)

const invalidResponseMessage = "Provided object was invalid, check your input"

// runModelNode implements the MODEL node.
func (s *Service) runModelNode(ctx context.Context, r *Run) error {
	if err := s.checkCycleGuard(ctx, r); err != nil {
		return err
	}

	var toolFilter []string
	if len(r.Tools) > 0 {
		_ = json.Unmarshal(r.Tools, &toolFilter)
	}
	callable, err := s.machines.CallableTools(ctx, r.ClusterID, toolFilter)
	if err != nil {
		return err
	}
	relevant := s.findRelevantTools(ctx, callable)
	other := diffTools(callable, relevant)

	additionalContext := ""
	if cl, err := s.clusters.GetByID(ctx, r.ClusterID); err == nil {
		additionalContext = cl.AdditionalContext
	}
	system := buildSystemPrompt(additionalContext, relevant, other, r.EnableResultGrounding)

	schema, err := buildStepSchema(r.ResultSchema, relevant)
	if err != nil {
		return newAgentError(err.Error())
	}

	if err := checkSystemPromptBudget(estimateTokens(system), s.model.ContextWindow()); err != nil {
		return err
	}

	history, err := s.repo.ListMessages(ctx, r.ClusterID, r.ID, "", 0)
	if err != nil {
		return err
	}
	history = trimForContextWindow(history, estimateTokens(system), s.model.ContextWindow())

	req := model.Request{
		Messages: renderMessages(history),
		System:   system,
		Schema:   schema,
	}

	resp, err := s.model.Structured(ctx, req)
	if err != nil {
		return newAgentError("model provider call failed: " + err.Error())
	}

	if err := validateAgainstSchema(schema, resp.Raw); err != nil {
		return s.appendCorrection(ctx, r, invalidResponseMessage)
	}

	var data AgentMessageData
	if err := json.Unmarshal(resp.Raw, &data); err != nil {
		return s.appendCorrection(ctx, r, invalidResponseMessage)
	}

	mergeToolUseBlocks(&data, resp.Raw)
	if text := reconcileFlags(&data); text != "" {
		return s.appendCorrection(ctx, r, text)
	}

	out, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := s.repo.AppendMessage(ctx, &Message{
		ID:        NewMessageID(),
		RunID:     r.ID,
		ClusterID: r.ClusterID,
		Type:      MessageTypeAgent,
		Data:      out,
		CreatedAt: time.Now(),
	}); err != nil {
		return err
	}
	s.notifier.Broadcast(r.ID)

	if data.Done {
		r.Status = StatusDone
		r.Result = data.Result
	} else {
		r.Status = StatusRunning
	}
	r.UpdatedAt = time.Now()
	if err := s.repo.UpdateRun(ctx, r); err != nil {
		return err
	}
	s.notifyTerminal(ctx, r)
	return nil
}

// appendCorrection records a failed/invalid model step: one agent-invalid
// message plus a supervisor message carrying text, and keeps the run
// running so the model gets another step to recover.
func (s *Service) appendCorrection(ctx context.Context, r *Run, text string) error {
	now := time.Now()
	if err := s.repo.AppendMessage(ctx, &Message{
		ID: NewMessageID(), RunID: r.ID, ClusterID: r.ClusterID,
		Type: MessageTypeAgentInvalid, Data: json.RawMessage(`{}`), CreatedAt: now,
	}); err != nil {
		return err
	}
	data, _ := json.Marshal(map[string]string{"message": text})
	if err := s.repo.AppendMessage(ctx, &Message{
		ID: NewMessageID(), RunID: r.ID, ClusterID: r.ClusterID,
		Type: MessageTypeSupervisor, Data: data, CreatedAt: now,
	}); err != nil {
		return err
	}
	s.notifier.Broadcast(r.ID)
	r.Status = StatusRunning
	r.UpdatedAt = now
	return s.repo.UpdateRun(ctx, r)
}

// runToolNode implements the TOOL node: for every invocation on
// the latest agent message without a matching invocation-result, either
// synthesize a rejection (unknown/uncallable tool) or dispatch a job.
func (s *Service) runToolNode(ctx context.Context, r *Run) error {
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

	resolved, err := s.resolvedInvocationIDs(ctx, r.ClusterID, r.ID)
	if err != nil {
		return err
	}

	callable, err := s.machines.CallableTools(ctx, r.ClusterID, nil)
	if err != nil {
		return err
	}
	byName := make(map[string]machine.Tool, len(callable))
	for _, t := range callable {
		byName[t.Name] = t
	}

	for _, inv := range data.Invocations {
		if resolved[inv.ID] {
			continue
		}

		if _, ok := byName[inv.ToolName]; !ok {
			if err := s.synthesizeRejection(ctx, r, inv, "tool is unknown or not currently callable"); err != nil {
				return err
			}
			continue
		}

		runID := r.ID
		j, err := s.jobs.Create(ctx, r.ClusterID, job.CreateRequest{
			TargetFn:   inv.ToolName,
			TargetArgs: inv.Input,
			RunID:      &runID,
		})
		if err != nil {
			if err := s.synthesizeRejection(ctx, r, inv, "failed to dispatch tool invocation"); err != nil {
				return err
			}
			continue
		}

		if err := s.repo.LogToolCall(ctx, &ToolCallLog{
			ID: NewMessageID(), RunID: r.ID, InvocationID: inv.ID, ToolName: inv.ToolName,
			JobID: j.ID, StartedAt: time.Now(),
		}); err != nil {
			return err
		}

		// a cached/already-resolved job comes back terminal immediately.
		if j.IsTerminal() {
			if err := s.resolveInvocationFromJob(ctx, r, inv, j); err != nil {
				return err
			}
		}
	}

	return nil
}

// resolveInvocationFromJob appends the invocation-result for a job that
// resolved synchronously (e.g. a cache hit at Create time).
func (s *Service) resolveInvocationFromJob(ctx context.Context, r *Run, inv Invocation, j *job.Job) error {
	resultType := InvocationResultRejection
	if j.Status == job.StatusSuccess {
		resultType = InvocationResultResolution
	}
	data, _ := json.Marshal(InvocationResultData{
		InvocationID: inv.ID,
		ResultType:   resultType,
		Result:       j.Result,
	})
	if err := s.repo.AppendMessage(ctx, &Message{
		ID: NewMessageID(), RunID: r.ID, ClusterID: r.ClusterID,
		Type: MessageTypeInvocationResult, Data: data, CreatedAt: time.Now(),
	}); err != nil {
		return err
	}
	s.notifier.Broadcast(r.ID)
	return s.repo.CompleteToolCall(ctx, inv.ID, resultType)
}

func (s *Service) synthesizeRejection(ctx context.Context, r *Run, inv Invocation, reason string) error {
	data, _ := json.Marshal(InvocationResultData{
		InvocationID: inv.ID,
		ResultType:   InvocationResultRejection,
		Error:        reason,
	})
	if err := s.repo.AppendMessage(ctx, &Message{
		ID: NewMessageID(), RunID: r.ID, ClusterID: r.ClusterID,
		Type: MessageTypeInvocationResult, Data: data, CreatedAt: time.Now(),
	}); err != nil {
		return err
	}
	s.notifier.Broadcast(r.ID)
	return nil
}

const (
	InvocationResultResolution = "resolution"
	InvocationResultRejection  = "rejection"
)

// checkCycleGuard aborts with AgentError if the run has looped without
// progress.
func (s *Service) checkCycleGuard(ctx context.Context, r *Run) error {
	count, err := s.repo.CountMessages(ctx, r.ID)
	if err != nil {
		return err
	}
	if count >= cycleGuardMaxMessages {
		return newAgentError("message history exceeded 100 messages without completing")
	}

	tail, err := s.repo.LastMessages(ctx, r.ID, cycleGuardTailWindow)
	if err != nil {
		return err
	}
	if len(tail) >= cycleGuardTailWindow && !tailHasHumanOrInvocationResult(tail) {
		return newAgentError("last 10 messages contain no human or invocation-result message")
	}
	return nil
}

func tailHasHumanOrInvocationResult(tail []Message) bool {
	for _, m := range tail {
		if m.Type == MessageTypeHuman || m.Type == MessageTypeInvocationResult {
			return true
		}
	}
	return false
}

// unresolvedInvocationIDs returns agent-emitted invocation ids with no
// matching invocation-result, used by the post-start/route edge.
func (s *Service) unresolvedInvocationIDs(ctx context.Context, clusterID, runID string) ([]string, error) {
	all, err := s.repo.ListMessages(ctx, clusterID, runID, "", 0)
	if err != nil {
		return nil, err
	}
	resolved := map[string]bool{}
	var ids []string
	for _, m := range all {
		switch m.Type {
		case MessageTypeInvocationResult:
			var d InvocationResultData
			if json.Unmarshal(m.Data, &d) == nil {
				resolved[d.InvocationID] = true
			}
		case MessageTypeAgent:
			var d AgentMessageData
			if json.Unmarshal(m.Data, &d) == nil {
				for _, inv := range d.Invocations {
					ids = append(ids, inv.ID)
				}
			}
		}
	}
	var unresolved []string
	for _, id := range ids {
		if !resolved[id] {
			unresolved = append(unresolved, id)
		}
	}
	return unresolved, nil
}

// resolvedInvocationIDs is unresolvedInvocationIDs' complement, scoped to
// the ids already answered, used by runToolNode to skip re-dispatch.
func (s *Service) resolvedInvocationIDs(ctx context.Context, clusterID, runID string) (map[string]bool, error) {
	all, err := s.repo.ListMessages(ctx, clusterID, runID, "", 0)
	if err != nil {
		return nil, err
	}
	resolved := map[string]bool{}
	for _, m := range all {
		if m.Type != MessageTypeInvocationResult {
			continue
		}
		var d InvocationResultData
		if json.Unmarshal(m.Data, &d) == nil {
			resolved[d.InvocationID] = true
		}
	}
	return resolved, nil
}

func diffTools(all, subset []machine.Tool) []machine.Tool {
	in := make(map[string]bool, len(subset))
	for _, t := range subset {
		in[t.Name] = true
	}
	var out []machine.Tool
	for _, t := range all {
		if !in[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

func renderMessages(msgs []Message) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Type == MessageTypeAgent {
			role = "assistant"
		}
		out = append(out, model.Message{Role: role, Content: string(m.Data)})
	}
	return out
}

// mergeToolUseBlocks folds any raw tool-use content the model emitted
// outside the invocations field into data.Invocations. The structured-output
// contract (domain/model.Model.Structured) already normalizes
// provider-specific tool-use blocks into the envelope's invocations array,
// so by the time resp.Raw reaches here there is nothing left outside it to
// merge — this is a no-op placeholder for a provider whose Structured
// implementation cannot make that guarantee.
func mergeToolUseBlocks(_ *AgentMessageData, _ json.RawMessage) {}

// reconcileFlags enforces consistency between the done/invocations/result
// flags the model emitted in one step. It returns the supervisor correction
// text when the model's flags need a correction round instead of a normal
// emit; "" means proceed as-is.
func reconcileFlags(data *AgentMessageData) string {
	switch {
	case data.Done && len(data.Invocations) > 0:
		data.Done = false
		data.Result = nil
		data.Message = ""
		return ""
	case !data.Done && len(data.Invocations) == 0:
		return "Please invoke a tool or set done to true with a result or message"
	case data.Done && len(data.Result) == 0 && data.Message == "":
		return "Please provide a final result or a reason for stopping"
	}
	return ""
}
