package workflow

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/agentcp/controlplane/domain/memo"
	"github.com/agentcp/controlplane/domain/run"
)

// engineMachineID is the synthetic machine identity the workflow engine
// holds job leases under. It never claims jobs via job.Repository.Claim —
// it creates each workflow job already running under this id, and reopens
// it under the same id to re-enter a paused handler.
const engineMachineID = "workflow-engine"

// Handler is a named, versioned, deterministic workflow body. It observes
// the outside world only through the ExecutionContext it's given.
type Handler func(ctx context.Context, ec *ExecutionContext, input json.RawMessage) (json.RawMessage, error)

// ExecutionContext is the handler-facing API for one invocation of a
// workflow execution: durable memoization and dependent-run triggering.
type ExecutionContext struct {
	clusterID   string
	executionID string
	wfName      string
	version     int
	memo        *memo.Service
	runs        *run.Service
	log         *slog.Logger
}

// Memo runs fn at most once for (executionId, key): a cell already written
// under a prior invocation of this execution is returned unevaluated; the
// first successful evaluation wins any race between re-entries
// (onConflict=doNothing).
func (ec *ExecutionContext) Memo(ctx context.Context, key string, fn func() (json.RawMessage, error)) (json.RawMessage, error) {
	cellKey := ec.executionID + ":memo_" + key

	existing, err := ec.memo.Lookup(ctx, ec.clusterID, cellKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing.Value, nil
	}

	result, err := fn()
	if err != nil {
		return nil, err
	}

	cell, err := ec.memo.Put(ctx, ec.clusterID, cellKey, result, memo.OnConflictDoNothing)
	if err != nil {
		return nil, err
	}
	return cell.Value, nil
}

// TriggerAgent computes agent(name, …).trigger(input)'s deterministic run
// id, idempotently creates the dependent run wired to re-trigger this
// execution on completion, and returns its result once done. A run that
// hasn't reached done/failed yet causes the whole workflow to pause
// (WorkflowPausable); a failed run ends it (WorkflowTerminable).
func (ec *ExecutionContext) TriggerAgent(ctx context.Context, name, systemPrompt string, resultSchema, input json.RawMessage, tools []string) (json.RawMessage, error) {
	runID := computeAgentRunID(ec.executionID, name, ec.wfName, ec.version, systemPrompt, resultSchema, input)

	osc := run.OnStatusChange{Type: "workflow", Statuses: []string{run.StatusDone, run.StatusFailed}}
	osc.Workflow = &struct {
		ExecutionID string `json:"executionId"`
	}{ExecutionID: ec.executionID}
	onStatusChange, err := json.Marshal(osc)
	if err != nil {
		return nil, err
	}

	r, err := ec.runs.CreateRun(ctx, ec.clusterID, run.CreateRequest{
		ID:             runID,
		Type:           run.TypeMultiStep,
		SystemPrompt:   systemPrompt,
		ResultSchema:   resultSchema,
		Tools:          tools,
		Context:        input,
		OnStatusChange: onStatusChange,
	})
	if err != nil {
		return nil, err
	}

	switch r.Status {
	case run.StatusDone:
		return r.Result, nil
	case run.StatusFailed:
		return nil, WorkflowTerminable
	default:
		return nil, WorkflowPausable
	}
}
