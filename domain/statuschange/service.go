package statuschange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/agentcp/controlplane/domain/event"
	"github.com/agentcp/controlplane/domain/job"
	"github.com/agentcp/controlplane/domain/run"
	"github.com/agentcp/controlplane/domain/workflow"
	"github.com/agentcp/controlplane/pkg/logger"
)

// maxAttempts bounds the outbox's retry loop: beyond this the entry is
// marked delivered anyway rather than retried forever against a
// permanently broken target.
const maxAttempts = 8

// webhookAttemptTimeout bounds a single webhook POST; the at-least-once,
// exponential-backoff guarantee comes from the outbox retry loop across
// separate poll cycles, not from blocking longer on one attempt.
const webhookAttemptTimeout = 10 * time.Second

// Dispatcher delivers onStatusChange notifications for terminal run
// transitions.
type Dispatcher struct {
	repo      *Repository
	runs      *run.Service
	jobs      *job.Service
	workflows *workflow.Service
	events    *event.Service
	http      *http.Client
	log       *slog.Logger
}

// NewDispatcher creates a new status-change dispatcher.
func NewDispatcher(repo *Repository, runs *run.Service, jobs *job.Service, workflows *workflow.Service, events *event.Service, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		runs:      runs,
		jobs:      jobs,
		workflows: workflows,
		events:    events,
		http:      &http.Client{Timeout: webhookAttemptTimeout},
		log:       log.With(logger.Scope("statuschange.dispatcher")),
	}
}

// Enqueue records a pending delivery for r's just-reached status, if it
// matches r's onStatusChange config. onStatusChange itself is re-read from
// the run at delivery time rather than snapshotted here, so the dispatcher
// always sees the latest config for a run with several queued deliveries.
func (d *Dispatcher) Enqueue(ctx context.Context, r *run.Run) error {
	if len(r.OnStatusChange) == 0 {
		return nil
	}
	var osc run.OnStatusChange
	if err := json.Unmarshal(r.OnStatusChange, &osc); err != nil {
		d.log.Warn("run has unparseable onStatusChange, skipping", slog.String("runId", r.ID))
		return nil
	}
	if !containsStatus(osc.Statuses, r.Status) {
		return nil
	}

	payload, err := json.Marshal(Summary{RunID: r.ID, Status: r.Status, Result: r.Result, Error: r.FailureReason})
	if err != nil {
		return err
	}
	return d.repo.Enqueue(ctx, r.ClusterID, r.ID, payload)
}

func containsStatus(statuses []string, status string) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// DeliverPending claims and attempts up to limit due entries. Driven by a
// background internal/jobs.Worker loop (see module.go).
func (d *Dispatcher) DeliverPending(ctx context.Context, limit int) (delivered, retried int, err error) {
	entries, err := d.repo.ClaimPending(ctx, limit)
	if err != nil {
		return 0, 0, err
	}

	for i := range entries {
		if d.deliver(ctx, &entries[i]) {
			delivered++
		} else {
			retried++
		}
	}
	return delivered, retried, nil
}

// deliver attempts one delivery, returning true iff the entry should be
// marked delivered (success, an unrecoverable config error, or attempts
// exhausted).
func (d *Dispatcher) deliver(ctx context.Context, e *OutboxEntry) bool {
	r, err := d.runs.GetRun(ctx, e.ClusterID, e.RunID)
	if err != nil {
		d.log.Error("status-change delivery: run lookup failed", logger.Error(err), slog.Int64("entryId", e.ID))
		return d.retryOrGiveUp(ctx, e)
	}

	var osc run.OnStatusChange
	if err := json.Unmarshal(r.OnStatusChange, &osc); err != nil {
		d.log.Warn("status-change delivery: unparseable onStatusChange, dropping", slog.Int64("entryId", e.ID))
		_ = d.repo.MarkDelivered(ctx, e.ID)
		return true
	}

	var deliverErr error
	switch osc.Type {
	case "function", "tool":
		deliverErr = d.deliverJob(ctx, e, osc)
	case "webhook":
		deliverErr = d.deliverWebhook(ctx, e, osc)
	case "workflow":
		deliverErr = d.deliverWorkflow(ctx, e, osc)
	default:
		d.log.Warn("status-change delivery: unknown onStatusChange type, dropping", slog.String("type", osc.Type))
		_ = d.repo.MarkDelivered(ctx, e.ID)
		return true
	}

	if deliverErr == nil {
		_ = d.repo.MarkDelivered(ctx, e.ID)
		payload, _ := json.Marshal(map[string]string{"deliveryType": osc.Type})
		d.events.Emit(ctx, e.ClusterID, event.TypeStatusChangeDelivered, event.EmitOptions{
			RunID:   e.RunID,
			Status:  r.Status,
			Payload: payload,
		})
		return true
	}

	d.log.Warn("status-change delivery failed, will retry", logger.Error(deliverErr), slog.Int64("entryId", e.ID), slog.String("type", osc.Type))
	return d.retryOrGiveUp(ctx, e)
}

func (d *Dispatcher) retryOrGiveUp(ctx context.Context, e *OutboxEntry) bool {
	if e.Attempts+1 >= maxAttempts {
		d.log.Error("status-change delivery exhausted retries, giving up", slog.Int64("entryId", e.ID))
		_ = d.repo.MarkDelivered(ctx, e.ID)
		return true
	}
	if err := d.repo.MarkRetry(ctx, e.ID, time.Now().Add(backoffDelay(e.Attempts))); err != nil {
		d.log.Error("failed to schedule status-change retry", logger.Error(err), slog.Int64("entryId", e.ID))
	}
	return false
}

// backoffDelay computes the exponential-with-jitter interval for a retry
// attempt with cenkalti/backoff, rather than a hand-rolled doubling loop.
func backoffDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 5 * time.Minute
	b.Multiplier = 2
	b.RandomizationFactor = 0.2

	var delay time.Duration
	for i := 0; i <= attempts; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

func (d *Dispatcher) deliverJob(ctx context.Context, e *OutboxEntry, osc run.OnStatusChange) error {
	_, err := d.jobs.Create(ctx, e.ClusterID, job.CreateRequest{
		TargetFn:   osc.Target,
		TargetArgs: e.Payload,
	})
	return err
}

func (d *Dispatcher) deliverWorkflow(ctx context.Context, e *OutboxEntry, osc run.OnStatusChange) error {
	if osc.Workflow == nil || osc.Workflow.ExecutionID == "" {
		return fmt.Errorf("onStatusChange type=workflow missing executionId")
	}
	return d.workflows.ReTrigger(ctx, e.ClusterID, osc.Workflow.ExecutionID)
}

func (d *Dispatcher) deliverWebhook(ctx context.Context, e *OutboxEntry, osc run.OnStatusChange) error {
	if osc.URL == "" {
		return fmt.Errorf("onStatusChange type=webhook missing url")
	}

	reqCtx, cancel := context.WithTimeout(ctx, webhookAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, osc.URL, bytes.NewReader(e.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
