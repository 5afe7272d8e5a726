// Package main provides the entry point for the control-plane server.
//
// @title Agent Control Plane API
// @version 0.1.0
// @description Control plane for a distributed agent runtime: clusters, machines, jobs, runs, memo storage and workflow orchestration
// @license.name Proprietary
// @host localhost:3002
// @BasePath /
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Cluster bearer key (format: "Bearer <key>")
package main

import (
	"context"
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/agentcp/controlplane/domain/cluster"
	"github.com/agentcp/controlplane/domain/event"
	"github.com/agentcp/controlplane/domain/health"
	"github.com/agentcp/controlplane/domain/job"
	"github.com/agentcp/controlplane/domain/machine"
	"github.com/agentcp/controlplane/domain/memo"
	"github.com/agentcp/controlplane/domain/model"
	"github.com/agentcp/controlplane/domain/run"
	"github.com/agentcp/controlplane/domain/scheduler"
	"github.com/agentcp/controlplane/domain/statuschange"
	"github.com/agentcp/controlplane/domain/workflow"
	"github.com/agentcp/controlplane/internal/config"
	"github.com/agentcp/controlplane/internal/database"
	"github.com/agentcp/controlplane/internal/migrate"
	"github.com/agentcp/controlplane/internal/server"
	"github.com/agentcp/controlplane/internal/storage"
	"github.com/agentcp/controlplane/pkg/auth"
	"github.com/agentcp/controlplane/pkg/logger"
)

func main() {
	// Load .env files if present (for local development)
	// Order matters: .env.local overrides .env
	// Note: Load() won't overwrite existing vars, Overload() will
	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")

	fx.New(
		// Logging
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,

		// Migrations run before the HTTP server starts accepting traffic.
		fx.Invoke(runMigrations),

		server.Module,
		storage.Module,
		auth.Module,

		// Domain modules
		health.Module,
		cluster.Module,
		machine.Module,
		model.Module,
		job.Module,
		memo.Module,
		run.Module,
		workflow.Module,
		statuschange.Module,
		scheduler.Module,
		event.Module,

		// Wires domain/run's terminal-status hook to the status-change
		// dispatcher's outbox. Lives here, not in either domain package, so
		// neither needs to import the other.
		fx.Invoke(wireTerminalHook),

		// Wires domain/job's audit-event hook to domain/event, same
		// func-field/setter pattern, same reason.
		fx.Invoke(wireJobEventHook),
	).Run()
}

func runMigrations(lc fx.Lifecycle, m *migrate.Migrator) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return m.Up(ctx)
		},
	})
}

func wireTerminalHook(runSvc *run.Service, dispatcher *statuschange.Dispatcher, eventSvc *event.Service, log *slog.Logger) {
	log = log.With(logger.Scope("main"))
	runSvc.SetTerminalHook(func(ctx context.Context, r *run.Run) {
		eventSvc.Emit(ctx, r.ClusterID, event.TypeRunStatusChanged, event.EmitOptions{
			RunID:   r.ID,
			Status:  r.Status,
			Payload: r.Result,
		})
		if err := dispatcher.Enqueue(ctx, r); err != nil {
			log.Error("failed to enqueue status-change delivery", logger.Error(err), slog.String("runId", r.ID))
		}
	})
}

func wireJobEventHook(jobSvc *job.Service, eventSvc *event.Service) {
	jobSvc.SetEventHook(func(ctx context.Context, j *job.Job, eventType string) {
		opts := event.EmitOptions{
			TargetFn: j.TargetFn,
			Status:   j.Status,
			Payload:  j.Result,
			JobID:    j.ID,
		}
		if j.ExecutingMachineID != nil {
			opts.MachineID = *j.ExecutingMachineID
		}
		if j.RunID != nil {
			opts.RunID = *j.RunID
		}
		eventSvc.Emit(ctx, j.ClusterID, eventType, opts)
	})
}
