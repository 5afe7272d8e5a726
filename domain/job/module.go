package job

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/agentcp/controlplane/internal/jobs"
)

// Module provides the job-dispatch domain.
var Module = fx.Module("job",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(registerStallReaper),
)

// registerStallReaper runs the lease-expiry stall reaper  
// on internal/jobs.Worker's polling/lifecycle shape, generalized from its
// table-scan design to Service.ReclaimExpired.
func registerStallReaper(lc fx.Lifecycle, svc *Service, log *slog.Logger) {
	w := jobs.NewWorker(jobs.DefaultWorkerConfig("job-stall-reaper"), log, func(ctx context.Context) error {
		retried, stalled, err := svc.ReclaimExpired(ctx)
		if err != nil {
			return err
		}
		if retried > 0 || stalled > 0 {
			log.Info("reclaimed expired job leases", slog.Int("retried", retried), slog.Int("stalled", stalled))
		}
		return nil
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return w.Start(ctx) },
		OnStop:  func(ctx context.Context) error { return w.Stop(ctx) },
	})
}
