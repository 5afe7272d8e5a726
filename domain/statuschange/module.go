package statuschange

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/agentcp/controlplane/internal/jobs"
)

// deliveryBatchSize caps how many due deliveries one poll attempts.
const deliveryBatchSize = 20

// Module provides the status-change dispatcher domain. It has no public
// HTTP surface — delivery is driven entirely by the background worker
// registered here, fed by domain/run's terminal hook (wired in
// cmd/server/main.go).
var Module = fx.Module("statuschange",
	fx.Provide(NewRepository),
	fx.Provide(NewDispatcher),
	fx.Invoke(registerDeliveryWorker),
)

// registerDeliveryWorker runs the status-change delivery loop, mirroring
// domain/job's stall reaper on internal/jobs.Worker's polling/lifecycle
// shape.
func registerDeliveryWorker(lc fx.Lifecycle, d *Dispatcher, log *slog.Logger) {
	w := jobs.NewWorker(jobs.DefaultWorkerConfig("status-change-dispatcher"), log, func(ctx context.Context) error {
		delivered, retried, err := d.DeliverPending(ctx, deliveryBatchSize)
		if err != nil {
			return err
		}
		if delivered > 0 || retried > 0 {
			log.Info("status-change deliveries processed", slog.Int("delivered", delivered), slog.Int("retried", retried))
		}
		return nil
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return w.Start(ctx) },
		OnStop:  func(ctx context.Context) error { return w.Stop(ctx) },
	})
}
