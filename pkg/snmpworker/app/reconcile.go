package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/gralabs/snmpworker/models"
	"github.com/gralabs/snmpworker/pkg/snmpworker/backend"
	"github.com/gralabs/snmpworker/pkg/snmpworker/reconciler"
	"github.com/gralabs/snmpworker/pkg/snmpworker/scheduler"
)

// runReconcileLoop reconciles every device's interface entities once
// immediately and then every interval, until ctx is cancelled. A single
// device's failure is logged and does not stop the loop or its siblings.
// The job list is read fresh from jobs on every pass so a concurrent
// refresh is picked up without restarting the loop.
func runReconcileLoop(ctx context.Context, recon *reconciler.Reconciler, jobs *jobSet, interval time.Duration, log *slog.Logger) {
	reconcileOnce(ctx, recon, jobs.Get(), log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reconcileOnce(ctx, recon, jobs.Get(), log)
		}
	}
}

// runJobsRefreshLoop re-fetches the job list from the backend every
// interval and pushes it into both the scheduler and the shared jobSet
// the reconcile loop reads from, matching the original bot's periodic
// rediscovery of accounts/entities/sensors.
func runJobsRefreshLoop(ctx context.Context, client *backend.Client, sched *scheduler.Scheduler, jobs *jobSet, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fresh, err := client.FetchJobs(ctx)
			if err != nil {
				log.Warn("jobs refresh failed, keeping previous job list", "err", err)
				continue
			}
			if err := sched.Reload(fresh); err != nil {
				log.Warn("scheduler reload failed, keeping previous job list", "err", err)
				continue
			}
			jobs.Set(fresh)
			log.Info("jobs refreshed", "count", len(fresh))
		}
	}
}

func reconcileOnce(ctx context.Context, recon *reconciler.Reconciler, jobs []models.JobPayload, log *slog.Logger) {
	for _, payload := range jobs {
		if err := recon.Reconcile(ctx, payload); err != nil {
			log.Warn("interface reconcile failed", "entity_id", payload.EntityID, "err", err)
		}
	}
}
