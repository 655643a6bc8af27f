// Package app wires the worker's components together and manages their
// lifecycle: discover jobs from the backend, build a scheduler and a
// per-device interface reconciler over them, and run both until the
// context is cancelled.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gralabs/snmpworker/pkg/snmpworker/backend"
	"github.com/gralabs/snmpworker/pkg/snmpworker/counterstore"
	"github.com/gralabs/snmpworker/pkg/snmpworker/job"
	"github.com/gralabs/snmpworker/pkg/snmpworker/poller"
	"github.com/gralabs/snmpworker/pkg/snmpworker/reconciler"
	"github.com/gralabs/snmpworker/pkg/snmpworker/scheduler"
)

// Config holds the worker's top-level settings. Zero-value fields fall
// back to documented defaults.
type Config struct {
	// BackendURL is the base URL of the control-plane backend.
	BackendURL string

	// BotToken authenticates every backend request.
	BotToken string

	// CounterStorePath is the sqlite database file for counter history. If
	// empty, counter state is kept in memory only and does not survive a
	// restart.
	CounterStorePath string

	// JobsRefreshInterval controls how often the job list is re-fetched
	// from the backend. Default: 120s.
	JobsRefreshInterval time.Duration

	// ReconcileIntervalSeconds controls how often each device's interface
	// entities are re-synced. Default: reconciler.DefaultIntervalSeconds.
	ReconcileIntervalSeconds int

	// ReadinessPollInterval controls how often the backend's readiness
	// probe is retried at startup. Default: backend.DefaultReadinessPollInterval.
	ReadinessPollInterval time.Duration
}

func (c *Config) withDefaults() {
	if c.JobsRefreshInterval <= 0 {
		c.JobsRefreshInterval = 120 * time.Second
	}
	if c.ReconcileIntervalSeconds <= 0 {
		c.ReconcileIntervalSeconds = reconciler.DefaultIntervalSeconds
	}
	if c.ReadinessPollInterval <= 0 {
		c.ReadinessPollInterval = backend.DefaultReadinessPollInterval
	}
}

// App owns the worker's components and their lifecycle.
type App struct {
	cfg Config
	log *slog.Logger

	store   counterstore.Store
	backend *backend.Client

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an App. It does not start anything — call Start for
// that.
func New(cfg Config, log *slog.Logger) *App {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg.withDefaults()
	return &App{cfg: cfg, log: log}
}

// Start waits for the backend to be ready, fetches the job list, and
// launches the scheduler and reconciler goroutines. It returns once both
// are running; callers should call Stop to shut down.
func (a *App) Start(ctx context.Context) error {
	a.log.Info("app: opening counter store")
	store, err := openStore(a.cfg.CounterStorePath)
	if err != nil {
		return fmt.Errorf("app: open counter store: %w", err)
	}
	a.store = store

	a.backend = backend.New(a.cfg.BackendURL, a.cfg.BotToken, a.log)

	a.log.Info("app: waiting for backend readiness")
	if err := a.backend.WaitReady(ctx, a.cfg.ReadinessPollInterval); err != nil {
		return fmt.Errorf("app: backend not ready: %w", err)
	}

	a.log.Info("app: discovering jobs")
	jobs, err := a.backend.FetchJobs(ctx)
	if err != nil {
		return fmt.Errorf("app: fetch jobs: %w", err)
	}
	a.log.Info("app: jobs discovered", "count", len(jobs))

	p := poller.New(a.log)
	runner := job.NewRunner(p, a.store, a.backend, a.log, nowUnixFractional)

	sched, err := scheduler.New(jobs, runner, a.log)
	if err != nil {
		return fmt.Errorf("app: build scheduler: %w", err)
	}
	jobs2 := newJobSet(jobs)

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		sched.Run(runCtx)
	}()

	recon := reconciler.New(p, a.backend, a.log)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		runReconcileLoop(runCtx, recon, jobs2, time.Duration(a.cfg.ReconcileIntervalSeconds)*time.Second, a.log)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		runJobsRefreshLoop(runCtx, a.backend, sched, jobs2, a.cfg.JobsRefreshInterval, a.log)
	}()

	a.log.Info("app: running", "devices", sched.DeviceCount())
	return nil
}

// Stop cancels the running goroutines and waits for them to drain.
func (a *App) Stop() {
	a.log.Info("app: shutting down")
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error("app: counter store close error", "err", err)
		}
	}
	a.log.Info("app: shutdown complete")
}

func openStore(path string) (counterstore.Store, error) {
	if path == "" {
		return counterstore.NewMemoryStore(), nil
	}
	return counterstore.OpenSQLiteStore(path)
}

func nowUnixFractional() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
