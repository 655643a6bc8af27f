// Package scheduler drives per-device job firings off a multi-interval
// trigger: each device gets its own trigger over its sensors' distinct
// intervals, and the scheduler's loop fires whichever device's next run is
// soonest, dispatching into a fixed-size worker pool. Firings carry the set
// of periods that caused them so the job only polls the sensors actually
// due.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gralabs/snmpworker/models"
	"github.com/gralabs/snmpworker/pkg/snmpworker/trigger"
)

// DefaultWorkerCount matches the original bot's fixed-size process pool.
const DefaultWorkerCount = 10

// DefaultMisfireGrace is how far behind schedule a firing may run before
// it is dropped instead of executed, matching APScheduler's coalesce
// behavior for a single missed run.
const DefaultMisfireGrace = 10 * time.Second

// JobRunner executes one device's due sensors. Implemented by
// *job.Runner; declared here as an interface so tests can inject a stub
// without importing the job package.
type JobRunner interface {
	Run(ctx context.Context, payload models.JobPayload, affecting models.AffectingIntervals) error
}

type deviceEntry struct {
	payload models.JobPayload
	trigger *trigger.Trigger
	nextRun time.Time

	mu      sync.Mutex
	running bool
}

// Scheduler dispatches device job firings into a bounded worker pool.
// Devices whose previous firing is still running are coalesced: the new
// firing is dropped with a warning rather than queued, matching
// coalesce=true/max_instances=1.
type Scheduler struct {
	runner JobRunner
	log    *slog.Logger

	workers      int
	misfireGrace time.Duration

	mu      sync.Mutex
	devices []*deviceEntry

	sem  chan struct{}
	done chan struct{}
}

// New builds a Scheduler. One Trigger is constructed per device over the
// distinct sensor intervals present in payload.Sensors; a device with no
// sensors is skipped.
func New(payloads []models.JobPayload, runner JobRunner, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		runner:       runner,
		log:          log,
		workers:      DefaultWorkerCount,
		misfireGrace: DefaultMisfireGrace,
		sem:          make(chan struct{}, DefaultWorkerCount),
		done:         make(chan struct{}),
	}

	now := time.Now()
	for _, p := range payloads {
		periods := distinctIntervals(p.Sensors)
		if len(periods) == 0 {
			log.Warn("device has no sensors with a set interval, skipping", "entity_id", p.EntityID)
			continue
		}
		tr, err := trigger.New(periods, trigger.WithStartTime(now))
		if err != nil {
			return nil, err
		}
		s.devices = append(s.devices, &deviceEntry{
			payload: p,
			trigger: tr,
			nextRun: tr.NextFireTime(now),
		})
	}
	return s, nil
}

func distinctIntervals(sensors []models.Sensor) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, s := range sensors {
		if s.IntervalSeconds <= 0 {
			continue
		}
		if _, ok := seen[s.IntervalSeconds]; ok {
			continue
		}
		seen[s.IntervalSeconds] = struct{}{}
		out = append(out, s.IntervalSeconds)
	}
	return out
}

// Run blocks until ctx is cancelled, firing devices as their triggers come
// due and waiting for all in-flight firings to drain before returning.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		close(s.done)
	}()

	for {
		s.mu.Lock()
		if len(s.devices) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
				continue
			}
		}
		sort.Slice(s.devices, func(i, j int) bool { return s.devices[i].nextRun.Before(s.devices[j].nextRun) })
		next := s.devices[0].nextRun
		s.mu.Unlock()

		delay := time.Until(next)
		if delay < 0 {
			delay = 0
		}
		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		now := time.Now()
		s.mu.Lock()
		for _, d := range s.devices {
			if d.nextRun.After(now) {
				break
			}
			fireAt := d.nextRun
			d.nextRun = d.trigger.NextFireTime(now)
			d := d
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.fire(ctx, d, fireAt, now)
			}()
		}
		s.mu.Unlock()
	}
}

// Stop waits for the run loop to exit. The caller must cancel the context
// passed to Run first.
func (s *Scheduler) Stop() {
	<-s.done
}

func (s *Scheduler) fire(ctx context.Context, d *deviceEntry, scheduledFor, now time.Time) {
	if now.Sub(scheduledFor) > s.misfireGrace {
		s.log.Warn("job missed its run time window, dropping", "entity_id", d.payload.EntityID, "scheduled_for", scheduledFor, "late_by", now.Sub(scheduledFor))
		return
	}

	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		s.log.Warn("previous firing still running, coalescing", "entity_id", d.payload.EntityID)
		return
	}
	d.running = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	affecting, ok := d.trigger.Affecting(scheduledFor)
	if !ok {
		s.log.Warn("no affecting intervals recorded for fire time, skipping", "entity_id", d.payload.EntityID)
		return
	}
	set := make(models.AffectingIntervals, len(affecting))
	for _, p := range affecting {
		set[p] = struct{}{}
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", "entity_id", d.payload.EntityID, "panic", r)
		}
	}()

	if err := s.runner.Run(ctx, d.payload, set); err != nil {
		s.log.Warn("job failed", "entity_id", d.payload.EntityID, "err", err)
		return
	}
	s.log.Debug("job executed", "entity_id", d.payload.EntityID)
}

// DeviceCount reports how many devices currently have a scheduled trigger.
func (s *Scheduler) DeviceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}

// Reload atomically replaces the device list from a fresh job discovery.
// Every device's trigger is rebuilt from scratch, started at the reload
// time — new and removed devices, and any interval change for an existing
// device, all take effect starting with the next fire.
func (s *Scheduler) Reload(payloads []models.JobPayload) error {
	now := time.Now()
	var devices []*deviceEntry
	for _, p := range payloads {
		periods := distinctIntervals(p.Sensors)
		if len(periods) == 0 {
			s.log.Warn("device has no sensors with a set interval, skipping", "entity_id", p.EntityID)
			continue
		}
		tr, err := trigger.New(periods, trigger.WithStartTime(now))
		if err != nil {
			return err
		}
		devices = append(devices, &deviceEntry{
			payload: p,
			trigger: tr,
			nextRun: tr.NextFireTime(now),
		})
	}

	s.mu.Lock()
	s.devices = devices
	s.mu.Unlock()
	s.log.Info("scheduler: jobs reloaded", "devices", len(devices))
	return nil
}
