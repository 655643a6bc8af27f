// Package trigger implements the multi-interval trigger: a schedule that
// fires whenever any one of several second-aligned periods elapses,
// coalesces simultaneous firings into a single invocation, and reports
// which periods caused each firing.
package trigger

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gralabs/snmpworker/pkg/snmpworker/workerr"
)

// DefaultForgetAffectingAfter is how long a fire time's affecting-period set
// is retained before being garbage-collected on the next NextFireTime call.
const DefaultForgetAffectingAfter = 300 * time.Second

// Trigger computes the next fire time for a fixed set of periods and
// remembers, per fire time, which periods were responsible for it. It is
// safe for concurrent use, though in practice only the scheduler goroutine
// calls NextFireTime.
type Trigger struct {
	mu sync.Mutex

	periods               []int // sorted, deduplicated, whole seconds
	startTS               int64 // unix seconds, set at construction
	forgetAffectingAfter  time.Duration
	affecting             map[int64][]int // fire unix ts -> periods
}

// New creates a Trigger over the given periods (seconds). Duplicates are
// collapsed. Returns a ConfigError if periods is empty.
func New(periods []int, opts ...Option) (*Trigger, error) {
	if len(periods) == 0 {
		return nil, workerr.NewConfigError("trigger requires at least one interval", nil)
	}

	seen := make(map[int]struct{}, len(periods))
	unique := make([]int, 0, len(periods))
	for _, p := range periods {
		if p < 1 {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}
	if len(unique) == 0 {
		return nil, workerr.NewConfigError("trigger requires at least one positive interval", nil)
	}
	sort.Ints(unique)

	t := &Trigger{
		periods:              unique,
		startTS:              time.Now().Unix(),
		forgetAffectingAfter: DefaultForgetAffectingAfter,
		affecting:            make(map[int64][]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Option configures a Trigger at construction time.
type Option func(*Trigger)

// WithStartTime pins start_ts instead of using time.Now(). Tests use this
// to make elapsed-time math deterministic.
func WithStartTime(ts time.Time) Option {
	return func(t *Trigger) { t.startTS = ts.Unix() }
}

// WithForgetAffectingAfter overrides the eviction window for old
// affecting-period entries.
func WithForgetAffectingAfter(d time.Duration) Option {
	return func(t *Trigger) { t.forgetAffectingAfter = d }
}

// Periods returns the trigger's deduplicated, sorted period set.
func (t *Trigger) Periods() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, len(t.periods))
	copy(out, t.periods)
	return out
}

// NextFireTime computes the next fire time at or after now, and records
// which periods are responsible for it. The affecting set for that fire
// time can subsequently be retrieved with Affecting.
func (t *Trigger) NextFireTime(now time.Time) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := now.Sub(time.Unix(t.startTS, 0)).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	nextForPeriod := make([]int64, len(t.periods))
	min := int64(math.MaxInt64)
	for i, p := range t.periods {
		np := int64(math.Ceil(elapsed/float64(p))) * int64(p)
		nextForPeriod[i] = np
		if np < min {
			min = np
		}
	}

	fireTS := t.startTS + min
	var affecting []int
	for i, np := range nextForPeriod {
		if np == min {
			affecting = append(affecting, t.periods[i])
		}
	}
	t.affecting[fireTS] = affecting

	t.cleanup(now.Unix() - int64(t.forgetAffectingAfter.Seconds()))

	return time.Unix(fireTS, 0).UTC()
}

// Affecting returns the set of periods responsible for the given fire time,
// as computed by the most recent NextFireTime call that produced it. The
// second return value is false if the fire time has been garbage-collected
// or was never produced by this trigger.
func (t *Trigger) Affecting(fireTime time.Time) ([]int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	periods, ok := t.affecting[fireTime.Unix()]
	return periods, ok
}

// cleanup evicts affecting-period entries older than limitTS. Caller must
// hold t.mu.
func (t *Trigger) cleanup(limitTS int64) {
	for ts := range t.affecting {
		if ts < limitTS {
			delete(t.affecting, ts)
		}
	}
}
