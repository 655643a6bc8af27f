package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gralabs/snmpworker/models"
)

type countingRunner struct {
	calls int32
}

func (r *countingRunner) Run(ctx context.Context, payload models.JobPayload, affecting models.AffectingIntervals) error {
	atomic.AddInt32(&r.calls, 1)
	return nil
}

func TestNewSkipsDeviceWithNoIntervals(t *testing.T) {
	payloads := []models.JobPayload{
		{EntityID: 1, Sensors: nil},
	}
	runner := &countingRunner{}
	s, err := New(payloads, runner, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.DeviceCount() != 0 {
		t.Fatalf("got %d devices, want 0", s.DeviceCount())
	}
}

func TestNewBuildsOneEntryPerDeviceWithSensors(t *testing.T) {
	payloads := []models.JobPayload{
		{EntityID: 1, Sensors: []models.Sensor{{IntervalSeconds: 30}}},
		{EntityID: 2, Sensors: []models.Sensor{{IntervalSeconds: 60}}},
	}
	runner := &countingRunner{}
	s, err := New(payloads, runner, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.DeviceCount() != 2 {
		t.Fatalf("got %d devices, want 2", s.DeviceCount())
	}
}

func TestRunFiresDueDevices(t *testing.T) {
	payloads := []models.JobPayload{
		{EntityID: 1, Sensors: []models.Sensor{{IntervalSeconds: 1}}},
	}
	runner := &countingRunner{}
	s, err := New(payloads, runner, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()
	s.Run(ctx)
	s.Stop()

	if atomic.LoadInt32(&runner.calls) == 0 {
		t.Fatal("expected at least one job firing")
	}
}
