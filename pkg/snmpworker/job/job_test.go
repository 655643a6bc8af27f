package job

import (
	"testing"

	"github.com/gralabs/snmpworker/models"
)

func TestSelectActiveSensorsFiltersByInterval(t *testing.T) {
	sensors := []models.Sensor{
		{SensorID: 1, IntervalSeconds: 30},
		{SensorID: 2, IntervalSeconds: 60},
		{SensorID: 3, IntervalSeconds: 300},
	}
	affecting := models.AffectingIntervals{30: {}, 300: {}}

	active := selectActiveSensors(sensors, affecting)
	if len(active) != 2 {
		t.Fatalf("got %d active sensors, want 2: %+v", len(active), active)
	}
	if active[0].SensorID != 1 || active[1].SensorID != 3 {
		t.Fatalf("got sensor ids %d, %d", active[0].SensorID, active[1].SensorID)
	}
}

func TestSelectActiveSensorsEmptyWhenNoneAffecting(t *testing.T) {
	sensors := []models.Sensor{{SensorID: 1, IntervalSeconds: 30}}
	affecting := models.AffectingIntervals{60: {}}

	active := selectActiveSensors(sensors, affecting)
	if len(active) != 0 {
		t.Fatalf("got %d active sensors, want 0", len(active))
	}
}
