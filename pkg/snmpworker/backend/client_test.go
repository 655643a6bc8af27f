package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEffectiveIntervalPrefersOverride(t *testing.T) {
	override, def := 30, 60
	got, ok := effectiveInterval(&override, &def)
	if !ok || got != 30 {
		t.Fatalf("got (%d, %v), want (30, true)", got, ok)
	}
}

func TestEffectiveIntervalFallsBackToDefault(t *testing.T) {
	def := 60
	got, ok := effectiveInterval(nil, &def)
	if !ok || got != 60 {
		t.Fatalf("got (%d, %v), want (60, true)", got, ok)
	}
}

func TestEffectiveIntervalDropsWhenBothUnset(t *testing.T) {
	if _, ok := effectiveInterval(nil, nil); ok {
		t.Fatal("expected ok=false when both interval and default are unset")
	}
}

// TestFetchJobsWalksFullDiscoveryPipeline exercises accounts -> entities ->
// entity detail -> credential -> per-sensor detail, including the
// interval fallback and a sensor that must be dropped for having neither
// an override nor a default interval.
func TestFetchJobsWalksFullDiscoveryPipeline(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]account{{ID: 1}})
	})
	mux.HandleFunc("/accounts/1/entities/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]entity{{ID: 42, Type: "device"}})
	})
	mux.HandleFunc("/accounts/1/entities/42", func(w http.ResponseWriter, r *http.Request) {
		credID := int64(7)
		detail := entityDetail{ID: 42, Type: "device"}
		detail.Details.IPv4 = "192.0.2.1"
		detail.Protocols = map[string]protocolEntry{
			"snmp": {
				Credential: &credID,
				Sensors: []sensorRef{
					{SensorID: 1, Interval: intPtr(30)},
					{SensorID: 2},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(detail)
	})
	mux.HandleFunc("/accounts/1/credentials/7", func(w http.ResponseWriter, r *http.Request) {
		resp := credentialResponse{Details: credentialDetail{Version: "snmpv2c", Community: "public"}}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/accounts/1/sensors/1", func(w http.ResponseWriter, r *http.Request) {
		def := 60
		resp := sensorResponse{DefaultInterval: &def}
		resp.Details.Expression = "$1"
		resp.Details.OutputPathTemplate = "cpu.load"
		resp.Details.OIDs = []struct {
			OID    string `json:"oid"`
			Method string `json:"method"`
		}{{OID: "1.3.6.1.4.1.1", Method: "get"}}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/accounts/1/sensors/2", func(w http.ResponseWriter, r *http.Request) {
		// No per-entity override and no default_interval: this sensor
		// should be dropped, not the whole device.
		resp := sensorResponse{}
		resp.Details.Expression = "$1"
		resp.Details.OutputPathTemplate = "mem.used"
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "test-token", nil)
	jobs, err := c.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("FetchJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	job := jobs[0]
	if job.AccountID != 1 || job.EntityID != 42 || job.IPv4 != "192.0.2.1" {
		t.Fatalf("got %+v", job)
	}
	if job.Credential.Community != "public" {
		t.Fatalf("got credential %+v", job.Credential)
	}
	if len(job.Sensors) != 1 {
		t.Fatalf("got %d sensors, want 1 (sensor with no usable interval must be dropped): %+v", len(job.Sensors), job.Sensors)
	}
	if job.Sensors[0].SensorID != 1 || job.Sensors[0].IntervalSeconds != 30 {
		t.Fatalf("got sensor %+v, want override interval 30", job.Sensors[0])
	}
}

func TestFetchJobsSkipsEntityMissingSnmpProtocol(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]account{{ID: 1}})
	})
	mux.HandleFunc("/accounts/1/entities/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]entity{{ID: 42, Type: "device"}})
	})
	mux.HandleFunc("/accounts/1/entities/42", func(w http.ResponseWriter, r *http.Request) {
		detail := entityDetail{ID: 42, Type: "device"}
		detail.Protocols = map[string]protocolEntry{}
		_ = json.NewEncoder(w).Encode(detail)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "test-token", nil)
	jobs, err := c.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("FetchJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("got %d jobs, want 0", len(jobs))
	}
}

func intPtr(n int) *int { return &n }
