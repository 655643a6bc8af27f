package pipeline

import (
	"testing"

	"github.com/gralabs/snmpworker/models"
	"github.com/gralabs/snmpworker/pkg/snmpworker/counterstore"
)

func counterEntry(oid, idx string, v int64, typ models.SNMPType) models.PollResult {
	return models.PollResult{models.SingleEntry(models.SNMPValue{OID: oid, OIDIndex: idx, Type: typ, Value: v})}
}

func TestConvertCountersNoCounterPassesThrough(t *testing.T) {
	store := counterstore.NewMemoryStore()
	result := models.PollResult{models.SingleEntry(gauge("1.3.6.1.4.1.1", "0", 99))}

	out, err := ConvertCounters(result, 1, 1, store, 1000, nil)
	if err != nil {
		t.Fatalf("ConvertCounters: %v", err)
	}
	if out[0].Single.Value != float64(99) {
		t.Fatalf("got %+v", out[0].Single)
	}
}

func TestConvertCountersFirstReadYieldsNil(t *testing.T) {
	store := counterstore.NewMemoryStore()
	result := counterEntry("1.3.6.1.2.1.2.2.1.10", "1", 1000, models.TypeCounter)

	out, err := ConvertCounters(result, 1, 1, store, 1000, nil)
	if err != nil {
		t.Fatalf("ConvertCounters: %v", err)
	}
	if out[0].Single.Value != nil {
		t.Fatalf("expected nil on first read, got %v", out[0].Single.Value)
	}
}

func TestConvertCountersSecondReadYieldsRate(t *testing.T) {
	store := counterstore.NewMemoryStore()
	result1 := counterEntry("1.3.6.1.2.1.2.2.1.10", "1", 1000, models.TypeCounter)
	if _, err := ConvertCounters(result1, 1, 1, store, 1000, nil); err != nil {
		t.Fatalf("first ConvertCounters: %v", err)
	}

	result2 := counterEntry("1.3.6.1.2.1.2.2.1.10", "1", 1100, models.TypeCounter)
	out, err := ConvertCounters(result2, 1, 1, store, 1010, nil)
	if err != nil {
		t.Fatalf("second ConvertCounters: %v", err)
	}
	rate, ok := out[0].Single.Value.(float64)
	if !ok {
		t.Fatalf("expected float64 rate, got %v", out[0].Single.Value)
	}
	if rate != 10 {
		t.Fatalf("got rate %v, want 10", rate)
	}
}

// TestConvertCountersOverflowDetected covers the counter-decrease case: the
// original bot never infers a wrap, it simply emits null and waits for the
// next reading.
func TestConvertCountersOverflowDetected(t *testing.T) {
	store := counterstore.NewMemoryStore()
	result1 := counterEntry("1.3.6.1.2.1.2.2.1.10", "1", 4294967290, models.TypeCounter)
	if _, err := ConvertCounters(result1, 1, 1, store, 1000, nil); err != nil {
		t.Fatalf("first ConvertCounters: %v", err)
	}

	result2 := counterEntry("1.3.6.1.2.1.2.2.1.10", "1", 10, models.TypeCounter)
	out, err := ConvertCounters(result2, 1, 1, store, 1010, nil)
	if err != nil {
		t.Fatalf("second ConvertCounters: %v", err)
	}
	if out[0].Single.Value != nil {
		t.Fatalf("expected nil on counter decrease, got %v", out[0].Single.Value)
	}
}

func TestConvertCountersResetYieldsNil(t *testing.T) {
	store := counterstore.NewMemoryStore()
	result1 := counterEntry("1.3.6.1.2.1.2.2.1.10", "1", 5000000000, models.TypeCounter64)
	if _, err := ConvertCounters(result1, 1, 1, store, 1000, nil); err != nil {
		t.Fatalf("first ConvertCounters: %v", err)
	}

	result2 := counterEntry("1.3.6.1.2.1.2.2.1.10", "1", 10, models.TypeCounter64)
	out, err := ConvertCounters(result2, 1, 1, store, 1010, nil)
	if err != nil {
		t.Fatalf("second ConvertCounters: %v", err)
	}
	if out[0].Single.Value != nil {
		t.Fatalf("expected nil on counter decrease, got %v", out[0].Single.Value)
	}
}
