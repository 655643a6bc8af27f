package reconciler

import (
	"testing"

	"github.com/gralabs/snmpworker/models"
)

func sv(idx string, v interface{}) models.SNMPValue {
	return models.SNMPValue{OIDIndex: idx, Value: v}
}

func TestAlignInterfacesMatchesByIndex(t *testing.T) {
	descrs := []models.SNMPValue{sv("1", "Gi0/1"), sv("2", "Gi0/2")}
	speeds := []models.SNMPValue{sv("1", float64(1000000000)), sv("2", float64(100000000))}

	out, err := alignInterfaces(descrs, speeds)
	if err != nil {
		t.Fatalf("alignInterfaces: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d interfaces, want 2", len(out))
	}
	if out["1"].Name != "Gi0/1" || out["1"].SpeedBps != 1000000000 {
		t.Fatalf("got %+v", out["1"])
	}
}

func TestAlignInterfacesMismatchedIndexesErrors(t *testing.T) {
	descrs := []models.SNMPValue{sv("1", "Gi0/1"), sv("2", "Gi0/2")}
	speeds := []models.SNMPValue{sv("1", float64(1000000000))}

	if _, err := alignInterfaces(descrs, speeds); err == nil {
		t.Fatal("expected error for mismatched index sets")
	}
}

func TestSpeedToBpsHandlesMultipleTypes(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int64
	}{
		{float64(1000), 1000},
		{int64(2000), 2000},
		{"3000", 3000},
		{"not a number", 0},
	}
	for _, c := range cases {
		if got := speedToBps(c.in); got != c.want {
			t.Errorf("speedToBps(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}
