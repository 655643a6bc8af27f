package trigger

import (
	"testing"
	"time"
)

func TestNewRejectsEmptyPeriods(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for empty period set")
	}
	if _, err := New([]int{0, -5}); err == nil {
		t.Fatal("expected error when all periods are non-positive")
	}
}

func TestNewDeduplicatesAndSorts(t *testing.T) {
	tr, err := New([]int{60, 30, 60, 300})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := tr.Periods()
	want := []int{30, 60, 300}
	if len(got) != len(want) {
		t.Fatalf("Periods() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Periods() = %v, want %v", got, want)
		}
	}
}

func TestNextFireTimeAlignsToSmallestPeriod(t *testing.T) {
	start := time.Unix(1000, 0)
	tr, err := New([]int{30, 60}, WithStartTime(start))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fire := tr.NextFireTime(start)
	if !fire.Equal(start) {
		t.Fatalf("first fire should be at start: got %v want %v", fire, start)
	}
	affecting, ok := tr.Affecting(fire)
	if !ok {
		t.Fatal("expected affecting set for first fire")
	}
	if len(affecting) != 2 {
		t.Fatalf("expected both periods to affect the first fire, got %v", affecting)
	}

	// 1s in: the 30s period is due first, alone.
	next := tr.NextFireTime(start.Add(time.Second))
	if want := start.Add(30 * time.Second); !next.Equal(want) {
		t.Fatalf("next fire = %v, want %v", next, want)
	}
	if affecting, _ := tr.Affecting(next); len(affecting) != 1 || affecting[0] != 30 {
		t.Fatalf("expected only period 30 to affect t=30, got %v", affecting)
	}
}

func TestNextFireTimeCoalescesOnCommonMultiple(t *testing.T) {
	start := time.Unix(0, 0)
	tr, err := New([]int{30, 60}, WithStartTime(start))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// 45s in: 30s period's next multiple is 60, 60s period's next is 60 too.
	fire := tr.NextFireTime(start.Add(45 * time.Second))
	wantFire := start.Add(60 * time.Second)
	if !fire.Equal(wantFire) {
		t.Fatalf("fire = %v, want %v", fire, wantFire)
	}
	affecting, ok := tr.Affecting(fire)
	if !ok {
		t.Fatal("expected affecting set")
	}
	if len(affecting) != 2 {
		t.Fatalf("expected both periods to coalesce at t=60, got %v", affecting)
	}
}

func TestNextFireTimeSelectsOnlyDuePeriods(t *testing.T) {
	start := time.Unix(0, 0)
	tr, err := New([]int{10, 25}, WithStartTime(start))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// 11s in: period 10's next multiple is 20, period 25's next multiple is 25.
	// The earlier one (20) wins and only period 10 affects it.
	fire := tr.NextFireTime(start.Add(11 * time.Second))
	wantFire := start.Add(20 * time.Second)
	if !fire.Equal(wantFire) {
		t.Fatalf("fire = %v, want %v", fire, wantFire)
	}
	affecting, ok := tr.Affecting(fire)
	if !ok {
		t.Fatal("expected affecting set")
	}
	if len(affecting) != 1 || affecting[0] != 10 {
		t.Fatalf("expected only period 10 to affect t=20, got %v", affecting)
	}
}

func TestCleanupEvictsOldAffectingEntries(t *testing.T) {
	start := time.Unix(0, 0)
	tr, err := New([]int{1}, WithStartTime(start), WithForgetAffectingAfter(5*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first := tr.NextFireTime(start)
	// Advance well past the forget window; this triggers cleanup as a side
	// effect of computing the new fire time.
	tr.NextFireTime(start.Add(20 * time.Second))

	if _, ok := tr.Affecting(first); ok {
		t.Fatal("expected first fire's affecting set to have been evicted")
	}
}
