package counterstore

import (
	"path/filepath"
	"testing"
)

func testStores(t *testing.T) []Store {
	t.Helper()
	mem := NewMemoryStore()

	dir := t.TempDir()
	sqlitePath := filepath.Join(dir, "counters.db")
	sq, err := OpenSQLiteStore(sqlitePath)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	return []Store{mem, sq}
}

func TestStoreMissingIdentReturnsNotFound(t *testing.T) {
	for _, s := range testStores(t) {
		_, ok, err := s.Get("1/2/0/1.3.6.1/0")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ok {
			t.Fatal("expected not-found for unseen ident")
		}
	}
}

func TestStorePutThenGetRoundTrips(t *testing.T) {
	for _, s := range testStores(t) {
		ident := "1/2/0/1.3.6.1/0"
		if err := s.Put(ident, 4242, 1000.5); err != nil {
			t.Fatalf("Put: %v", err)
		}
		rec, ok, err := s.Get(ident)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !ok {
			t.Fatal("expected found after Put")
		}
		if rec.Value != 4242 || rec.TS != 1000.5 {
			t.Fatalf("got %+v, want value=4242 ts=1000.5", rec)
		}
	}
}

func TestStorePutOverwritesPriorValue(t *testing.T) {
	for _, s := range testStores(t) {
		ident := "1/2/0/1.3.6.1/0"
		if err := s.Put(ident, 100, 1.0); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := s.Put(ident, 200, 2.0); err != nil {
			t.Fatalf("Put: %v", err)
		}
		rec, ok, err := s.Get(ident)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !ok || rec.Value != 200 || rec.TS != 2.0 {
			t.Fatalf("got %+v, ok=%v, want value=200 ts=2.0", rec, ok)
		}
	}
}
