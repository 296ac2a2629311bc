package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shaunagostinho/vedirect-dash/internal/vedirect"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func battery(t *testing.T, soc string) vedirect.Record {
	t.Helper()
	results := vedirect.NewParser().Feed(vedirect.Encode(
		vedirect.RawField{Label: "PID", Value: "0x203"},
		vedirect.RawField{Label: "V", Value: "12800"},
		vedirect.RawField{Label: "SOC", Value: soc},
	))
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("decode: %+v", results)
	}
	return results[0].Record
}

func TestSaveAndRecent(t *testing.T) {
	s := openStore(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, soc := range []string{"900", "895", "890"} {
		if err := s.Save("house", battery(t, soc), base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Save("van", battery(t, "500"), base); err != nil {
		t.Fatal(err)
	}

	entries, err := s.Recent("house", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	first := entries[0]
	if first.Device != "house" || first.Class != "battery_monitor" || first.Product != "BMV-700" {
		t.Errorf("entry = %+v", first)
	}
	if *first.Summary.SOC != 89 || !first.CreatedAt.Equal(base.Add(2*time.Minute)) {
		t.Errorf("newest entry SOC/time = %v/%v", *first.Summary.SOC, first.CreatedAt)
	}
	if first.ID == "" || first.ID == entries[1].ID {
		t.Errorf("ids = %q, %q", first.ID, entries[1].ID)
	}

	empty, err := s.Recent("boat", 10)
	if err != nil || len(empty) != 0 {
		t.Errorf("unknown device = %v, %v", empty, err)
	}
}

func TestPrune(t *testing.T) {
	s := openStore(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := s.Save("house", battery(t, "900"), base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.Prune(base.Add(3 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("pruned %d, want 3", n)
	}
	entries, _ := s.Recent("house", 10)
	if len(entries) != 2 {
		t.Errorf("%d entries left, want 2", len(entries))
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save("house", battery(t, "900"), time.Now()); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	entries, err := s.Recent("house", 10)
	if err != nil || len(entries) != 1 {
		t.Errorf("entries after reopen = %d, %v", len(entries), err)
	}
}
