package server

import (
	"math"
	"path/filepath"
	"testing"
	"time"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEnergyMeterIntegrates(t *testing.T) {
	e := newEnergyMeter(filepath.Join(t.TempDir(), "energy.dat"))
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	e.update("house", 1000, t0) // seed
	e.update("house", 1000, t0.Add(time.Second))
	e.update("house", -2000, t0.Add(2*time.Second))
	e.update("house", -2000, t0.Add(3*time.Second))

	// 1000W for 1s, then a mixed step that nets -500W for 1s, then -2000W for 1s
	wantCharged := 1000.0 / 3600 / 1000
	wantDischarged := (500.0 + 2000.0) / 3600 / 1000
	if !near(e.totals.Charged, wantCharged) || !near(e.totals.Discharged, wantDischarged) {
		t.Errorf("totals = %+v", e.totals)
	}
	if !near(e.totals.TripCharged, wantCharged) {
		t.Errorf("trip = %+v", e.totals)
	}
}

func TestEnergyMeterSkipsGaps(t *testing.T) {
	e := newEnergyMeter(filepath.Join(t.TempDir(), "energy.dat"))
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	e.update("house", 500, t0)
	e.update("house", 500, t0.Add(time.Minute))   // device was away
	e.update("house", 500, t0.Add(-time.Second))  // clock went backwards
	e.update("solar", 500, t0.Add(2*time.Second)) // other device seeds separately

	if e.totals.Charged != 0 || e.totals.Discharged != 0 {
		t.Errorf("totals = %+v, want zero", e.totals)
	}
}

func TestEnergyMeterPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "energy.dat")
	e := newEnergyMeter(path)
	e.totals = EnergyData{Charged: 1.5, Discharged: 2.25, TripCharged: 0.5, TripDischarged: 0.75}
	e.save()

	loaded := newEnergyMeter(path)
	loaded.load()
	if loaded.totals != e.totals {
		t.Errorf("loaded %+v, want %+v", loaded.totals, e.totals)
	}

	loaded.resetTrip()
	snap := loaded.snapshot()
	if snap.TripCharged != 0 || snap.TripDischarged != 0 || snap.Charged != 1.5 {
		t.Errorf("after reset = %+v", snap)
	}
}
