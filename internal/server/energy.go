package server

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shaunagostinho/vedirect-dash/internal/logging"
)

// maxEnergyGap is the longest sample spacing that is still integrated.
// Longer gaps (device offline, dropped frames) reseed instead.
const maxEnergyGap = 10 * time.Second

// EnergyData is the energy counter info sent to clients.
type EnergyData struct {
	Charged        float64 `json:"charged"`    // kWh into the battery
	Discharged     float64 `json:"discharged"` // kWh out of the battery
	TripCharged    float64 `json:"tripCharged"`
	TripDischarged float64 `json:"tripDischarged"`
}

type powerSample struct {
	watts float64
	at    time.Time
}

// energyMeter integrates battery power into persistent kWh counters.
type energyMeter struct {
	mu     sync.Mutex
	path   string
	totals EnergyData
	last   map[string]powerSample // per device
}

func newEnergyMeter(path string) *energyMeter {
	return &energyMeter{
		path: path,
		last: make(map[string]powerSample),
	}
}

// update adds the energy between the previous sample of this device and
// this one, using the trapezoid rule.
func (e *energyMeter) update(device string, watts float64, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, ok := e.last[device]
	e.last[device] = powerSample{watts: watts, at: at}
	if !ok {
		// First sample, seed only
		return
	}

	dt := at.Sub(prev.at)
	if dt <= 0 || dt > maxEnergyGap {
		return
	}

	kwh := (prev.watts + watts) / 2 * dt.Hours() / 1000
	if kwh > 0 {
		e.totals.Charged += kwh
		e.totals.TripCharged += kwh
	} else {
		e.totals.Discharged -= kwh
		e.totals.TripDischarged -= kwh
	}
}

func (e *energyMeter) snapshot() EnergyData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EnergyData{
		Charged:        round3(e.totals.Charged),
		Discharged:     round3(e.totals.Discharged),
		TripCharged:    round3(e.totals.TripCharged),
		TripDischarged: round3(e.totals.TripDischarged),
	}
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func (e *energyMeter) resetTrip() {
	e.mu.Lock()
	e.totals.TripCharged = 0
	e.totals.TripDischarged = 0
	e.mu.Unlock()
}

// load reads persisted counters from disk.
func (e *energyMeter) load() {
	log := logging.Component("energy")
	data, err := os.ReadFile(e.path)
	if err != nil {
		log.Info("no saved counters, starting at 0", zap.String("path", e.path))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fields := []*float64{
		&e.totals.Charged,
		&e.totals.Discharged,
		&e.totals.TripCharged,
		&e.totals.TripDischarged,
	}
	for i, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if i >= len(fields) {
			break
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(line), 64); err == nil {
			*fields[i] = v
		}
	}
	log.Info("counters loaded",
		zap.Float64("charged_kwh", e.totals.Charged),
		zap.Float64("discharged_kwh", e.totals.Discharged),
	)
}

// save persists the counters to disk.
func (e *energyMeter) save() {
	e.mu.Lock()
	t := e.totals
	e.mu.Unlock()

	os.MkdirAll(filepath.Dir(e.path), 0755)

	data := fmt.Sprintf("%.6f\n%.6f\n%.6f\n%.6f\n", t.Charged, t.Discharged, t.TripCharged, t.TripDischarged)
	if err := os.WriteFile(e.path, []byte(data), 0644); err != nil {
		logging.Component("energy").Error("save failed", zap.Error(err))
	}
}
