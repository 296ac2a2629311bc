package device

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shaunagostinho/vedirect-dash/internal/vedirect"
)

// drain reads prov into a parser until want records arrive.
func drain(t *testing.T, prov Provider, want int) (records []vedirect.Record, errs []error) {
	t.Helper()
	p := vedirect.NewParser()
	buf := make([]byte, 64)
	for i := 0; i < 100000 && len(records) < want; i++ {
		n, err := prov.ReadRaw(buf)
		if err != nil {
			t.Fatalf("ReadRaw: %v", err)
		}
		for _, res := range p.Feed(buf[:n]) {
			if res.Err != nil {
				errs = append(errs, res.Err)
				continue
			}
			records = append(records, res.Record)
		}
	}
	if len(records) < want {
		t.Fatalf("got %d records, want %d", len(records), want)
	}
	return records, errs
}

func TestDemoProviderModels(t *testing.T) {
	tests := []struct {
		model string
		class vedirect.DeviceClass
	}{
		{ModelBatteryMonitor, vedirect.ClassBatteryMonitor},
		{ModelSolarCharger, vedirect.ClassSolarCharger},
		{ModelInverter, vedirect.ClassInverter},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			d := NewDemoProvider(DemoConfig{Model: tt.model, Seed: 7, HexEvery: 3})
			if err := d.Connect(); err != nil {
				t.Fatal(err)
			}
			records, errs := drain(t, d, 10)
			if len(errs) != 0 {
				t.Errorf("unexpected errors: %v", errs)
			}
			for _, r := range records {
				if r.Class() != tt.class {
					t.Fatalf("class = %v, want %v", r.Class(), tt.class)
				}
				if errs := r.Info().Errors(); len(errs) != 0 {
					t.Fatalf("field errors: %v", errs)
				}
			}
		})
	}
}

func TestDemoProviderCorruption(t *testing.T) {
	d := NewDemoProvider(DemoConfig{Model: ModelBatteryMonitor, CorruptEvery: 2, Seed: 3})
	if err := d.Connect(); err != nil {
		t.Fatal(err)
	}
	_, errs := drain(t, d, 10)
	if len(errs) == 0 {
		t.Fatal("expected rejected frames")
	}
	for _, err := range errs {
		if !errors.Is(err, vedirect.ErrChecksumMismatch) && !errors.Is(err, vedirect.ErrMalformedField) {
			t.Errorf("unexpected error kind: %v", err)
		}
	}
}

func TestDemoProviderUnknownModel(t *testing.T) {
	if err := NewDemoProvider(DemoConfig{Model: "toaster"}).Connect(); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestDemoProviderCloseDuringInterval(t *testing.T) {
	d := NewDemoProvider(DemoConfig{Model: ModelBatteryMonitor, Interval: 300 * time.Millisecond, Seed: 1})
	if err := d.Connect(); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4096)
	for len(d.pending) > 0 || d.frames == 0 {
		if _, err := d.ReadRaw(buf); err != nil {
			t.Fatal(err)
		}
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		d.Close()
	}()
	n, err := d.ReadRaw(buf)
	if !errors.Is(err, ErrNotConnected) || n != 0 {
		t.Errorf("ReadRaw after Close = %d, %v; want 0, ErrNotConnected", n, err)
	}
}

func TestDemoProviderNotConnected(t *testing.T) {
	_, err := NewDemoProvider(DemoConfig{}).ReadRaw(make([]byte, 8))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v", err)
	}
}

func writeCapture(t *testing.T, frames ...[]byte) string {
	t.Helper()
	var data []byte
	for _, f := range frames {
		data = append(data, f...)
	}
	path := filepath.Join(t.TempDir(), "capture.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReplayProvider(t *testing.T) {
	path := writeCapture(t, batteryFrame("12800"), batteryFrame("12700"), batteryFrame("12600"))

	m, c := runMonitor(t, NewReplay(ReplayConfig{Path: path}))
	if len(c.results) != 3 || m.Stats().Records != 3 {
		t.Fatalf("results = %d, stats = %+v", len(c.results), m.Stats())
	}
	bm := m.Latest().(vedirect.BatteryMonitor)
	if *bm.Voltage != 12.6 {
		t.Errorf("last voltage = %v", *bm.Voltage)
	}
}

func TestReplayProviderLoop(t *testing.T) {
	frame := batteryFrame("12800")
	r := NewReplay(ReplayConfig{Path: writeCapture(t, frame), Loop: true})
	if err := r.Connect(); err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	records, errs := drain(t, r, 5)
	if len(records) < 5 || len(errs) != 0 {
		t.Errorf("records = %d, errs = %v", len(records), errs)
	}
}

func TestReplayProviderMissingFile(t *testing.T) {
	r := NewReplay(ReplayConfig{Path: filepath.Join(t.TempDir(), "nope.bin")})
	if err := r.Connect(); err == nil {
		t.Fatal("expected open error")
	}
	if _, err := r.ReadRaw(make([]byte, 4)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v", err)
	}
}

func TestReplayProviderEOF(t *testing.T) {
	r := NewReplay(ReplayConfig{Path: writeCapture(t, []byte("V\t1"))})
	if err := r.Connect(); err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	buf := make([]byte, 16)
	if n, err := r.ReadRaw(buf); n != 3 || err != nil {
		t.Fatalf("first read = %d, %v", n, err)
	}
	if _, err := r.ReadRaw(buf); err != io.EOF {
		t.Errorf("second read err = %v, want EOF", err)
	}
}

func TestSerialProviderDefaults(t *testing.T) {
	s := NewSerial(SerialConfig{PortPath: "/dev/does-not-exist"})
	if s.baudRate != DefaultBaudRate {
		t.Errorf("baud = %d", s.baudRate)
	}
	if _, err := s.ReadRaw(make([]byte, 8)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ReadRaw before Connect = %v", err)
	}
	if err := s.Connect(); err == nil {
		t.Error("expected error opening missing port")
	}
	if s.IsConnected() {
		t.Error("IsConnected after failed Connect")
	}
}
