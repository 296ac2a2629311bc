package logger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shaunagostinho/vedirect-dash/internal/logging"
	"github.com/shaunagostinho/vedirect-dash/internal/vedirect"
)

// Logger records decoded VE.Direct records to CSV files with automatic rotation.
type Logger struct {
	mu       sync.Mutex
	dir      string
	interval time.Duration
	enabled  bool
	now      func() time.Time
	log      *zap.Logger

	file   *os.File
	writer *csv.Writer
	path   string
	lastTs map[string]time.Time // per device
	rows   int
}

// Config holds logger configuration.
type Config struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Path       string `yaml:"path" json:"path"`
	IntervalMs int    `yaml:"interval_ms" json:"intervalMs" validate:"gte=0"`
}

const (
	maxRowsPerFile  = 100_000 // ~1 day for one device at 1 Hz
	defaultInterval = time.Second
)

var csvHeader = []string{
	"timestamp", "device", "class", "product",
	"voltage_v", "current_a", "power_w", "soc_pct",
	"consumed_ah", "ttg_min",
	"panel_v", "panel_w", "state", "yield_today_kwh", "load_on",
	"ac_out_v", "ac_out_a", "ac_out_va",
	"alarm", "field_errors",
}

// New creates a new Logger.
func New(cfg Config) *Logger {
	if cfg.Path == "" {
		cfg.Path = "/var/log/vedirect-dash"
	}
	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Logger{
		dir:      cfg.Path,
		interval: interval,
		enabled:  cfg.Enabled,
		now:      time.Now,
		log:      logging.Component("csv"),
		lastTs:   make(map[string]time.Time),
	}
}

// SetEnabled allows toggling logging at runtime.
func (l *Logger) SetEnabled(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = on
	if !on && l.file != nil {
		l.closeFile()
	}
}

// IsEnabled returns whether logging is active.
func (l *Logger) IsEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Path returns the file currently being written, if any.
func (l *Logger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Record writes one row for rec if the device's minimum interval has elapsed.
func (l *Logger) Record(device string, rec vedirect.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || rec == nil {
		return
	}

	now := l.now()
	if last, ok := l.lastTs[device]; ok && now.Sub(last) < l.interval {
		return
	}
	l.lastTs[device] = now

	// Open/rotate file if needed
	if l.writer == nil || l.rows >= maxRowsPerFile {
		if err := l.rotateFile(now); err != nil {
			l.log.Error("rotate failed", zap.Error(err))
			return
		}
	}

	row := buildRow(now, device, vedirect.Summarize(rec))
	if err := l.writer.Write(row); err != nil {
		l.log.Error("write failed", zap.Error(err))
		return
	}
	l.writer.Flush()
	l.rows++
}

// Close flushes and closes the current log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeFile()
}

func (l *Logger) rotateFile(now time.Time) error {
	l.closeFile()

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", l.dir, err)
	}

	filename := fmt.Sprintf("vedirect_%s.csv", now.Format("2006-01-02_150405.000"))
	path := filepath.Join(l.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	l.file = f
	l.path = path
	l.writer = csv.NewWriter(f)
	l.rows = 0

	if err := l.writer.Write(csvHeader); err != nil {
		return err
	}
	l.writer.Flush()

	l.log.Info("opened log file", zap.String("path", path))
	return nil
}

func (l *Logger) closeFile() {
	if l.writer != nil {
		l.writer.Flush()
		l.writer = nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	l.path = ""
}

func buildRow(ts time.Time, device string, s vedirect.Summary) []string {
	return []string{
		ts.Format(time.RFC3339Nano),
		device,
		s.Class.String(),
		s.Product,
		floatStr(s.Voltage, 3),
		floatStr(s.Current, 3),
		floatStr(s.Power, 0),
		floatStr(s.SOC, 1),
		floatStr(s.Consumed, 3),
		floatStr(s.TimeToGo, 0),
		floatStr(s.PanelVoltage, 2),
		floatStr(s.PanelPower, 0),
		s.State,
		floatStr(s.YieldToday, 2),
		boolStr(s.LoadOn),
		floatStr(s.ACVoltage, 2),
		floatStr(s.ACCurrent, 1),
		floatStr(s.ACPower, 0),
		s.Alarm,
		strconv.Itoa(s.FieldErrors),
	}
}

// floatStr leaves unreported values empty.
func floatStr(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func boolStr(v *bool) string {
	switch {
	case v == nil:
		return ""
	case *v:
		return "1"
	default:
		return "0"
	}
}
