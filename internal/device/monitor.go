package device

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shaunagostinho/vedirect-dash/internal/logging"
	"github.com/shaunagostinho/vedirect-dash/internal/metrics"
	"github.com/shaunagostinho/vedirect-dash/internal/vedirect"
)

const (
	readBufferSize  = 512
	connectAttempts = 10
)

// Handler receives every result a monitor decodes, in stream order.
// It runs on the monitor's goroutine.
type Handler func(device string, res vedirect.Result)

// Stats are a device's running counters.
type Stats struct {
	Connected       bool      `json:"connected"`
	Bytes           uint64    `json:"bytes"`
	Records         uint64    `json:"records"`
	ChecksumErrors  uint64    `json:"checksumErrors"`
	MalformedFrames uint64    `json:"malformedFrames"`
	FieldErrors     uint64    `json:"fieldErrors"`
	OtherErrors     uint64    `json:"otherErrors"`
	Reconnects      uint64    `json:"reconnects"`
	LastError       string    `json:"lastError,omitempty"`
	LastRecordAt    time.Time `json:"lastRecordAt"`
	LastRxAt        time.Time `json:"lastRxAt"`
}

// Monitor reads one device, owns its parser and keeps the latest record.
// Run must be called from a single goroutine; the accessors are safe from
// any goroutine.
type Monitor struct {
	name    string
	prov    Provider
	parser  *vedirect.Parser
	handler Handler
	log     *zap.Logger
	buf     []byte

	mu    sync.RWMutex
	stats Stats
	last  vedirect.Record
}

// NewMonitor creates a monitor for prov. handler may be nil.
func NewMonitor(name string, prov Provider, handler Handler, opts ...vedirect.Option) *Monitor {
	return &Monitor{
		name:    name,
		prov:    prov,
		parser:  vedirect.NewParser(opts...),
		handler: handler,
		log:     logging.Component("monitor").With(zap.String("device", name)),
		buf:     make([]byte, readBufferSize),
	}
}

// Name returns the configured device name.
func (m *Monitor) Name() string { return m.name }

// Stats returns a copy of the counters.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Latest returns the most recent good record, or nil.
func (m *Monitor) Latest() vedirect.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Run connects, reads and decodes until ctx is cancelled or a finite
// source ends. Read errors close the provider, drop the partial frame and
// reconnect with backoff.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.disconnect()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if !m.prov.IsConnected() {
			if err := ConnectWithRetry(ctx, m.name, m.prov, connectAttempts); err != nil {
				return nil
			}
			m.setConnected(true)
		}

		n, err := m.prov.ReadRaw(m.buf)
		if n > 0 {
			m.process(m.buf[:n])
		}
		if err == nil {
			continue
		}

		if errors.Is(err, io.EOF) {
			m.finish()
			m.log.Info("source exhausted")
			return nil
		}

		m.log.Warn("read failed, reconnecting", zap.Error(err))
		m.record(func(s *Stats) {
			s.Reconnects++
			s.LastError = err.Error()
		})
		metrics.IncReconnect(m.name)
		m.disconnect()
		m.parser.Reset()
	}
}

// process feeds one chunk and dispatches the results.
func (m *Monitor) process(chunk []byte) {
	now := time.Now()
	metrics.AddBytes(m.name, len(chunk))
	m.record(func(s *Stats) {
		s.Bytes += uint64(len(chunk))
		s.LastRxAt = now
	})

	results := m.parser.Feed(chunk)
	for _, res := range results {
		m.account(res, now)
		if res.Err != nil {
			m.log.Debug("frame rejected", zap.Error(res.Err))
			logging.LogRawBytes(m.name, chunk)
		}
		if m.handler != nil {
			m.handler(m.name, res)
		}
	}
}

// finish reports a truncated trailing frame.
func (m *Monitor) finish() {
	err := m.parser.Flush()
	if err == nil {
		return
	}
	res := vedirect.Result{Err: err}
	m.account(res, time.Now())
	if m.handler != nil {
		m.handler(m.name, res)
	}
}

func (m *Monitor) account(res vedirect.Result, now time.Time) {
	metrics.IncFrame(m.name, res.Err)

	if res.Err != nil {
		m.record(func(s *Stats) {
			switch metrics.FrameResult(res.Err) {
			case metrics.ResultChecksumMismatch:
				s.ChecksumErrors++
			case metrics.ResultMalformed:
				s.MalformedFrames++
			case metrics.ResultUnknownNumeric:
				s.FieldErrors++
			default:
				s.OtherErrors++
			}
			s.LastError = res.Err.Error()
		})
		return
	}

	var fieldErrors uint64
	for _, f := range res.Record.Info().Fields {
		if f.Err != nil {
			fieldErrors++
			metrics.IncFieldError(m.name, f.Label)
		}
	}
	metrics.SetLastRecord(m.name, float64(now.Unix()))

	m.mu.Lock()
	m.stats.Records++
	m.stats.FieldErrors += fieldErrors
	m.stats.LastRecordAt = now
	m.last = res.Record
	m.mu.Unlock()
}

func (m *Monitor) record(update func(*Stats)) {
	m.mu.Lock()
	update(&m.stats)
	m.mu.Unlock()
}

func (m *Monitor) setConnected(up bool) {
	m.mu.Lock()
	changed := m.stats.Connected != up
	m.stats.Connected = up
	m.mu.Unlock()
	if changed {
		metrics.DeviceConnected(up)
	}
}

func (m *Monitor) disconnect() {
	if err := m.prov.Close(); err != nil {
		m.log.Debug("close failed", zap.Error(err))
	}
	m.setConnected(false)
}
