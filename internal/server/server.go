package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shaunagostinho/vedirect-dash/internal/device"
	"github.com/shaunagostinho/vedirect-dash/internal/logger"
	"github.com/shaunagostinho/vedirect-dash/internal/logging"
	"github.com/shaunagostinho/vedirect-dash/internal/store"
	"github.com/shaunagostinho/vedirect-dash/internal/vedirect"
)

const (
	demoInterval   = time.Second
	demoHexEvery   = 10
	historyDefault = 100
	historyMax     = 5000
)

// Publisher sends records to an external broker.
type Publisher interface {
	Publish(device string, rec vedirect.Record) error
	Close()
}

// History stores and serves past records.
type History interface {
	Save(device string, rec vedirect.Record, at time.Time) error
	Recent(device string, limit int) ([]store.Entry, error)
	Prune(before time.Time) (int64, error)
}

// Options carries the optional outputs. Nil fields are disabled.
type Options struct {
	Publisher Publisher
	History   History
}

// Server runs one monitor per device and broadcasts their records to
// WebSocket clients.
type Server struct {
	cfg      *Config
	monitors []*device.Monitor
	webFS    fs.FS
	logger   *logger.Logger
	pub      Publisher
	history  History
	energy   *energyMeter
	log      *zap.Logger

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader

	savedMu   sync.Mutex
	lastSaved map[string]time.Time // per device, for history spacing
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to all WebSocket clients.
type Frame struct {
	Devices map[string]*DeviceFrame `json:"devices,omitempty"`
	Config  *DisplayConfig          `json:"config,omitempty"`
	Energy  *EnergyData             `json:"energy,omitempty"`
	Stamp   int64                   `json:"stamp"` // Unix ms
}

// DeviceFrame is one device's latest state.
type DeviceFrame struct {
	Name    string            `json:"name"`
	Record  vedirect.Record   `json:"record,omitempty"`
	Summary *vedirect.Summary `json:"summary,omitempty"`
	Stats   device.Stats      `json:"stats"`
}

// New creates a Server with a monitor for every configured device.
func New(cfg *Config, webFS fs.FS, opts Options) *Server {
	energyPath := cfg.Server.EnergyPath
	if energyPath == "" {
		energyPath = filepath.Join(filepath.Dir(cfg.path), "energy.dat")
		if cfg.path == "" {
			energyPath = "/etc/vedirect-dash/energy.dat"
		}
	}

	logCfg := cfg.LoggingSnapshot()
	s := &Server{
		cfg:     cfg,
		webFS:   webFS,
		pub:     opts.Publisher,
		history: opts.History,
		logger: logger.New(logger.Config{
			Enabled:    logCfg.Enabled,
			Path:       logCfg.Path,
			IntervalMs: logCfg.Interval,
		}),
		energy:  newEnergyMeter(energyPath),
		log:     logging.Component("server"),
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		lastSaved: make(map[string]time.Time),
	}

	cfg.mu.RLock()
	for _, d := range cfg.Devices {
		s.monitors = append(s.monitors,
			device.NewMonitor(d.Name, NewProvider(d), s.HandleResult, d.ParserOptions()...))
	}
	cfg.mu.RUnlock()

	s.energy.load()
	return s
}

// Monitors returns the device monitors in config order.
func (s *Server) Monitors() []*device.Monitor { return s.monitors }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// WebSocket endpoint
	r.HandleFunc("/ws", s.handleWS)

	// API
	r.HandleFunc("/api/config", s.handleGetConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/config", s.handlePostConfig).Methods(http.MethodPost)
	r.HandleFunc("/api/devices", s.handleDevices).Methods(http.MethodGet)
	r.HandleFunc("/api/devices/{device}", s.handleDevice).Methods(http.MethodGet)
	r.HandleFunc("/api/history/{device}", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/energy", s.handleEnergy).Methods(http.MethodGet)
	r.HandleFunc("/api/energy/reset-trip", s.handleResetTrip).Methods(http.MethodPost)

	// Metrics
	s.cfg.mu.RLock()
	metricsPath := s.cfg.Server.MetricsPath
	s.cfg.mu.RUnlock()
	r.Handle(metricsPath, promhttp.Handler()).Methods(http.MethodGet)

	// Everything else is the embedded web UI
	r.NotFoundHandler = http.FileServer(http.FS(s.webFS))
	return r
}

// Run starts the monitors, the broadcast loop and the HTTP server.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, m := range s.monitors {
		wg.Add(1)
		go func(m *device.Monitor) {
			defer wg.Done()
			if err := m.Run(ctx); err != nil {
				s.log.Error("monitor stopped", zap.String("device", m.Name()), zap.Error(err))
			}
		}(m)
	}

	go s.broadcastLoop(ctx)
	go s.housekeeping(ctx)

	s.cfg.mu.RLock()
	addr := s.cfg.Server.ListenAddr
	s.cfg.mu.RUnlock()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.log.Info("listening", zap.String("addr", addr))
	err := srv.ListenAndServe()

	cancel()
	wg.Wait()
	s.shutdown()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) shutdown() {
	s.energy.save()
	s.logger.Close()
	if s.pub != nil {
		s.pub.Close()
	}
}

// HandleResult is the monitors' handler. Rejected frames are already
// counted by the monitor; good records go to every enabled output.
func (s *Server) HandleResult(name string, res vedirect.Result) {
	if res.Err != nil {
		return
	}
	rec := res.Record
	now := time.Now()

	s.logger.Record(name, rec)

	if bm, ok := rec.(vedirect.BatteryMonitor); ok && bm.Power != nil {
		s.energy.update(name, *bm.Power, now)
	}

	if s.history != nil && s.shouldSave(name, now) {
		if err := s.history.Save(name, rec, now); err != nil {
			s.log.Warn("history save failed", zap.String("device", name), zap.Error(err))
		}
	}

	if s.pub != nil {
		if err := s.pub.Publish(name, rec); err != nil {
			s.log.Debug("publish failed", zap.String("device", name), zap.Error(err))
		}
	}
}

func (s *Server) shouldSave(name string, now time.Time) bool {
	s.cfg.mu.RLock()
	interval := time.Duration(s.cfg.Store.IntervalSec) * time.Second
	s.cfg.mu.RUnlock()

	s.savedMu.Lock()
	defer s.savedMu.Unlock()
	if last, ok := s.lastSaved[name]; ok && now.Sub(last) < interval {
		return false
	}
	s.lastSaved[name] = now
	return true
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()

	s.log.Info("client connected", zap.Int("clients", total))

	// Send initial config, energy and device state
	display := s.cfg.DisplaySnapshot()
	energy := s.energy.snapshot()
	initial := Frame{
		Devices: s.snapshot(),
		Config:  &display,
		Energy:  &energy,
		Stamp:   time.Now().UnixMilli(),
	}
	if data, err := json.Marshal(initial); err == nil {
		client.send <- data
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (keep-alive, detects disconnect)
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			total := len(s.clients)
			close(client.send)
			s.clientsMu.Unlock()
			s.log.Info("client disconnected", zap.Int("clients", total))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	data, err := s.cfg.ToJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := s.cfg.UpdateFromJSON(body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.cfg.Save(); err != nil {
		s.log.Warn("config save failed", zap.Error(err))
	}
	s.logger.SetEnabled(s.cfg.LoggingSnapshot().Enabled)

	// Broadcast updated display config
	display := s.cfg.DisplaySnapshot()
	s.broadcast(Frame{Config: &display, Stamp: time.Now().UnixMilli()})

	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	frames := s.snapshot()
	list := make([]*DeviceFrame, 0, len(frames))
	for _, m := range s.monitors {
		list = append(list, frames[m.Name()])
	}
	writeJSON(w, list)
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["device"]
	m := s.monitor(name)
	if m == nil {
		http.Error(w, "unknown device", http.StatusNotFound)
		return
	}
	writeJSON(w, deviceFrame(m))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	name := mux.Vars(r)["device"]
	if s.monitor(name) == nil {
		http.Error(w, "unknown device", http.StatusNotFound)
		return
	}

	limit := historyDefault
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = min(n, historyMax)
	}

	entries, err := s.history.Recent(name, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

func (s *Server) handleEnergy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.energy.snapshot())
}

func (s *Server) handleResetTrip(w http.ResponseWriter, r *http.Request) {
	s.energy.resetTrip()
	s.energy.save()
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) monitor(name string) *device.Monitor {
	for _, m := range s.monitors {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

func deviceFrame(m *device.Monitor) *DeviceFrame {
	f := &DeviceFrame{Name: m.Name(), Stats: m.Stats()}
	if rec := m.Latest(); rec != nil {
		sum := vedirect.Summarize(rec)
		f.Record = rec
		f.Summary = &sum
	}
	return f
}

func (s *Server) snapshot() map[string]*DeviceFrame {
	frames := make(map[string]*DeviceFrame, len(s.monitors))
	for _, m := range s.monitors {
		frames[m.Name()] = deviceFrame(m)
	}
	return frames
}

// broadcastLoop sends every device's latest state to clients at a fixed rate.
func (s *Server) broadcastLoop(ctx context.Context) {
	s.cfg.mu.RLock()
	hz := s.cfg.Server.BroadcastHz
	s.cfg.mu.RUnlock()
	if hz <= 0 {
		hz = 2
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if len(s.monitors) == 0 {
				continue
			}
			energy := s.energy.snapshot()
			s.broadcast(Frame{
				Devices: s.snapshot(),
				Energy:  &energy,
				Stamp:   time.Now().UnixMilli(),
			})
		}
	}
}

// housekeeping persists energy counters every 30 seconds and prunes
// history hourly.
func (s *Server) housekeeping(ctx context.Context) {
	saveTicker := time.NewTicker(30 * time.Second)
	pruneTicker := time.NewTicker(time.Hour)
	defer saveTicker.Stop()
	defer pruneTicker.Stop()

	s.prune()
	for {
		select {
		case <-ctx.Done():
			return
		case <-saveTicker.C:
			s.energy.save()
		case <-pruneTicker.C:
			s.prune()
		}
	}
}

func (s *Server) prune() {
	s.cfg.mu.RLock()
	days := s.cfg.Store.RetentionDays
	s.cfg.mu.RUnlock()
	if s.history == nil || days <= 0 {
		return
	}

	n, err := s.history.Prune(time.Now().AddDate(0, 0, -days))
	if err != nil {
		s.log.Warn("history prune failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("history pruned", zap.Int64("rows", n))
	}
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.log.Error("frame encode failed", zap.Error(err))
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
