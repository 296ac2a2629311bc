package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/shaunagostinho/vedirect-dash/internal/device"
	"github.com/shaunagostinho/vedirect-dash/internal/logging"
	"github.com/shaunagostinho/vedirect-dash/internal/publish"
	"github.com/shaunagostinho/vedirect-dash/internal/store"
	"github.com/shaunagostinho/vedirect-dash/internal/vedirect"
)

// Config holds all dashboard configuration.
type Config struct {
	mu sync.RWMutex

	// VE.Direct ports
	Devices []DeviceConfig `yaml:"devices" json:"devices" validate:"min=1,unique=Name,dive"`

	// Display preferences
	Display DisplayConfig `yaml:"display" json:"display"`

	// CSV logging
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Outputs
	MQTT  publish.Config `yaml:"mqtt" json:"mqtt"`
	Store store.Config   `yaml:"store" json:"store"`

	// Server
	Server ServerConfig `yaml:"server" json:"server"`

	path string // file path for save/load
}

// Device types
const (
	TypeSerial = "serial"
	TypeDemo   = "demo"
	TypeReplay = "replay"
)

type DeviceConfig struct {
	Name      string `yaml:"name" json:"name" validate:"required,max=32"`
	Type      string `yaml:"type" json:"type" validate:"oneof=serial demo replay"`
	PortPath  string `yaml:"port_path" json:"portPath" validate:"required_if=Type serial"` // e.g. /dev/ttyUSB0
	BaudRate  int    `yaml:"baud_rate" json:"baudRate" validate:"gte=0"`
	Strict    bool   `yaml:"strict" json:"strict"`                                  // reject frames with undecodable values
	MaxFields int    `yaml:"max_fields" json:"maxFields" validate:"gte=0,lte=1024"` // 0 = parser default

	// demo
	Model        string `yaml:"model" json:"model" validate:"omitempty,oneof=bmv mppt inverter"`
	CorruptEvery int    `yaml:"corrupt_every" json:"corruptEvery" validate:"gte=0"`

	// replay
	ReplayPath string `yaml:"replay_path" json:"replayPath" validate:"required_if=Type replay"`
	Loop       bool   `yaml:"loop" json:"loop"`
}

type DisplayConfig struct {
	Thresholds ThresholdConfig `yaml:"thresholds" json:"thresholds"`
	Layout     string          `yaml:"layout" json:"layout"` // "grid" or "compact"
}

type ThresholdConfig struct {
	SOCWarn    float64 `yaml:"soc_warn" json:"socWarn"`        // %
	SOCDanger  float64 `yaml:"soc_danger" json:"socDanger"`    // %
	BattLow    float64 `yaml:"batt_low" json:"battLow"`        // V
	BattHigh   float64 `yaml:"batt_high" json:"battHigh"`      // V
	PVPowerMax float64 `yaml:"pv_power_max" json:"pvPowerMax"` // W, gauge full scale
	ACLoadWarn float64 `yaml:"ac_load_warn" json:"acLoadWarn"` // VA
}

type LoggingConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Path     string `yaml:"path" json:"path"`
	Interval int    `yaml:"interval_ms" json:"intervalMs" validate:"gte=0"` // ms between rows per device
}

type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr" json:"listenAddr" validate:"required"`
	MetricsPath string `yaml:"metrics_path" json:"metricsPath" validate:"required,startswith=/"`
	BroadcastHz int    `yaml:"broadcast_hz" json:"broadcastHz" validate:"gte=1,lte=50"`
	EnergyPath  string `yaml:"energy_path" json:"energyPath"` // default: next to the config file
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Devices: []DeviceConfig{
			{Name: "battery", Type: TypeDemo, Model: device.ModelBatteryMonitor, PortPath: "/dev/ttyUSB0", BaudRate: device.DefaultBaudRate},
			{Name: "solar", Type: TypeDemo, Model: device.ModelSolarCharger, PortPath: "/dev/ttyUSB1", BaudRate: device.DefaultBaudRate},
		},
		Display: DisplayConfig{
			Thresholds: ThresholdConfig{
				SOCWarn:    50,
				SOCDanger:  20,
				BattLow:    11.8,
				BattHigh:   14.8,
				PVPowerMax: 400,
				ACLoadWarn: 1200,
			},
			Layout: "grid",
		},
		Logging: LoggingConfig{
			Enabled:  false,
			Path:     "/var/log/vedirect-dash",
			Interval: 1000,
		},
		MQTT: publish.DefaultConfig(),
		Store: store.Config{
			Enabled:       false,
			Path:          "/var/lib/vedirect-dash/history.db",
			IntervalSec:   60,
			RetentionDays: 30,
		},
		Server: ServerConfig{
			ListenAddr:  ":8080",
			MetricsPath: "/metrics",
			BroadcastHz: 2,
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and environment
// variable overrides. Falls back to defaults if YAML not found.
func LoadConfig(path string) *Config {
	log := logging.Component("config")
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Info("no config file, using defaults", zap.String("path", path))
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Warn("config parse failed, using defaults", zap.String("path", path), zap.Error(err))
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Info("config loaded", zap.String("path", path))
	}

	// Load .env file from the same directory as the config, or from CWD
	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	logging.Component("config").Info("loading .env", zap.String("path", path))
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		// Real env takes precedence
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: VEDIRECT_PORT, VEDIRECT_BAUD, LISTEN_ADDR, LOG_ENABLED, LOG_PATH,
// LOG_INTERVAL_MS, MQTT_ENABLED, MQTT_BROKER, MQTT_USERNAME, MQTT_PASSWORD,
// STORE_ENABLED, STORE_PATH
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VEDIRECT_PORT"); v != "" {
		if len(c.Devices) == 0 {
			c.Devices = append(c.Devices, DeviceConfig{Name: "vedirect0"})
		}
		c.Devices[0].Type = TypeSerial
		c.Devices[0].PortPath = v
	}
	if v := os.Getenv("VEDIRECT_BAUD"); v != "" && len(c.Devices) > 0 {
		if n, err := strconv.Atoi(v); err == nil {
			c.Devices[0].BaudRate = n
		}
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	// Logging
	if v := os.Getenv("LOG_ENABLED"); v != "" {
		c.Logging.Enabled = truthy(v)
	}
	if v := os.Getenv("LOG_PATH"); v != "" {
		c.Logging.Path = v
	}
	if v := os.Getenv("LOG_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Logging.Interval = n
		}
	}
	// MQTT
	if v := os.Getenv("MQTT_ENABLED"); v != "" {
		c.MQTT.Enabled = truthy(v)
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	// History
	if v := os.Getenv("STORE_ENABLED"); v != "" {
		c.Store.Enabled = truthy(v)
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		c.Store.Path = v
	}
}

func truthy(v string) bool {
	return v == "1" || v == "true" || v == "yes"
}

// UseDemo swaps every device for a simulator, keeping names.
func (c *Config) UseDemo() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.Devices {
		c.Devices[i].Type = TypeDemo
		if c.Devices[i].Model == "" {
			c.Devices[i].Model = device.ModelBatteryMonitor
		}
	}
}

// Validate checks the config against its struct tags.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return validate(c)
}

func validate(c *Config) error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path := c.path
	if path == "" {
		path = "/etc/vedirect-dash/config.yaml"
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// DisplaySnapshot returns a copy of the display section.
func (c *Config) DisplaySnapshot() DisplayConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Display
}

// LoggingSnapshot returns a copy of the CSV logging section.
func (c *Config) LoggingSnapshot() LoggingConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Logging
}

// UpdateFromJSON applies a partial JSON config update by deep-merging
// incoming fields into the existing config. Fields not present in the
// incoming JSON are preserved. The merged result must validate; otherwise
// nothing changes.
func (c *Config) UpdateFromJSON(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentBytes, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal current config: %w", err)
	}
	var base map[string]interface{}
	if err := json.Unmarshal(currentBytes, &base); err != nil {
		return fmt.Errorf("unmarshal current config: %w", err)
	}

	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}

	deepMerge(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}
	next := &Config{}
	if err := json.Unmarshal(merged, next); err != nil {
		return fmt.Errorf("unmarshal merged config: %w", err)
	}
	if err := validate(next); err != nil {
		return err
	}

	c.Devices = next.Devices
	c.Display = next.Display
	c.Logging = next.Logging
	c.MQTT = next.MQTT
	c.Store = next.Store
	c.Server = next.Server
	return nil
}

// deepMerge recursively merges src into dst. For nested maps, values are
// merged rather than replaced. For all other types, src overwrites dst.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}

// NewProvider builds the byte source for d.
func NewProvider(d DeviceConfig) device.Provider {
	switch d.Type {
	case TypeSerial:
		return device.NewSerial(device.SerialConfig{
			PortPath: d.PortPath,
			BaudRate: d.BaudRate,
		})
	case TypeReplay:
		return device.NewReplay(device.ReplayConfig{
			Path: d.ReplayPath,
			Loop: d.Loop,
		})
	default:
		return device.NewDemoProvider(device.DemoConfig{
			Model:        d.Model,
			Interval:     demoInterval,
			CorruptEvery: d.CorruptEvery,
			HexEvery:     demoHexEvery,
		})
	}
}

// ParserOptions returns the parser settings for d.
func (d DeviceConfig) ParserOptions() []vedirect.Option {
	opts := []vedirect.Option{vedirect.WithStrict(d.Strict)}
	if d.MaxFields > 0 {
		opts = append(opts, vedirect.WithMaxFields(d.MaxFields))
	}
	return opts
}
