package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shaunagostinho/vedirect-dash/internal/device"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
devices:
  - name: house
    type: serial
    port_path: /dev/ttyUSB3
    strict: true
server:
  listen_addr: ":9000"
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")

	cfg := LoadConfig(path)
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].PortPath != "/dev/ttyUSB3" || !cfg.Devices[0].Strict {
		t.Errorf("devices = %+v", cfg.Devices)
	}
	if cfg.Server.ListenAddr != ":9000" || cfg.Server.MetricsPath != "/metrics" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("broker = %q", cfg.MQTT.Broker)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if len(cfg.Devices) != 2 || cfg.Devices[0].Type != TypeDemo {
		t.Errorf("devices = %+v", cfg.Devices)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VEDIRECT_PORT", "/dev/ttyACM0")
	t.Setenv("VEDIRECT_BAUD", "9600")
	t.Setenv("LOG_ENABLED", "yes")
	t.Setenv("STORE_PATH", "/tmp/h.db")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	d := cfg.Devices[0]
	if d.Type != TypeSerial || d.PortPath != "/dev/ttyACM0" || d.BaudRate != 9600 {
		t.Errorf("device = %+v", d)
	}
	if !cfg.Logging.Enabled || cfg.Store.Path != "/tmp/h.db" {
		t.Errorf("logging/store = %+v / %+v", cfg.Logging, cfg.Store)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nVEDIRECT_TEST_A=\"one\"\nVEDIRECT_TEST_B = two\nnot a pair\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VEDIRECT_TEST_A", "")
	t.Setenv("VEDIRECT_TEST_B", "real")

	loadEnvFile(path)
	if got := os.Getenv("VEDIRECT_TEST_A"); got != "one" {
		t.Errorf("A = %q", got)
	}
	if got := os.Getenv("VEDIRECT_TEST_B"); got != "real" {
		t.Errorf("B = %q, real env must win", got)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no devices", func(c *Config) { c.Devices = nil }},
		{"duplicate names", func(c *Config) { c.Devices[1].Name = c.Devices[0].Name }},
		{"bad type", func(c *Config) { c.Devices[0].Type = "usb" }},
		{"serial without port", func(c *Config) { c.Devices[0].Type = TypeSerial; c.Devices[0].PortPath = "" }},
		{"replay without path", func(c *Config) { c.Devices[0].Type = TypeReplay }},
		{"bad model", func(c *Config) { c.Devices[0].Model = "toaster" }},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "" }},
		{"bad qos", func(c *Config) { c.MQTT.QOS = 3 }},
		{"metrics path", func(c *Config) { c.Server.MetricsPath = "metrics" }},
		{"broadcast rate", func(c *Config) { c.Server.BroadcastHz = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestUpdateFromJSON(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.UpdateFromJSON([]byte(`{"display":{"thresholds":{"socWarn":40}}}`)); err != nil {
		t.Fatal(err)
	}
	if cfg.Display.Thresholds.SOCWarn != 40 || cfg.Display.Thresholds.SOCDanger != 20 {
		t.Errorf("thresholds = %+v", cfg.Display.Thresholds)
	}
	if len(cfg.Devices) != 2 || cfg.Server.BroadcastHz != 2 {
		t.Error("unrelated sections changed")
	}

	err := cfg.UpdateFromJSON([]byte(`{"devices":[{"name":"a","type":"demo"},{"name":"a","type":"demo"}]}`))
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
	if len(cfg.Devices) != 2 || cfg.Devices[0].Name != "battery" {
		t.Errorf("rejected update was applied: %+v", cfg.Devices)
	}

	if err := cfg.UpdateFromJSON([]byte(`not json`)); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.path = filepath.Join(t.TempDir(), "etc", "config.yaml")
	cfg.Devices[0].Strict = true
	if err := cfg.Save(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "strict: true") {
		t.Errorf("saved yaml:\n%s", data)
	}

	loaded := LoadConfig(cfg.path)
	if !loaded.Devices[0].Strict || loaded.Devices[1].Model != device.ModelSolarCharger {
		t.Errorf("devices = %+v", loaded.Devices)
	}
}

func TestUseDemo(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Devices[0] = DeviceConfig{Name: "house", Type: TypeSerial, PortPath: "/dev/ttyUSB0"}
	cfg.UseDemo()
	if cfg.Devices[0].Type != TypeDemo || cfg.Devices[0].Model != device.ModelBatteryMonitor {
		t.Errorf("device = %+v", cfg.Devices[0])
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		cfg  DeviceConfig
		want string
	}{
		{DeviceConfig{Type: TypeSerial, PortPath: "/dev/ttyUSB0"}, "*device.SerialProvider"},
		{DeviceConfig{Type: TypeReplay, ReplayPath: "x.bin"}, "*device.ReplayProvider"},
		{DeviceConfig{Type: TypeDemo, Model: "mppt"}, "*device.DemoProvider"},
	}
	for _, tt := range tests {
		if got := fmt.Sprintf("%T", NewProvider(tt.cfg)); got != tt.want {
			t.Errorf("NewProvider(%s) = %s, want %s", tt.cfg.Type, got, tt.want)
		}
	}
}
