package device

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/shaunagostinho/vedirect-dash/internal/vedirect"
)

// Demo models.
const (
	ModelBatteryMonitor = "bmv"
	ModelSolarCharger   = "mppt"
	ModelInverter       = "inverter"
)

// DemoConfig holds configuration for the simulator.
type DemoConfig struct {
	Model string `yaml:"model" json:"model"`
	// Interval between frames. Real devices send one per second.
	Interval time.Duration `yaml:"interval" json:"interval"`
	// CorruptEvery flips one byte in every Nth frame. 0 disables it.
	CorruptEvery int `yaml:"corrupt_every" json:"corruptEvery"`
	// HexEvery inserts an asynchronous HEX message before every Nth frame.
	HexEvery int   `yaml:"hex_every" json:"hexEvery"`
	Seed     int64 `yaml:"seed" json:"seed"`
}

// demoHexMessage is a HEX-protocol notification as devices interleave them.
const demoHexMessage = ":A4F10000100000000000000000000000000000000000000B6\n"

// DemoProvider generates simulated VE.Direct Text frames for development
// and testing. Frames are handed out in random chunk sizes.
type DemoProvider struct {
	mu        sync.Mutex
	cfg       DemoConfig
	connected bool
	rng       *rand.Rand
	t         float64 // virtual time, seconds
	frames    int
	pending   []byte
	lastFrame time.Time

	// battery simulation state
	consumed float64 // Ah
	yield    float64 // kWh today
	maxPower int
}

// NewDemoProvider creates a simulator for the given model.
func NewDemoProvider(cfg DemoConfig) *DemoProvider {
	if cfg.Model == "" {
		cfg.Model = ModelBatteryMonitor
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &DemoProvider{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (d *DemoProvider) Name() string { return "Demo " + d.cfg.Model + " (Simulated)" }

func (d *DemoProvider) Connect() error {
	switch d.cfg.Model {
	case ModelBatteryMonitor, ModelSolarCharger, ModelInverter:
	default:
		return fmt.Errorf("demo: unknown model %q", d.cfg.Model)
	}
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()
	return nil
}

func (d *DemoProvider) Close() error {
	d.mu.Lock()
	d.connected = false
	d.mu.Unlock()
	return nil
}

func (d *DemoProvider) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// ReadRaw returns the next random-sized piece of the current frame,
// waiting for the frame interval when the previous frame is used up.
func (d *DemoProvider) ReadRaw(buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return 0, ErrNotConnected
	}
	if len(buf) == 0 {
		return 0, nil
	}

	if len(d.pending) == 0 {
		if wait := d.cfg.Interval - time.Since(d.lastFrame); wait > 0 {
			d.mu.Unlock()
			time.Sleep(wait)
			d.mu.Lock()
			if !d.connected {
				return 0, ErrNotConnected
			}
		}
		d.lastFrame = time.Now()
		d.pending = d.nextFrame()
	}

	n := 1 + d.rng.Intn(len(d.pending))
	n = copy(buf, d.pending[:n])
	d.pending = d.pending[n:]
	return n, nil
}

func (d *DemoProvider) nextFrame() []byte {
	d.frames++
	d.t += 1

	var fields []vedirect.RawField
	switch d.cfg.Model {
	case ModelSolarCharger:
		fields = d.solarFields()
	case ModelInverter:
		fields = d.inverterFields()
	default:
		fields = d.batteryFields()
	}
	frame := vedirect.Encode(fields...)

	if d.cfg.CorruptEvery > 0 && d.frames%d.cfg.CorruptEvery == 0 {
		frame[len(frame)/2] ^= 0x01
	}
	if d.cfg.HexEvery > 0 && d.frames%d.cfg.HexEvery == 0 {
		frame = append([]byte(demoHexMessage), frame...)
	}
	return frame
}

func (d *DemoProvider) batteryFields() []vedirect.RawField {
	// Slow charge/discharge cycle with some noise
	current := 25*math.Sin(d.t*0.01) + d.rng.Float64()*0.5
	d.consumed += current / 3600
	if d.consumed > 0 {
		d.consumed = 0
	}
	if d.consumed < -180 {
		d.consumed = -180
	}
	soc := 100 + d.consumed/200*100
	voltage := 12.2 + soc/100*1.2 + current*0.004

	ttg := -1
	if current < -0.1 {
		ttg = int((200 + d.consumed) / -current * 60)
	}

	return []vedirect.RawField{
		{Label: "PID", Value: "0x203"},
		{Label: "V", Value: milli(voltage)},
		{Label: "VS", Value: milli(12.7 + d.rng.Float64()*0.05)},
		{Label: "I", Value: milli(current)},
		{Label: "P", Value: strconv.Itoa(int(math.Round(voltage * current)))},
		{Label: "CE", Value: milli(d.consumed)},
		{Label: "SOC", Value: strconv.Itoa(int(math.Round(soc * 10)))},
		{Label: "TTG", Value: strconv.Itoa(ttg)},
		{Label: "Alarm", Value: onOff(soc < 20)},
		{Label: "Relay", Value: "OFF"},
		{Label: "AR", Value: alarmCode(soc < 20)},
		{Label: "BMV", Value: "700"},
		{Label: "FW", Value: "0308"},
	}
}

func (d *DemoProvider) solarFields() []vedirect.RawField {
	// Daylight as a half sine over a compressed day
	sun := math.Max(0, math.Sin(d.t*0.005))
	ppv := int(sun*240 + d.rng.Float64()*3)
	if sun == 0 {
		ppv = 0
	}
	vpv := 0.0
	if ppv > 0 {
		vpv = 36 + sun*4 + d.rng.Float64()*0.3
	}
	voltage := 13.1 + sun*1.3
	current := float64(ppv) * 0.97 / voltage
	d.yield += float64(ppv) / 3600 / 1000
	if ppv > d.maxPower {
		d.maxPower = ppv
	}

	var cs int
	switch {
	case ppv == 0:
		cs = 0
	case voltage > 14.2:
		cs = 4
	case sun < 0.2:
		cs = 5
	default:
		cs = 3
	}
	tracker := 2
	if ppv == 0 {
		tracker = 0
	}

	return []vedirect.RawField{
		{Label: "PID", Value: "0xA053"},
		{Label: "FW", Value: "161"},
		{Label: "SER#", Value: "HQ2132QY2KR"},
		{Label: "V", Value: milli(voltage)},
		{Label: "I", Value: milli(current)},
		{Label: "VPV", Value: milli(vpv)},
		{Label: "PPV", Value: strconv.Itoa(ppv)},
		{Label: "CS", Value: strconv.Itoa(cs)},
		{Label: "MPPT", Value: strconv.Itoa(tracker)},
		{Label: "OR", Value: "0x00000000"},
		{Label: "ERR", Value: "0"},
		{Label: "LOAD", Value: "ON"},
		{Label: "IL", Value: milli(0.3 + d.rng.Float64()*0.1)},
		{Label: "H19", Value: strconv.Itoa(10250 + int(d.yield*100))},
		{Label: "H20", Value: strconv.Itoa(int(d.yield * 100))},
		{Label: "H21", Value: strconv.Itoa(d.maxPower)},
		{Label: "H22", Value: "112"},
		{Label: "H23", Value: "231"},
		{Label: "HSDS", Value: "42"},
	}
}

func (d *DemoProvider) inverterFields() []vedirect.RawField {
	load := 0.5 + 0.5*math.Sin(d.t*0.02)*math.Sin(d.t*0.02)
	acI := load * 4 * (0.95 + d.rng.Float64()*0.1)
	acV := 230 + d.rng.Float64()*0.4

	return []vedirect.RawField{
		{Label: "PID", Value: "0xA212"},
		{Label: "FW", Value: "0114"},
		{Label: "SER#", Value: "HQ1926ABCDE"},
		{Label: "MODE", Value: "2"},
		{Label: "CS", Value: "9"},
		{Label: "AC_OUT_V", Value: strconv.Itoa(int(math.Round(acV * 100)))},
		{Label: "AC_OUT_I", Value: strconv.Itoa(int(math.Round(acI * 10)))},
		{Label: "AC_OUT_S", Value: strconv.Itoa(int(math.Round(acV * acI)))},
		{Label: "V", Value: milli(12.9 - load*0.4)},
		{Label: "AR", Value: "0"},
		{Label: "WARN", Value: "0"},
		{Label: "OR", Value: "0x00000000"},
	}
}

func milli(v float64) string { return strconv.Itoa(int(math.Round(v * 1000))) }

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func alarmCode(lowSOC bool) string {
	if lowSOC {
		return strconv.Itoa(int(vedirect.AlarmLowSOC))
	}
	return "0"
}
