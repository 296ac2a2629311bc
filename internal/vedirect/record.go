package vedirect

import (
	"fmt"
	"slices"
)

// DeviceClass selects the Record variant.
type DeviceClass int

const (
	ClassGeneric DeviceClass = iota
	ClassBatteryMonitor
	ClassSolarCharger
	ClassInverter
)

func (c DeviceClass) String() string {
	switch c {
	case ClassBatteryMonitor:
		return "battery_monitor"
	case ClassSolarCharger:
		return "solar_charger"
	case ClassInverter:
		return "inverter"
	}
	return "generic"
}

func (c DeviceClass) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *DeviceClass) UnmarshalText(text []byte) error {
	for _, k := range []DeviceClass{ClassGeneric, ClassBatteryMonitor, ClassSolarCharger, ClassInverter} {
		if k.String() == string(text) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("vedirect: unknown device class %q", text)
}

// InfiniteTimeToGo is the TTG value of a battery that is not discharging.
const InfiniteTimeToGo = -1

// Record is one validated frame. The concrete type is BatteryMonitor,
// SolarCharger, Inverter or Generic.
type Record interface {
	Class() DeviceClass
	Info() Base
	isRecord()
}

// Base holds what every frame carries, whatever the device class.
type Base struct {
	PID      ProductID     `json:"pid,omitempty"`
	Product  string        `json:"product,omitempty"`
	Firmware *Firmware     `json:"firmware,omitempty"`
	Serial   *SerialNumber `json:"serial,omitempty"`
	Checksum byte          `json:"checksum"`
	Fields   []Field       `json:"fields"`
}

// Info returns a copy of the common part of the record.
func (b Base) Info() Base {
	b.Fields = slices.Clone(b.Fields)
	return b
}

func (b Base) isRecord() {}

// Field returns the decoded field with the given label.
func (b Base) Field(label string) (Field, bool) {
	for _, f := range b.Fields {
		if f.Label == label {
			return f, true
		}
	}
	return Field{}, false
}

// Errors returns the decode errors of the fields, in frame order.
func (b Base) Errors() []error {
	var errs []error
	for _, f := range b.Fields {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// BatteryMonitor is a BMV or SmartShunt frame.
type BatteryMonitor struct {
	Base
	Model        string       `json:"model,omitempty"`
	Voltage      *float64     `json:"voltage,omitempty"`      // V
	AuxVoltage   *float64     `json:"auxVoltage,omitempty"`   // V, starter battery
	MidVoltage   *float64     `json:"midVoltage,omitempty"`   // V
	MidDeviation *float64     `json:"midDeviation,omitempty"` // %
	Current      *float64     `json:"current,omitempty"`      // A
	Power        *float64     `json:"power,omitempty"`        // W
	Consumed     *float64     `json:"consumed,omitempty"`     // Ah
	SOC          *float64     `json:"soc,omitempty"`          // %
	TimeToGo     *float64     `json:"timeToGo,omitempty"`     // min, InfiniteTimeToGo when idle
	Temperature  *float64     `json:"temperature,omitempty"`  // °C
	Alarm        *bool        `json:"alarm,omitempty"`
	Relay        *bool        `json:"relay,omitempty"`
	AlarmReason  *AlarmReason `json:"alarmReason,omitempty"`
	Monitor      *float64     `json:"monitorMode,omitempty"`

	History BatteryHistory `json:"history"`
}

// BatteryHistory is the H1..H18 block.
type BatteryHistory struct {
	DeepestDischarge     *float64 `json:"deepestDischarge,omitempty"` // Ah
	LastDischarge        *float64 `json:"lastDischarge,omitempty"`    // Ah
	AverageDischarge     *float64 `json:"averageDischarge,omitempty"` // Ah
	ChargeCycles         *int     `json:"chargeCycles,omitempty"`
	FullDischarges       *int     `json:"fullDischarges,omitempty"`
	CumulativeDrawn      *float64 `json:"cumulativeDrawn,omitempty"` // Ah
	MinVoltage           *float64 `json:"minVoltage,omitempty"`      // V
	MaxVoltage           *float64 `json:"maxVoltage,omitempty"`      // V
	SinceFullCharge      *float64 `json:"sinceFullCharge,omitempty"` // s
	AutoSyncs            *int     `json:"autoSyncs,omitempty"`
	LowVoltageAlarms     *int     `json:"lowVoltageAlarms,omitempty"`
	HighVoltageAlarms    *int     `json:"highVoltageAlarms,omitempty"`
	LowAuxVoltageAlarms  *int     `json:"lowAuxVoltageAlarms,omitempty"`
	HighAuxVoltageAlarms *int     `json:"highAuxVoltageAlarms,omitempty"`
	MinAuxVoltage        *float64 `json:"minAuxVoltage,omitempty"`    // V
	MaxAuxVoltage        *float64 `json:"maxAuxVoltage,omitempty"`    // V
	DischargedEnergy     *float64 `json:"dischargedEnergy,omitempty"` // kWh
	ChargedEnergy        *float64 `json:"chargedEnergy,omitempty"`    // kWh
}

func (BatteryMonitor) Class() DeviceClass { return ClassBatteryMonitor }

// SolarCharger is a BlueSolar or SmartSolar MPPT frame.
type SolarCharger struct {
	Base
	Voltage           *float64      `json:"voltage,omitempty"`      // V, battery
	Current           *float64      `json:"current,omitempty"`      // A, battery
	PanelVoltage      *float64      `json:"panelVoltage,omitempty"` // V
	PanelPower        *float64      `json:"panelPower,omitempty"`   // W
	LoadOn            *bool         `json:"loadOn,omitempty"`
	LoadCurrent       *float64      `json:"loadCurrent,omitempty"` // A
	State             *ChargeState  `json:"state,omitempty"`
	Tracker           *TrackerState `json:"tracker,omitempty"`
	OffReason         *OffReason    `json:"offReason,omitempty"`
	Error             *ErrorCode    `json:"error,omitempty"`
	YieldTotal        *float64      `json:"yieldTotal,omitempty"`        // kWh
	YieldToday        *float64      `json:"yieldToday,omitempty"`        // kWh
	MaxPowerToday     *float64      `json:"maxPowerToday,omitempty"`     // W
	YieldYesterday    *float64      `json:"yieldYesterday,omitempty"`    // kWh
	MaxPowerYesterday *float64      `json:"maxPowerYesterday,omitempty"` // W
	DaySequence       *int          `json:"daySequence,omitempty"`
}

func (SolarCharger) Class() DeviceClass { return ClassSolarCharger }

// Inverter is a Phoenix inverter frame.
type Inverter struct {
	Base
	Voltage     *float64     `json:"voltage,omitempty"`   // V, DC input
	ACVoltage   *float64     `json:"acVoltage,omitempty"` // V
	ACCurrent   *float64     `json:"acCurrent,omitempty"` // A
	ACPower     *float64     `json:"acPower,omitempty"`   // VA
	Mode        *DeviceMode  `json:"mode,omitempty"`
	State       *ChargeState `json:"state,omitempty"`
	AlarmReason *AlarmReason `json:"alarmReason,omitempty"`
	Warning     *AlarmReason `json:"warning,omitempty"`
	OffReason   *OffReason   `json:"offReason,omitempty"`
}

func (Inverter) Class() DeviceClass { return ClassInverter }

// Generic is a frame from a device without a known product ID. Its data is
// only available through Fields.
type Generic struct {
	Base
}

func (Generic) Class() DeviceClass { return ClassGeneric }

func num(f Field) *float64 {
	if !f.OK() || f.Kind != KindNumber {
		return nil
	}
	v := f.Value
	return &v
}

func whole(f Field) *int {
	if !f.OK() || f.Kind != KindNumber {
		return nil
	}
	v := int(f.Value)
	return &v
}

func flag(f Field) *bool {
	if !f.OK() || f.Kind != KindBool {
		return nil
	}
	v := f.On
	return &v
}

func code[T ~uint32](f Field) *T {
	if !f.OK() || f.Kind != KindCode {
		return nil
	}
	v := T(f.Code)
	return &v
}

var batterySetters = map[string]func(*BatteryMonitor, Field){
	"BMV":   func(r *BatteryMonitor, f Field) { r.Model = f.Raw },
	"V":     func(r *BatteryMonitor, f Field) { r.Voltage = num(f) },
	"VS":    func(r *BatteryMonitor, f Field) { r.AuxVoltage = num(f) },
	"VM":    func(r *BatteryMonitor, f Field) { r.MidVoltage = num(f) },
	"DM":    func(r *BatteryMonitor, f Field) { r.MidDeviation = num(f) },
	"I":     func(r *BatteryMonitor, f Field) { r.Current = num(f) },
	"P":     func(r *BatteryMonitor, f Field) { r.Power = num(f) },
	"CE":    func(r *BatteryMonitor, f Field) { r.Consumed = num(f) },
	"SOC":   func(r *BatteryMonitor, f Field) { r.SOC = num(f) },
	"TTG":   func(r *BatteryMonitor, f Field) { r.TimeToGo = num(f) },
	"T":     func(r *BatteryMonitor, f Field) { r.Temperature = num(f) },
	"Alarm": func(r *BatteryMonitor, f Field) { r.Alarm = flag(f) },
	"Relay": func(r *BatteryMonitor, f Field) { r.Relay = flag(f) },
	"AR":    func(r *BatteryMonitor, f Field) { r.AlarmReason = code[AlarmReason](f) },
	"MON":   func(r *BatteryMonitor, f Field) { r.Monitor = num(f) },

	"H1":  func(r *BatteryMonitor, f Field) { r.History.DeepestDischarge = num(f) },
	"H2":  func(r *BatteryMonitor, f Field) { r.History.LastDischarge = num(f) },
	"H3":  func(r *BatteryMonitor, f Field) { r.History.AverageDischarge = num(f) },
	"H4":  func(r *BatteryMonitor, f Field) { r.History.ChargeCycles = whole(f) },
	"H5":  func(r *BatteryMonitor, f Field) { r.History.FullDischarges = whole(f) },
	"H6":  func(r *BatteryMonitor, f Field) { r.History.CumulativeDrawn = num(f) },
	"H7":  func(r *BatteryMonitor, f Field) { r.History.MinVoltage = num(f) },
	"H8":  func(r *BatteryMonitor, f Field) { r.History.MaxVoltage = num(f) },
	"H9":  func(r *BatteryMonitor, f Field) { r.History.SinceFullCharge = num(f) },
	"H10": func(r *BatteryMonitor, f Field) { r.History.AutoSyncs = whole(f) },
	"H11": func(r *BatteryMonitor, f Field) { r.History.LowVoltageAlarms = whole(f) },
	"H12": func(r *BatteryMonitor, f Field) { r.History.HighVoltageAlarms = whole(f) },
	"H13": func(r *BatteryMonitor, f Field) { r.History.LowAuxVoltageAlarms = whole(f) },
	"H14": func(r *BatteryMonitor, f Field) { r.History.HighAuxVoltageAlarms = whole(f) },
	"H15": func(r *BatteryMonitor, f Field) { r.History.MinAuxVoltage = num(f) },
	"H16": func(r *BatteryMonitor, f Field) { r.History.MaxAuxVoltage = num(f) },
	"H17": func(r *BatteryMonitor, f Field) { r.History.DischargedEnergy = num(f) },
	"H18": func(r *BatteryMonitor, f Field) { r.History.ChargedEnergy = num(f) },
}

var solarSetters = map[string]func(*SolarCharger, Field){
	"V":    func(r *SolarCharger, f Field) { r.Voltage = num(f) },
	"I":    func(r *SolarCharger, f Field) { r.Current = num(f) },
	"VPV":  func(r *SolarCharger, f Field) { r.PanelVoltage = num(f) },
	"PPV":  func(r *SolarCharger, f Field) { r.PanelPower = num(f) },
	"LOAD": func(r *SolarCharger, f Field) { r.LoadOn = flag(f) },
	"IL":   func(r *SolarCharger, f Field) { r.LoadCurrent = num(f) },
	"CS":   func(r *SolarCharger, f Field) { r.State = code[ChargeState](f) },
	"MPPT": func(r *SolarCharger, f Field) { r.Tracker = code[TrackerState](f) },
	"OR":   func(r *SolarCharger, f Field) { r.OffReason = code[OffReason](f) },
	"ERR":  func(r *SolarCharger, f Field) { r.Error = code[ErrorCode](f) },
	"H19":  func(r *SolarCharger, f Field) { r.YieldTotal = num(f) },
	"H20":  func(r *SolarCharger, f Field) { r.YieldToday = num(f) },
	"H21":  func(r *SolarCharger, f Field) { r.MaxPowerToday = num(f) },
	"H22":  func(r *SolarCharger, f Field) { r.YieldYesterday = num(f) },
	"H23":  func(r *SolarCharger, f Field) { r.MaxPowerYesterday = num(f) },
	"HSDS": func(r *SolarCharger, f Field) { r.DaySequence = whole(f) },
}

var inverterSetters = map[string]func(*Inverter, Field){
	"V":        func(r *Inverter, f Field) { r.Voltage = num(f) },
	"AC_OUT_V": func(r *Inverter, f Field) { r.ACVoltage = num(f) },
	"AC_OUT_I": func(r *Inverter, f Field) { r.ACCurrent = num(f) },
	"AC_OUT_S": func(r *Inverter, f Field) { r.ACPower = num(f) },
	"MODE":     func(r *Inverter, f Field) { r.Mode = code[DeviceMode](f) },
	"CS":       func(r *Inverter, f Field) { r.State = code[ChargeState](f) },
	"AR":       func(r *Inverter, f Field) { r.AlarmReason = code[AlarmReason](f) },
	"WARN":     func(r *Inverter, f Field) { r.Warning = code[AlarmReason](f) },
	"OR":       func(r *Inverter, f Field) { r.OffReason = code[OffReason](f) },
}

func apply[R any](r *R, fields []Field, setters map[string]func(*R, Field)) {
	for _, f := range fields {
		if set, ok := setters[f.Label]; ok {
			set(r, f)
		}
	}
}

// buildRecord turns the fields of a validated frame into a Record. fields
// must not be shared with the parser.
func buildRecord(fields []Field, checksumByte byte) Record {
	class, product := classify(fields)
	base := Base{
		PID:      product.ID,
		Product:  product.Name,
		Checksum: checksumByte,
		Fields:   fields,
	}
	for _, f := range fields {
		if f.Err != nil {
			continue
		}
		switch f.Label {
		case "FW", "FWE":
			fw, _ := ParseFirmware(f.Raw)
			base.Firmware = &fw
		case "SER#":
			sn, _ := ParseSerialNumber(f.Raw)
			base.Serial = &sn
		}
	}

	switch class {
	case ClassBatteryMonitor:
		r := BatteryMonitor{Base: base}
		apply(&r, fields, batterySetters)
		return r
	case ClassSolarCharger:
		r := SolarCharger{Base: base}
		apply(&r, fields, solarSetters)
		return r
	case ClassInverter:
		r := Inverter{Base: base}
		apply(&r, fields, inverterSetters)
		return r
	}
	return Generic{Base: base}
}
