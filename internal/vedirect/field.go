package vedirect

import (
	"strconv"
)

// FieldKind selects how a raw value is interpreted.
type FieldKind int

const (
	KindUnknown FieldKind = iota // label not recognised, Raw only
	KindNumber                   // scaled integer, see Value and Unit
	KindBool                     // ON / OFF
	KindCode                     // enumeration or bitmask, see Code
	KindText                     // free text, see Raw
)

func (k FieldKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindCode:
		return "code"
	case KindText:
		return "text"
	}
	return "unknown"
}

func (k FieldKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Unit of a decoded numeric value.
type Unit string

const (
	UnitNone    Unit = ""
	UnitVolt    Unit = "V"
	UnitAmp     Unit = "A"
	UnitWatt    Unit = "W"
	UnitVoltAmp Unit = "VA"
	UnitPercent Unit = "%"
	UnitAmpHour Unit = "Ah"
	UnitKWh     Unit = "kWh"
	UnitCelsius Unit = "°C"
	UnitMinute  Unit = "min"
	UnitSecond  Unit = "s"
	UnitDay     Unit = "day"
	UnitCount   Unit = "count"
)

// notAvailable is sent in place of a value the device cannot measure.
const notAvailable = "---"

// Field is one decoded label/value pair.
type Field struct {
	Label  string    `json:"label"`
	Raw    string    `json:"raw"`
	Kind   FieldKind `json:"kind"`
	Value  float64   `json:"value,omitempty"`
	Unit   Unit      `json:"unit,omitempty"`
	Code   uint32    `json:"code,omitempty"`
	On     bool      `json:"on,omitempty"`
	Absent bool      `json:"absent,omitempty"` // value was "---"
	Err    error     `json:"-"`
}

// Known reports whether the label has a decoding rule.
func (f Field) Known() bool { return f.Kind != KindUnknown }

// OK reports whether the field carries a usable value.
func (f Field) OK() bool { return f.Known() && !f.Absent && f.Err == nil }

type rule struct {
	kind   FieldKind
	div    float64 // raw integer is divided by this
	unit   Unit
	signed bool
	hex    bool // code is sent as 0x... hex
	na     bool // "---" means not available
	check  func(string) error
}

func number(div float64, unit Unit) rule { return rule{kind: KindNumber, div: div, unit: unit} }

func signed(div float64, unit Unit) rule {
	return rule{kind: KindNumber, div: div, unit: unit, signed: true}
}

func checkFirmware(s string) error {
	_, err := ParseFirmware(s)
	return err
}

func checkSerial(s string) error {
	_, err := ParseSerialNumber(s)
	return err
}

var (
	ruleBool     = rule{kind: KindBool}
	ruleText     = rule{kind: KindText}
	ruleFirmware = rule{kind: KindText, check: checkFirmware}
	ruleSerial   = rule{kind: KindText, check: checkSerial}
	ruleCode     = rule{kind: KindCode}
	ruleHexCode  = rule{kind: KindCode, hex: true}
	ruleCount    = number(1, UnitCount)
)

// fieldRules maps every recognised label to its decoding rule. It is never
// written after package initialisation.
var fieldRules = map[string]rule{
	"V":   signed(1000, UnitVolt),
	"V2":  signed(1000, UnitVolt),
	"V3":  signed(1000, UnitVolt),
	"VS":  signed(1000, UnitVolt),
	"VM":  signed(1000, UnitVolt),
	"DM":  signed(10, UnitPercent),
	"VPV": number(1000, UnitVolt),
	"PPV": number(1, UnitWatt),
	"I":   signed(1000, UnitAmp),
	"I2":  signed(1000, UnitAmp),
	"I3":  signed(1000, UnitAmp),
	"IL":  signed(1000, UnitAmp),
	"P":   signed(1, UnitWatt),
	"CE":  signed(1000, UnitAmpHour),
	"SOC": number(10, UnitPercent),
	"TTG": signed(1, UnitMinute),
	"T":   {kind: KindNumber, div: 1, unit: UnitCelsius, signed: true, na: true},

	"LOAD":  ruleBool,
	"Alarm": ruleBool,
	"Relay": ruleBool,

	"AR":   ruleCode,
	"WARN": ruleCode,
	"OR":   ruleHexCode,
	"ERR":  ruleCode,
	"CS":   ruleCode,
	"MPPT": ruleCode,
	"MODE": ruleCode,
	"MON":  signed(1, UnitNone),
	"PID":  ruleHexCode,

	"H1":   signed(1000, UnitAmpHour),
	"H2":   signed(1000, UnitAmpHour),
	"H3":   signed(1000, UnitAmpHour),
	"H4":   ruleCount,
	"H5":   ruleCount,
	"H6":   signed(1000, UnitAmpHour),
	"H7":   signed(1000, UnitVolt),
	"H8":   signed(1000, UnitVolt),
	"H9":   number(1, UnitSecond),
	"H10":  ruleCount,
	"H11":  ruleCount,
	"H12":  ruleCount,
	"H13":  ruleCount,
	"H14":  ruleCount,
	"H15":  signed(1000, UnitVolt),
	"H16":  signed(1000, UnitVolt),
	"H17":  number(100, UnitKWh),
	"H18":  number(100, UnitKWh),
	"H19":  number(100, UnitKWh),
	"H20":  number(100, UnitKWh),
	"H21":  number(1, UnitWatt),
	"H22":  number(100, UnitKWh),
	"H23":  number(1, UnitWatt),
	"HSDS": number(1, UnitDay),

	"AC_OUT_V": signed(100, UnitVolt),
	"AC_OUT_I": signed(10, UnitAmp),
	"AC_OUT_S": signed(1, UnitVoltAmp),

	"FW":   ruleFirmware,
	"FWE":  ruleFirmware,
	"BMV":  ruleText,
	"SER#": ruleSerial,
}

// DecodeField decodes one raw value. A value that does not match its rule
// yields a Field with Err set; it never fails otherwise.
func DecodeField(label, raw string) Field {
	f := Field{Label: label, Raw: raw}
	r, ok := fieldRules[label]
	if !ok {
		return f
	}
	f.Kind = r.kind
	f.Unit = r.unit
	if r.na && raw == notAvailable {
		f.Absent = true
		return f
	}

	switch r.kind {
	case KindNumber:
		n, err := parseInteger(raw, r.signed)
		if err != nil {
			f.Err = &FieldError{Label: label, Raw: raw, Err: err}
			return f
		}
		f.Value = float64(n) / r.div
	case KindBool:
		switch raw {
		case "ON":
			f.On = true
		case "OFF":
		default:
			f.Err = &FieldError{Label: label, Raw: raw}
		}
	case KindCode:
		c, err := parseCode(raw, r.hex)
		if err != nil {
			f.Err = &FieldError{Label: label, Raw: raw, Err: err}
			return f
		}
		f.Code = c
	case KindText:
		if r.check != nil {
			if err := r.check(raw); err != nil {
				f.Err = &FieldError{Label: label, Raw: raw, Err: err}
			}
		}
	}
	return f
}

func parseInteger(raw string, signed bool) (int64, error) {
	if signed {
		return strconv.ParseInt(raw, 10, 32)
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	return int64(n), err
}

func parseCode(raw string, hex bool) (uint32, error) {
	base := 10
	if hex {
		base = 16
		if len(raw) > 2 && raw[0] == '0' && (raw[1] == 'x' || raw[1] == 'X') {
			raw = raw[2:]
		}
	}
	n, err := strconv.ParseUint(raw, base, 32)
	return uint32(n), err
}
