package vedirect

import (
	"fmt"
	"strings"
)

// ChargeState is the CS field of chargers and inverters.
type ChargeState uint32

const (
	StateOff                ChargeState = 0
	StateLowPower           ChargeState = 1
	StateFault              ChargeState = 2
	StateBulk               ChargeState = 3
	StateAbsorption         ChargeState = 4
	StateFloat              ChargeState = 5
	StateStorage            ChargeState = 6
	StateEqualize           ChargeState = 7
	StateInverting          ChargeState = 9
	StatePowerSupply        ChargeState = 11
	StateStartingUp         ChargeState = 245
	StateRepeatedAbsorption ChargeState = 246
	StateAutoEqualize       ChargeState = 247
	StateBatterySafe        ChargeState = 248
	StateExternalControl    ChargeState = 252
)

var chargeStateNames = map[ChargeState]string{
	StateOff:                "Off",
	StateLowPower:           "Low power",
	StateFault:              "Fault",
	StateBulk:               "Bulk",
	StateAbsorption:         "Absorption",
	StateFloat:              "Float",
	StateStorage:            "Storage",
	StateEqualize:           "Equalize",
	StateInverting:          "Inverting",
	StatePowerSupply:        "Power supply",
	StateStartingUp:         "Starting up",
	StateRepeatedAbsorption: "Repeated absorption",
	StateAutoEqualize:       "Auto equalize",
	StateBatterySafe:        "BatterySafe",
	StateExternalControl:    "External control",
}

func (s ChargeState) String() string {
	if n, ok := chargeStateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("ChargeState(%d)", uint32(s))
}

// ErrorCode is the ERR field of solar chargers.
type ErrorCode uint32

var errorCodeNames = map[ErrorCode]string{
	0:   "No error",
	2:   "Battery voltage too high",
	17:  "Charger temperature too high",
	18:  "Charger over current",
	19:  "Charger current reversed",
	20:  "Bulk time limit exceeded",
	21:  "Current sensor issue",
	26:  "Terminals overheated",
	28:  "Converter issue",
	33:  "Input voltage too high",
	34:  "Input current too high",
	38:  "Input shutdown due to excessive battery voltage",
	39:  "Input shutdown due to current flow during off mode",
	65:  "Lost communication with one of the devices",
	66:  "Synchronised charging device configuration issue",
	67:  "BMS connection lost",
	68:  "Network misconfigured",
	116: "Factory calibration data lost",
	117: "Invalid or incompatible firmware",
	119: "User settings invalid",
}

func (e ErrorCode) String() string {
	if n, ok := errorCodeNames[e]; ok {
		return n
	}
	return fmt.Sprintf("ErrorCode(%d)", uint32(e))
}

// TrackerState is the MPPT field.
type TrackerState uint32

const (
	TrackerOff     TrackerState = 0
	TrackerLimited TrackerState = 1
	TrackerActive  TrackerState = 2
)

func (s TrackerState) String() string {
	switch s {
	case TrackerOff:
		return "Off"
	case TrackerLimited:
		return "Voltage or current limited"
	case TrackerActive:
		return "MPP tracker active"
	}
	return fmt.Sprintf("TrackerState(%d)", uint32(s))
}

// DeviceMode is the MODE field of inverters.
type DeviceMode uint32

const (
	ModeInverter DeviceMode = 2
	ModeOff      DeviceMode = 4
	ModeEco      DeviceMode = 5
)

func (m DeviceMode) String() string {
	switch m {
	case ModeInverter:
		return "Inverter"
	case ModeOff:
		return "Off"
	case ModeEco:
		return "Eco"
	}
	return fmt.Sprintf("DeviceMode(%d)", uint32(m))
}

// AlarmReason is the AR and WARN bitmask.
type AlarmReason uint32

const (
	AlarmLowVoltage AlarmReason = 1 << iota
	AlarmHighVoltage
	AlarmLowSOC
	AlarmLowStarterVoltage
	AlarmHighStarterVoltage
	AlarmLowTemperature
	AlarmHighTemperature
	AlarmMidVoltage
	AlarmOverload
	AlarmDCRipple
	AlarmLowACOutVoltage
	AlarmHighACOutVoltage
)

var alarmReasonNames = []string{
	"LowVoltage",
	"HighVoltage",
	"LowSOC",
	"LowStarterVoltage",
	"HighStarterVoltage",
	"LowTemperature",
	"HighTemperature",
	"MidVoltage",
	"Overload",
	"DCRipple",
	"LowACOutVoltage",
	"HighACOutVoltage",
}

func (a AlarmReason) String() string { return bitNames(uint32(a), alarmReasonNames, "None") }

// OffReason is the OR bitmask.
type OffReason uint32

const (
	OffNoInputPower OffReason = 1 << iota
	OffSwitchedOff
	OffDeviceModeRegister
	OffRemoteInput
	OffProtection
	OffPaygo
	OffBMS
	OffEngineShutdown
	OffAnalysingInput
)

var offReasonNames = []string{
	"NoInputPower",
	"SwitchedOff",
	"DeviceModeRegister",
	"RemoteInput",
	"Protection",
	"Paygo",
	"BMS",
	"EngineShutdown",
	"AnalysingInput",
}

func (o OffReason) String() string { return bitNames(uint32(o), offReasonNames, "None") }

// bitNames joins the names of the set bits; unnamed bits print as hex.
func bitNames(v uint32, names []string, zero string) string {
	if v == 0 {
		return zero
	}
	var parts []string
	for i := 0; i < 32; i++ {
		bit := uint32(1) << i
		if v&bit == 0 {
			continue
		}
		if i < len(names) {
			parts = append(parts, names[i])
		} else {
			parts = append(parts, fmt.Sprintf("0x%X", bit))
		}
	}
	return strings.Join(parts, "|")
}
