package vedirect

// Summary is a flat view of the main measurements of any record, for
// tables, logs and charts. Values a device does not report are nil.
type Summary struct {
	Class        DeviceClass `json:"class"`
	Product      string      `json:"product,omitempty"`
	Voltage      *float64    `json:"voltage,omitempty"`
	Current      *float64    `json:"current,omitempty"`
	Power        *float64    `json:"power,omitempty"` // W, battery side
	SOC          *float64    `json:"soc,omitempty"`
	Consumed     *float64    `json:"consumed,omitempty"`
	TimeToGo     *float64    `json:"timeToGo,omitempty"`
	PanelVoltage *float64    `json:"panelVoltage,omitempty"`
	PanelPower   *float64    `json:"panelPower,omitempty"`
	YieldToday   *float64    `json:"yieldToday,omitempty"`
	LoadOn       *bool       `json:"loadOn,omitempty"`
	ACVoltage    *float64    `json:"acVoltage,omitempty"`
	ACCurrent    *float64    `json:"acCurrent,omitempty"`
	ACPower      *float64    `json:"acPower,omitempty"`
	State        string      `json:"state,omitempty"`
	Alarm        string      `json:"alarm,omitempty"`
	FieldErrors  int         `json:"fieldErrors,omitempty"`
}

// Summarize flattens r.
func Summarize(r Record) Summary {
	info := r.Info()
	s := Summary{
		Class:       r.Class(),
		Product:     info.Product,
		FieldErrors: len(info.Errors()),
	}

	switch v := r.(type) {
	case BatteryMonitor:
		s.Voltage, s.Current, s.Power = v.Voltage, v.Current, v.Power
		s.SOC, s.Consumed, s.TimeToGo = v.SOC, v.Consumed, v.TimeToGo
		if v.AlarmReason != nil && *v.AlarmReason != 0 {
			s.Alarm = v.AlarmReason.String()
		}
	case SolarCharger:
		s.Voltage, s.Current = v.Voltage, v.Current
		s.Power = product(v.Voltage, v.Current)
		s.PanelVoltage, s.PanelPower = v.PanelVoltage, v.PanelPower
		s.YieldToday, s.LoadOn = v.YieldToday, v.LoadOn
		if v.State != nil {
			s.State = v.State.String()
		}
		if v.Error != nil && *v.Error != 0 {
			s.Alarm = v.Error.String()
		}
	case Inverter:
		s.Voltage = v.Voltage
		s.ACVoltage, s.ACCurrent, s.ACPower = v.ACVoltage, v.ACCurrent, v.ACPower
		if v.State != nil {
			s.State = v.State.String()
		}
		if v.AlarmReason != nil && *v.AlarmReason != 0 {
			s.Alarm = v.AlarmReason.String()
		}
	case Generic:
		if f, ok := v.Field("V"); ok {
			s.Voltage = num(f)
		}
		if f, ok := v.Field("I"); ok {
			s.Current = num(f)
		}
	}
	return s
}

func product(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	p := *a * *b
	return &p
}
