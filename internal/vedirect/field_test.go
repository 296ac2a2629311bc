package vedirect

import (
	"errors"
	"testing"
)

func TestDecodeField(t *testing.T) {
	tests := []struct {
		label, raw string
		kind       FieldKind
		value      float64
		unit       Unit
		code       uint32
		on         bool
		absent     bool
	}{
		{label: "V", raw: "12800", kind: KindNumber, value: 12.8, unit: UnitVolt},
		{label: "VS", raw: "-120", kind: KindNumber, value: -0.12, unit: UnitVolt},
		{label: "I", raw: "-1500", kind: KindNumber, value: -1.5, unit: UnitAmp},
		{label: "SOC", raw: "870", kind: KindNumber, value: 87, unit: UnitPercent},
		{label: "DM", raw: "-12", kind: KindNumber, value: -1.2, unit: UnitPercent},
		{label: "CE", raw: "-2500", kind: KindNumber, value: -2.5, unit: UnitAmpHour},
		{label: "TTG", raw: "-1", kind: KindNumber, value: InfiniteTimeToGo, unit: UnitMinute},
		{label: "H17", raw: "1234", kind: KindNumber, value: 12.34, unit: UnitKWh},
		{label: "H4", raw: "17", kind: KindNumber, value: 17, unit: UnitCount},
		{label: "PPV", raw: "250", kind: KindNumber, value: 250, unit: UnitWatt},
		{label: "AC_OUT_V", raw: "23000", kind: KindNumber, value: 230, unit: UnitVolt},
		{label: "AC_OUT_I", raw: "12", kind: KindNumber, value: 1.2, unit: UnitAmp},
		{label: "T", raw: "25", kind: KindNumber, value: 25, unit: UnitCelsius},
		{label: "T", raw: "---", kind: KindNumber, unit: UnitCelsius, absent: true},
		{label: "LOAD", raw: "ON", kind: KindBool, on: true},
		{label: "Relay", raw: "OFF", kind: KindBool},
		{label: "PID", raw: "0xA053", kind: KindCode, code: 0xA053},
		{label: "OR", raw: "0x00000001", kind: KindCode, code: 1},
		{label: "CS", raw: "3", kind: KindCode, code: 3},
		{label: "AR", raw: "2048", kind: KindCode, code: 2048},
		{label: "FW", raw: "C208", kind: KindText},
		{label: "SER#", raw: "HQ1328Y6TF6", kind: KindText},
		{label: "FOO", raw: "bar baz", kind: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.label+"="+tt.raw, func(t *testing.T) {
			f := DecodeField(tt.label, tt.raw)
			if f.Err != nil {
				t.Fatalf("unexpected error: %v", f.Err)
			}
			if f.Label != tt.label || f.Raw != tt.raw {
				t.Errorf("label/raw = %q/%q, want %q/%q", f.Label, f.Raw, tt.label, tt.raw)
			}
			if f.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", f.Kind, tt.kind)
			}
			if f.Value != tt.value {
				t.Errorf("Value = %v, want %v", f.Value, tt.value)
			}
			if f.Unit != tt.unit {
				t.Errorf("Unit = %q, want %q", f.Unit, tt.unit)
			}
			if f.Code != tt.code {
				t.Errorf("Code = %#x, want %#x", f.Code, tt.code)
			}
			if f.On != tt.on {
				t.Errorf("On = %v, want %v", f.On, tt.on)
			}
			if f.Absent != tt.absent {
				t.Errorf("Absent = %v, want %v", f.Absent, tt.absent)
			}
			if f.Known() != (tt.kind != KindUnknown) {
				t.Errorf("Known = %v", f.Known())
			}
		})
	}
}

func TestDecodeFieldErrors(t *testing.T) {
	tests := []struct{ label, raw string }{
		{"V", "12a00"},
		{"V", ""},
		{"V", "99999999999"},
		{"SOC", "-5"},
		{"PID", "0xZZ"},
		{"PID", "0x"},
		{"LOAD", "MAYBE"},
		{"CS", "-1"},
		{"V", "---"},
		{"FW", "zz9"},
		{"FWE", "02zzFF"},
		{"SER#", "bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.label+"="+tt.raw, func(t *testing.T) {
			f := DecodeField(tt.label, tt.raw)
			if f.Err == nil {
				t.Fatalf("expected an error, got %+v", f)
			}
			if !errors.Is(f.Err, ErrUnknownNumericFormat) {
				t.Errorf("error %v does not match ErrUnknownNumericFormat", f.Err)
			}
			var fe *FieldError
			if !errors.As(f.Err, &fe) || fe.Label != tt.label || fe.Raw != tt.raw {
				t.Errorf("error = %#v, want FieldError for %s=%q", f.Err, tt.label, tt.raw)
			}
			if f.OK() {
				t.Error("OK() = true for a field with an error")
			}
			if f.Raw != tt.raw {
				t.Errorf("Raw = %q, want %q", f.Raw, tt.raw)
			}
		})
	}
}
