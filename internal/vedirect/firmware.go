package vedirect

import (
	"errors"
	"fmt"
	"strconv"
)

var errFirmwareFormat = errors.New("unrecognised firmware version")

// Firmware is a decoded FW or FWE value.
//
// FW is sent as [A-Z]?MNN (C208 is release candidate C of 2.08) and FWE as
// MMNNBB where BB is FF for a release and the beta number otherwise.
type Firmware struct {
	Raw   string `json:"raw"`
	Major int    `json:"major"`
	Minor int    `json:"minor"`
	RC    string `json:"rc,omitempty"`
	Beta  int    `json:"beta,omitempty"`
}

// ParseFirmware decodes a FW (3 or 4 characters) or FWE (5 or 6 characters)
// value.
func ParseFirmware(s string) (Firmware, error) {
	fw := Firmware{Raw: s}
	switch len(s) {
	case 3, 4:
		digits := s
		if c := s[0]; c >= 'A' && c <= 'Z' {
			fw.RC = s[:1]
			digits = s[1:]
		}
		if len(digits) < 3 {
			return fw, errFirmwareFormat
		}
		return fw, fw.setVersion(digits)
	case 5, 6:
		beta, err := strconv.ParseUint(s[len(s)-2:], 16, 8)
		if err != nil {
			return fw, errFirmwareFormat
		}
		if beta != 0xFF {
			fw.Beta = int(beta)
		}
		return fw, fw.setVersion(s[:len(s)-2])
	}
	return fw, errFirmwareFormat
}

func (fw *Firmware) setVersion(digits string) error {
	major, err := strconv.ParseUint(digits[:len(digits)-2], 10, 8)
	if err != nil {
		return errFirmwareFormat
	}
	minor, err := strconv.ParseUint(digits[len(digits)-2:], 10, 8)
	if err != nil {
		return errFirmwareFormat
	}
	fw.Major, fw.Minor = int(major), int(minor)
	return nil
}

func (fw Firmware) String() string {
	v := fmt.Sprintf("%d.%02d", fw.Major, fw.Minor)
	switch {
	case fw.RC != "":
		v += "-" + fw.RC
	case fw.Beta != 0:
		v += fmt.Sprintf("-beta%02d", fw.Beta)
	}
	return v
}
