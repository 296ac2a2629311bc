package vedirect

import (
	"errors"
	"strconv"
	"strings"
)

var errSerialFormat = errors.New("serial number is not LLYYWWSSSSS")

// SerialNumber is a decoded SER# value: location, production year and week,
// and the unique part.
type SerialNumber struct {
	Raw      string `json:"raw"`
	Location string `json:"location"`
	Year     int    `json:"year"`
	Week     int    `json:"week"`
	ID       string `json:"id"`
}

// ParseSerialNumber decodes an LLYYWWSSSSS serial number, e.g. HQ1328Y6TF6.
func ParseSerialNumber(s string) (SerialNumber, error) {
	sn := SerialNumber{Raw: s}
	if len(s) != 11 {
		return sn, errSerialFormat
	}
	yy, err := strconv.ParseUint(s[2:4], 10, 8)
	if err != nil {
		return sn, errSerialFormat
	}
	ww, err := strconv.ParseUint(s[4:6], 10, 8)
	if err != nil || ww > 53 {
		return sn, errSerialFormat
	}
	sn.Location = strings.ToUpper(s[:2])
	sn.Year = 2000 + int(yy)
	sn.Week = int(ww)
	sn.ID = strings.ToUpper(s[6:])
	return sn, nil
}

func (sn SerialNumber) String() string { return sn.Raw }
