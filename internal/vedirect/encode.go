package vedirect

import "bytes"

// RawField is an undecoded label/value pair.
type RawField struct {
	Label string
	Value string
}

// Encode renders fields as one frame the way devices send it: every field
// is preceded by CR LF and the frame ends with the Checksum field.
func Encode(fields ...RawField) []byte {
	var buf bytes.Buffer
	for _, f := range fields {
		buf.WriteString("\r\n")
		buf.WriteString(f.Label)
		buf.WriteByte(fieldSeparator)
		buf.WriteString(f.Value)
	}
	buf.WriteString("\r\n" + checksumLabel)
	buf.WriteByte(fieldSeparator)
	frame := buf.Bytes()
	return append(frame, ChecksumByte(frame))
}

// RawFields returns the label/value pairs of a record in frame order.
func RawFields(r Record) []RawField {
	info := r.Info()
	out := make([]RawField, 0, len(info.Fields))
	for _, f := range info.Fields {
		out = append(out, RawField{Label: f.Label, Value: f.Raw})
	}
	return out
}
