package vedirect

// tokenState is the position of the tokenizer inside a frame.
type tokenState int

const (
	stateAwaitingFrameStart tokenState = iota
	stateReadingLabel
	stateReadingValue
	stateChecksumPending
	stateHexMessage
)

func (s tokenState) String() string {
	switch s {
	case stateAwaitingFrameStart:
		return "awaiting-frame-start"
	case stateReadingLabel:
		return "reading-label"
	case stateReadingValue:
		return "reading-value"
	case stateChecksumPending:
		return "checksum-pending"
	case stateHexMessage:
		return "hex-message"
	}
	return "unknown"
}

// token is what a single byte produced.
type token int

const (
	tokenNone      token = iota
	tokenField           // label and value complete
	tokenFrameEnd        // checksum byte consumed
	tokenMalformed       // invalid frame ran too long, give up on it
)

const (
	fieldSeparator = '\t'
	hexMarker      = ':'
	checksumLabel  = "Checksum"

	maxLabelLen = 32
	maxValueLen = 64

	// A frame marked invalid is still read up to its checksum byte, so the
	// checksum decides how it is reported. After this many further bytes
	// without a checksum field the frame is abandoned.
	maxDiscardLen = 1024
	// Longest HEX message accepted before it is treated as noise.
	maxHexLen = 512
)

// tokenizer splits the byte stream into fields. It keeps partial labels and
// values between calls, so chunk boundaries never matter.
type tokenizer struct {
	state  tokenState
	resume tokenState // restored when a HEX message ends
	hexLen int
	label  []byte
	value  []byte
	sum    checksum

	checksumByte byte
	sealErr      error

	// First structural problem of the current frame.
	invalid    bool
	reason     string
	badLabel   string
	discardLen int
}

func newTokenizer() tokenizer {
	return tokenizer{
		label: make([]byte, 0, maxLabelLen),
		value: make([]byte, 0, maxValueLen),
	}
}

func isLabelByte(b byte) bool { return b > 0x20 && b < 0x7f }

func isValueByte(b byte) bool { return b >= 0x20 && b < 0x7f }

func isLineEnd(b byte) bool { return b == '\r' || b == '\n' }

func (t *tokenizer) step(b byte) token {
	if t.invalid {
		t.discardLen++
		if t.discardLen > maxDiscardLen {
			return tokenMalformed
		}
	}

	if b == hexMarker && t.atFieldStart() {
		t.resume = t.state
		t.state = stateHexMessage
		t.hexLen = 0
		return tokenNone
	}

	switch t.state {
	case stateHexMessage:
		t.hexLen++
		if b == '\n' {
			t.state = t.resume
		} else if t.hexLen > maxHexLen {
			t.state = t.resume
			t.markInvalid("unterminated HEX message")
		}
		return tokenNone

	case stateAwaitingFrameStart, stateReadingLabel:
		t.sum.add(b)
		switch {
		case b == fieldSeparator:
			if len(t.label) == 0 {
				t.markInvalid("empty label")
			}
			if string(t.label) == checksumLabel {
				t.state = stateChecksumPending
			} else {
				t.state = stateReadingValue
			}
		case isLineEnd(b):
			if len(t.label) > 0 {
				t.markInvalid("label without value")
				t.nextField()
			}
		case !isLabelByte(b):
			t.markInvalid("invalid label byte")
			t.state = stateReadingLabel
		case len(t.label) >= maxLabelLen:
			t.markInvalid("label too long")
		default:
			t.label = append(t.label, b)
			t.state = stateReadingLabel
		}
		return tokenNone

	case stateReadingValue:
		t.sum.add(b)
		switch {
		case isLineEnd(b):
			t.state = stateReadingLabel
			if len(t.label) == 0 {
				t.nextField()
				return tokenNone
			}
			if len(t.value) == 0 {
				t.markInvalid("label without value")
				t.nextField()
				return tokenNone
			}
			return tokenField
		case !isValueByte(b):
			t.markInvalid("invalid value byte")
		case len(t.value) >= maxValueLen:
			t.markInvalid("value too long")
		default:
			t.value = append(t.value, b)
		}
		return tokenNone

	case stateChecksumPending:
		t.checksumByte = b
		t.sealErr = t.sum.seal(b)
		return tokenFrameEnd
	}
	return tokenNone
}

// atFieldStart reports whether no byte of the current field has been read.
// HEX messages are only recognised there.
func (t *tokenizer) atFieldStart() bool {
	return (t.state == stateAwaitingFrameStart || t.state == stateReadingLabel) && len(t.label) == 0
}

// markInvalid records the first structural problem of the frame. The frame
// keeps being read so its checksum byte is found.
func (t *tokenizer) markInvalid(reason string) {
	if t.invalid {
		return
	}
	t.invalid = true
	t.reason = reason
	t.badLabel = string(t.label)
}

// nextField clears the label and value after the caller consumed them.
func (t *tokenizer) nextField() {
	t.label = t.label[:0]
	t.value = t.value[:0]
}

// inFrame reports whether any label byte of the current frame has been seen.
func (t *tokenizer) inFrame() bool {
	s := t.state
	if s == stateHexMessage {
		s = t.resume
	}
	return s != stateAwaitingFrameStart || t.invalid
}

func (t *tokenizer) reset() {
	t.state = stateAwaitingFrameStart
	t.resume = stateAwaitingFrameStart
	t.hexLen = 0
	t.nextField()
	t.sum.reset()
	t.checksumByte = 0
	t.sealErr = nil
	t.invalid = false
	t.reason = ""
	t.badLabel = ""
	t.discardLen = 0
}

// restart resets after an abandoned frame. A line terminator also opens the
// next field, so it counts towards the next frame.
func (t *tokenizer) restart(b byte) {
	t.reset()
	if isLineEnd(b) {
		t.sum.add(b)
	}
}
