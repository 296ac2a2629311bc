package vedirect

import "slices"

// DefaultMaxFields bounds the number of fields buffered for one frame.
const DefaultMaxFields = 64

// Result is the outcome of one frame: either Record or Err is set.
type Result struct {
	Record Record
	Err    error
}

// Option configures a Parser.
type Option func(*Parser)

// WithStrict makes any field decode error discard the whole frame with a
// FrameError wrapping ErrUnknownNumericFormat. By default such frames still
// produce a Record and the errors are attached to the fields.
func WithStrict(strict bool) Option {
	return func(p *Parser) { p.strict = strict }
}

// WithMaxFields changes the per-frame field limit.
func WithMaxFields(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxFields = n
		}
	}
}

// Parser decodes a VE.Direct Text-mode byte stream. It performs no I/O and
// is not safe for concurrent use; give each stream its own Parser.
type Parser struct {
	tok       tokenizer
	fields    []Field
	strict    bool
	maxFields int

	// resyncing is set after a frame was abandoned. The next frame is
	// accepted only if its checksum holds and nothing is reported until then.
	resyncing bool
}

// NewParser returns a Parser waiting for the start of a frame.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		tok:       newTokenizer(),
		maxFields: DefaultMaxFields,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.fields = make([]Field, 0, min(p.maxFields, 32))
	return p
}

// Feed consumes chunk and returns the frames it completed, in stream order.
// Partial frames are kept for the next call.
func (p *Parser) Feed(chunk []byte) []Result {
	var out []Result
	for _, b := range chunk {
		var (
			r  Result
			ok bool
		)
		switch p.tok.step(b) {
		case tokenField:
			p.addField()
		case tokenFrameEnd:
			r, ok = p.completeFrame()
		case tokenMalformed:
			r, ok = p.abandon(b)
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}

// Flush is called when the input ends. It reports a frame that was started
// but never completed and resets the parser.
func (p *Parser) Flush() error {
	defer p.Reset()
	if !p.Pending() || p.resyncing {
		return nil
	}
	return &FrameError{
		Err:    ErrUnexpectedEndOfStream,
		Label:  string(p.tok.label),
		Detail: "stream ended in state " + p.tok.state.String(),
		Sum:    p.tok.sum.sum,
		Fields: slices.Clone(p.fields),
	}
}

// Pending reports whether part of a frame has been received.
func (p *Parser) Pending() bool {
	return len(p.fields) > 0 || p.tok.inFrame()
}

// Reset drops any partial frame, e.g. after the transport reconnected.
func (p *Parser) Reset() {
	p.tok.reset()
	p.fields = p.fields[:0]
	p.resyncing = false
}

func (p *Parser) addField() {
	defer p.tok.nextField()
	if p.tok.invalid {
		return
	}
	if len(p.fields) >= p.maxFields {
		p.tok.markInvalid("too many fields in frame")
		return
	}
	p.fields = append(p.fields, DecodeField(string(p.tok.label), string(p.tok.value)))
}

func (p *Parser) completeFrame() (Result, bool) {
	var (
		resyncing    = p.resyncing
		sum          = p.tok.sum.sum
		sealErr      = p.tok.sealErr
		invalid      = p.tok.invalid
		reason       = p.tok.reason
		badLabel     = p.tok.badLabel
		checksumByte = p.tok.checksumByte
		fields       = slices.Clone(p.fields)
	)
	p.Reset()

	fe := &FrameError{Sum: sum, Fields: fields}
	switch {
	case sealErr != nil:
		// The tokenizer seals once per frame and the accumulator is reset
		// right after, so this only guards against a state machine bug.
		fe.Err, fe.Label = sealErr, checksumLabel
	case sum != 0:
		fe.Err = ErrChecksumMismatch
		if invalid {
			fe.Detail = "frame also malformed: " + reason
		}
	case invalid:
		fe.Err, fe.Label, fe.Detail = ErrMalformedField, badLabel, reason
	case len(fields) == 0:
		fe.Err, fe.Label, fe.Detail = ErrMalformedField, checksumLabel, "frame has no fields"
	default:
		fe = nil
	}
	if fe != nil {
		if resyncing {
			return Result{}, false
		}
		return Result{Err: fe}, true
	}

	if p.strict {
		for _, f := range fields {
			if f.Err != nil {
				return Result{Err: &FrameError{
					Err:    ErrUnknownNumericFormat,
					Label:  f.Label,
					Detail: f.Err.Error(),
					Fields: fields,
				}}, true
			}
		}
	}
	return Result{Record: buildRecord(fields, checksumByte)}, true
}

// abandon drops an invalid frame whose checksum field never arrived. Only
// the first abandoned frame of a run is reported.
func (p *Parser) abandon(b byte) (Result, bool) {
	fe := &FrameError{
		Err:    ErrMalformedField,
		Label:  p.tok.badLabel,
		Detail: p.tok.reason + ", no checksum field found",
		Sum:    p.tok.sum.sum,
		Fields: slices.Clone(p.fields),
	}
	report := !p.resyncing

	p.fields = p.fields[:0]
	p.tok.restart(b)
	p.resyncing = true

	if !report {
		return Result{}, false
	}
	return Result{Err: fe}, true
}
