package vedirect

import (
	"errors"
	"io"
)

const readBufferSize = 4096

// Reader pulls frames from an io.Reader.
type Reader struct {
	r       io.Reader
	p       *Parser
	buf     []byte
	pending []Result
	err     error
}

// NewReader returns a Reader decoding r with a fresh Parser.
func NewReader(r io.Reader, opts ...Option) *Reader {
	return &Reader{
		r:   r,
		p:   NewParser(opts...),
		buf: make([]byte, readBufferSize),
	}
}

// Next returns the next record. A *FrameError reports a discarded frame and
// reading may continue after it. Any other error, io.EOF included, is final
// and returned by every later call.
func (d *Reader) Next() (Record, error) {
	for {
		if len(d.pending) > 0 {
			res := d.pending[0]
			d.pending = d.pending[1:]
			return res.Record, res.Err
		}
		if d.err != nil {
			return nil, d.err
		}

		n, err := d.r.Read(d.buf)
		if n > 0 {
			d.pending = append(d.pending, d.p.Feed(d.buf[:n])...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if ferr := d.p.Flush(); ferr != nil {
					d.pending = append(d.pending, Result{Err: ferr})
				}
			}
			d.err = err
		}
	}
}
