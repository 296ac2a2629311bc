package device

import "errors"

// Provider is a raw byte source for one VE.Direct port. Serial ports,
// the simulator and capture files all implement it.
type Provider interface {
	// Name returns the human-readable name of this source.
	Name() string
	// Connect opens the underlying port or file.
	Connect() error
	// Close releases it. Close on a closed provider is a no-op.
	Close() error
	// IsConnected reports whether ReadRaw can be called.
	IsConnected() bool

	// ReadRaw performs I/O only and never parses. It returns 0, nil when
	// nothing arrived before the read timeout and io.EOF when a finite
	// source is exhausted.
	ReadRaw(buf []byte) (int, error)
}

// ErrNotConnected is returned by ReadRaw before Connect succeeds.
var ErrNotConnected = errors.New("device: not connected")
