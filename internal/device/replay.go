package device

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ReplayConfig holds configuration for replaying a raw capture.
type ReplayConfig struct {
	Path string `yaml:"path" json:"path"`
	Loop bool   `yaml:"loop" json:"loop"`
	// Delay after each read, to pace a capture roughly like a live port.
	Delay time.Duration `yaml:"delay" json:"delay"`
}

// ReplayProvider feeds a recorded byte stream (for example a dump taken
// with `cat /dev/ttyUSB0 > capture.bin`) through the normal pipeline.
type ReplayProvider struct {
	cfg ReplayConfig

	mu   sync.Mutex
	file *os.File
}

// NewReplay creates a replay provider. The file is opened by Connect.
func NewReplay(cfg ReplayConfig) *ReplayProvider {
	return &ReplayProvider{cfg: cfg}
}

func (r *ReplayProvider) Name() string { return "Replay " + r.cfg.Path }

func (r *ReplayProvider) Connect() error {
	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return fmt.Errorf("replay: failed to open %s: %w", r.cfg.Path, err)
	}
	r.mu.Lock()
	r.file = f
	r.mu.Unlock()
	return nil
}

func (r *ReplayProvider) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *ReplayProvider) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file != nil
}

// ReadRaw reads the next chunk of the capture. Without Loop it returns
// io.EOF at the end; with Loop it rewinds and carries on.
func (r *ReplayProvider) ReadRaw(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return 0, ErrNotConnected
	}

	n, err := r.file.Read(buf)
	if r.cfg.Delay > 0 && n > 0 {
		time.Sleep(r.cfg.Delay)
	}
	if errors.Is(err, io.EOF) {
		if !r.cfg.Loop {
			return n, io.EOF
		}
		if _, serr := r.file.Seek(0, io.SeekStart); serr != nil {
			return n, fmt.Errorf("replay: rewind %s: %w", r.cfg.Path, serr)
		}
		return n, nil
	}
	if err != nil {
		return n, fmt.Errorf("replay: read %s: %w", r.cfg.Path, err)
	}
	return n, nil
}
