package device

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/shaunagostinho/vedirect-dash/internal/logging"
)

// DefaultBaudRate is the VE.Direct line speed.
const DefaultBaudRate = 19200

const serialReadTimeout = 500 * time.Millisecond

// SerialConfig holds configuration for a VE.Direct serial port.
type SerialConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// SerialProvider reads Text-mode bytes from a VE.Direct USB or UART cable.
type SerialProvider struct {
	portPath string
	baudRate int

	mu        sync.Mutex
	port      serial.Port
	connected bool
}

// NewSerial creates a serial provider. The port is opened by Connect.
func NewSerial(cfg SerialConfig) *SerialProvider {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	return &SerialProvider{
		portPath: cfg.PortPath,
		baudRate: cfg.BaudRate,
	}
}

func (s *SerialProvider) Name() string { return "VE.Direct " + s.portPath }

func (s *SerialProvider) Connect() error {
	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.portPath, mode)
	if err != nil {
		return fmt.Errorf("serial: failed to open %s: %w", s.portPath, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("serial: set read timeout on %s: %w", s.portPath, err)
	}

	s.mu.Lock()
	s.port = port
	s.connected = true
	s.mu.Unlock()

	logging.Info("serial port opened",
		zap.String("component", "serial"),
		zap.String("port", s.portPath),
		zap.Int("baud", s.baudRate),
	)
	return nil
}

func (s *SerialProvider) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func (s *SerialProvider) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *SerialProvider) ReadRaw(buf []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return 0, ErrNotConnected
	}

	n, err := port.Read(buf)
	if err != nil {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		return n, fmt.Errorf("serial: read %s: %w", s.portPath, err)
	}
	return n, nil
}
