package acquisition

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"go.bug.st/serial"
)

const serialReadTimeout = 100 * time.Millisecond

// SerialSource reads raw bytes from a serial port. When no port is
// configured the first port not listed in ExcludePorts is used.
type SerialSource struct {
	cfg SourceConfig

	mu       sync.Mutex
	port     serial.Port
	portName string
}

func NewSerialSource(cfg SourceConfig) *SerialSource {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 115200
	}
	return &SerialSource{cfg: cfg}
}

func (s *SerialSource) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.portName != "" {
		return s.portName
	}
	return s.cfg.Port
}

func (s *SerialSource) Info() SourceInfo {
	info := SourceInfo{Name: s.Name(), Kind: "serial", Port: s.Name()}
	if id, err := ResolveUSBIdentityFromPort(DeviceTarget{PortName: info.Port, VID: s.cfg.VID, PID: s.cfg.PID}); err == nil {
		info.VID, info.PID, info.Serial = id.VID, id.PID, id.Serial
	}
	return info
}

func (s *SerialSource) Open() error {
	name, err := s.pickPort()
	if err != nil {
		return err
	}

	port, err := serial.Open(name, &serial.Mode{BaudRate: s.cfg.BaudRate})
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", name, err)
	}
	// Read returns (0, nil) on timeout so the producer can observe stop.
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("set read timeout on %s: %w", name, err)
	}

	s.mu.Lock()
	s.port = port
	s.portName = name
	s.mu.Unlock()
	return nil
}

func (s *SerialSource) pickPort() (string, error) {
	if s.cfg.Port != "" {
		return s.cfg.Port, nil
	}
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", fmt.Errorf("list serial ports: %w", err)
	}
	for _, p := range ports {
		if !slices.Contains(s.cfg.ExcludePorts, p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("no usable serial port among %v", ports)
}

func (s *SerialSource) ReadChunk(p []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return 0, fmt.Errorf("serial port not open")
	}
	return port.Read(p)
}

func (s *SerialSource) Close() error {
	s.mu.Lock()
	port := s.port
	s.port = nil
	s.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}
