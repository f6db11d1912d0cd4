//go:build !nouac

package acquisition

import (
	"errors"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// AudioSource captures 16-bit mono audio from a USB audio class device via
// PortAudio and serializes it in the configured encoding.
type AudioSource struct {
	cfg     AudioConfig
	target  DeviceTarget
	keyword string

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	pending []byte
	device  string
	closed  bool
}

func NewAudioSource(cfg AudioConfig, target DeviceTarget, keyword string) *AudioSource {
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingPCM16
	}
	return &AudioSource{cfg: cfg, target: target, keyword: keyword}
}

func (s *AudioSource) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != "" {
		return s.device
	}
	return "audio"
}

func (s *AudioSource) Info() SourceInfo {
	return SourceInfo{Name: s.Name(), Kind: "audio", Port: s.target.PortName, VID: s.target.VID, PID: s.target.PID}
}

func (s *AudioSource) Open() error {
	if s.cfg.SampleRate <= 0 || s.cfg.channels() != 1 || (s.cfg.BitsPerSample != 0 && s.cfg.BitsPerSample != 16) {
		return errors.New("audio config must be mono/16bit/valid rate")
	}

	if err := portaudio.Initialize(); err != nil {
		return err
	}

	device, err := pickCaptureDevice(s.keyword, s.target)
	if err != nil {
		_ = portaudio.Terminate()
		return err
	}

	params := portaudio.HighLatencyParameters(device, nil)
	params.SampleRate = float64(s.cfg.SampleRate)
	params.Input.Channels = 1
	params.FramesPerBuffer = s.cfg.CaptureSamples()
	buf := make([]int16, params.FramesPerBuffer)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return err
	}

	s.mu.Lock()
	s.stream = stream
	s.buf = buf
	s.device = device.Name
	s.closed = false
	s.mu.Unlock()
	return nil
}

// ReadChunk blocks for one capture buffer and returns as much of its
// encoded form as fits in p; the remainder is served by the next call.
func (s *AudioSource) ReadChunk(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return 0, errors.New("audio source not open")
	}

	if len(s.pending) == 0 {
		if err := s.stream.Read(); err != nil {
			// Overflow only means samples were dropped by the device.
			if !errors.Is(err, portaudio.InputOverflowed) {
				return 0, err
			}
		}
		s.pending = s.cfg.Encoding.Encode(s.buf)
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *AudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil || s.closed {
		return nil
	}
	s.closed = true

	var closeErr error
	_ = s.stream.Stop()
	if err := s.stream.Close(); err != nil {
		closeErr = err
	}
	if err := portaudio.Terminate(); err != nil && closeErr == nil {
		closeErr = err
	}
	s.stream = nil
	s.pending = nil
	return closeErr
}
