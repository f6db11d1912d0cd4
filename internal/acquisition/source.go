package acquisition

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"
)

// ErrUnsupportedSource is returned by NewSource for an unknown source type.
var ErrUnsupportedSource = errors.New("unsupported source type")

// Source produces raw device bytes in the configured encoding. ReadChunk
// may return (0, nil) when no data arrived within the device timeout, and
// io.EOF once the source is exhausted. Close is safe to call more than once.
type Source interface {
	Name() string
	Info() SourceInfo
	Open() error
	ReadChunk(p []byte) (int, error)
	Close() error
}

// NewSource builds the source named by cfg.Source.Type.
func NewSource(cfg Config) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Source.Type)) {
	case "serial":
		return NewSerialSource(cfg.Source), nil
	case "audio", "uac":
		return NewAudioSource(cfg.Audio, DeviceTarget{
			PortName: cfg.Source.Port,
			VID:      cfg.Source.VID,
			PID:      cfg.Source.PID,
		}, cfg.Source.DeviceKeyword), nil
	case "", "null":
		return NewNullSource(cfg.Audio, 0), nil
	case "tone":
		return NewNullSource(cfg.Audio, 440), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, cfg.Source.Type)
	}
}

// NullSource generates silence, or a sine tone when freq is non-zero, paced
// at the configured capture chunk rate. It is used for dry runs.
type NullSource struct {
	audio AudioConfig
	freq  float64

	mu     sync.Mutex
	phase  float64
	opened bool
}

func NewNullSource(audio AudioConfig, freq float64) *NullSource {
	if audio.Encoding == "" {
		audio.Encoding = EncodingPCM16
	}
	return &NullSource{audio: audio, freq: freq}
}

func (s *NullSource) Name() string {
	if s.freq > 0 {
		return "tone"
	}
	return "null"
}

func (s *NullSource) Info() SourceInfo {
	return SourceInfo{Name: s.Name(), Kind: s.Name()}
}

func (s *NullSource) Open() error {
	s.mu.Lock()
	s.opened = true
	s.mu.Unlock()
	return nil
}

func (s *NullSource) ReadChunk(p []byte) (int, error) {
	if s.audio.CaptureChunkMs > 0 {
		time.Sleep(time.Duration(s.audio.CaptureChunkMs) * time.Millisecond)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return 0, io.ErrClosedPipe
	}

	frames := min(s.audio.CaptureSamples(), len(p)/s.audio.Encoding.BytesPerSample())
	pcm := make([]int16, frames)
	if s.freq > 0 && s.audio.SampleRate > 0 {
		step := 2 * math.Pi * s.freq / float64(s.audio.SampleRate)
		for i := range pcm {
			pcm[i] = int16(math.Sin(s.phase) * 8000)
			s.phase += step
		}
		s.phase = math.Mod(s.phase, 2*math.Pi)
	}
	return copy(p, s.audio.Encoding.Encode(pcm)), nil
}

func (s *NullSource) Close() error {
	s.mu.Lock()
	s.opened = false
	s.mu.Unlock()
	return nil
}

// ReaderSource replays bytes from an io.Reader, reporting io.EOF when the
// reader is exhausted.
type ReaderSource struct {
	name string
	r    io.Reader

	closeOnce sync.Once
}

func NewReaderSource(name string, r io.Reader) *ReaderSource {
	return &ReaderSource{name: name, r: r}
}

func (s *ReaderSource) Name() string { return s.name }

func (s *ReaderSource) Info() SourceInfo {
	return SourceInfo{Name: s.name, Kind: "reader"}
}

func (s *ReaderSource) Open() error { return nil }

func (s *ReaderSource) ReadChunk(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *ReaderSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if c, ok := s.r.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
