package acquisition

import "time"

type Config struct {
	Source    SourceConfig
	Audio     AudioConfig
	Buffer    BufferConfig
	Recording RecordingConfig
}

type SourceConfig struct {
	Type          string
	Port          string
	BaudRate      int
	DeviceKeyword string
	VID           string
	PID           string
	ExcludePorts  []string
	RetryInterval time.Duration
}

type AudioConfig struct {
	SampleRate     int
	Channels       int
	BitsPerSample  int
	Encoding       Encoding
	CaptureChunkMs int
	DecodeChunkMs  int
}

type BufferConfig struct {
	ByteCapacity   int
	SampleCapacity int
	MinSize        int
	NotifyQueue    int
}

type RecordingConfig struct {
	Directory      string
	SegmentSeconds int
	WriteWAV       bool
}

// CaptureSamples is the number of frames a source delivers per read.
func (a AudioConfig) CaptureSamples() int {
	if a.SampleRate <= 0 || a.CaptureChunkMs <= 0 {
		return 320
	}
	return a.SampleRate * a.CaptureChunkMs / 1000
}

// DecodeSamples is the number of samples the decoder pulls per chunk.
func (a AudioConfig) DecodeSamples() int {
	if a.SampleRate <= 0 || a.DecodeChunkMs <= 0 {
		return 800
	}
	return a.SampleRate * a.DecodeChunkMs / 1000
}

func (a AudioConfig) channels() int {
	if a.Channels <= 0 {
		return 1
	}
	return a.Channels
}

// CaptureBytes is the size of one raw capture chunk.
func (a AudioConfig) CaptureBytes() int {
	return a.CaptureSamples() * a.channels() * a.Encoding.BytesPerSample()
}

// DecodeBytes is the size of one raw decode chunk.
func (a AudioConfig) DecodeBytes() int {
	return a.DecodeSamples() * a.channels() * a.Encoding.BytesPerSample()
}
