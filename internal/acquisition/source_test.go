package acquisition

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourceRejectsUnknownType(t *testing.T) {
	_, err := NewSource(Config{Source: SourceConfig{Type: "carrier-pigeon"}})
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestNewSourceBuildsConfiguredType(t *testing.T) {
	src, err := NewSource(Config{Source: SourceConfig{Type: "serial", Port: "/dev/ttyUSB9"}})
	require.NoError(t, err)
	assert.IsType(t, &SerialSource{}, src)
	assert.Equal(t, "/dev/ttyUSB9", src.Name())

	src, err = NewSource(Config{})
	require.NoError(t, err)
	assert.Equal(t, "null", src.Name())

	src, err = NewSource(Config{Source: SourceConfig{Type: "Tone"}})
	require.NoError(t, err)
	assert.Equal(t, "tone", src.Name())
}

func TestNullSourceEmitsSilence(t *testing.T) {
	audio := AudioConfig{SampleRate: 1000, CaptureChunkMs: 1}
	src := NewNullSource(audio, 0)
	require.NoError(t, src.Open())
	defer src.Close()

	buf := make([]byte, 64)
	n, err := src.ReadChunk(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one frame at 1 kHz for 1 ms")
	assert.Equal(t, []byte{0, 0}, buf[:n])
}

func TestToneSourceEmitsSignal(t *testing.T) {
	audio := AudioConfig{SampleRate: 8000, CaptureChunkMs: 1, Encoding: EncodingULaw}
	src := NewNullSource(audio, 440)
	require.NoError(t, src.Open())

	buf := make([]byte, 64)
	n, err := src.ReadChunk(buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.NotEqual(t, bytes.Repeat([]byte{0xFF}, 8), buf[:n])

	require.NoError(t, src.Close())
	_, err = src.ReadChunk(buf)
	assert.Error(t, err)
}

func TestReaderSourceReportsEOFAndClosesOnce(t *testing.T) {
	pr, pw := io.Pipe()
	src := NewReaderSource("pipe", pr)
	go func() {
		_, _ = pw.Write([]byte{1, 2, 3})
		_ = pw.Close()
	}()

	buf := make([]byte, 8)
	n, err := src.ReadChunk(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, buf[:n])

	_, err = src.ReadChunk(buf)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.Equal(t, SourceInfo{Name: "pipe", Kind: "reader"}, src.Info())
}
