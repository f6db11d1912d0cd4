package acquisition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pccr10001/daqring/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCountsSamplesWhenWAVCannotBeCreated(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	var got []*model.Segment
	rec := NewRecorder("dev", AudioConfig{SampleRate: 1000, Channels: 1},
		RecordingConfig{Directory: blocker, WriteWAV: true}, 0,
		func(s *model.Segment) { got = append(got, s) }, nil)

	require.Error(t, rec.append([]float32{0.5, -0.25}))
	require.NoError(t, rec.append([]float32{0.1}))
	assert.Equal(t, 3, rec.Pending())

	rec.finish(false)
	require.Len(t, got, 1)
	seg := got[0]
	assert.Equal(t, 3, seg.Samples)
	assert.InDelta(t, 0.5, seg.Peak, 1e-6)
	assert.Empty(t, seg.FilePath)
	assert.EqualValues(t, 1, seg.Sequence)
}

func TestRecorderWritesWAVPath(t *testing.T) {
	dir := t.TempDir()
	var got []*model.Segment
	rec := NewRecorder("dev", AudioConfig{SampleRate: 1000, Channels: 1},
		RecordingConfig{Directory: dir, WriteWAV: true}, 0,
		func(s *model.Segment) { got = append(got, s) }, nil)

	require.NoError(t, rec.append([]float32{0.5, 0.5}))
	rec.finish(true)

	require.Len(t, got, 1)
	assert.True(t, got[0].Partial)
	require.NotEmpty(t, got[0].FilePath)
	assert.Equal(t, dir, filepath.Dir(got[0].FilePath))
	_, err := os.Stat(got[0].FilePath)
	require.NoError(t, err)
}
