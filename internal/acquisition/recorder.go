package acquisition

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pccr10001/daqring/internal/model"
	"github.com/pccr10001/daqring/pkg/ringchan"
	"go.uber.org/zap"
)

// SegmentHandler receives every finished segment.
type SegmentHandler func(*model.Segment)

// segmentWriter accumulates one segment's statistics and, when a directory
// is configured, streams its samples into a 16-bit WAV file.
type segmentWriter struct {
	started time.Time
	samples int
	peak    float64
	sumSq   float64

	path string
	file *os.File
	enc  *wav.Encoder
	buf  *audio.IntBuffer
}

// Recorder consumes the sample channel and turns each marked stretch into a
// model.Segment.
type Recorder struct {
	device     string
	sampleRate int
	channels   int
	dir        string
	writeWAV   bool
	onSegment  SegmentHandler
	logger     *zap.Logger

	seq     uint64
	current *segmentWriter
	pending atomic.Int64
}

func NewRecorder(device string, audioCfg AudioConfig, rec RecordingConfig, firstSeq uint64, onSegment SegmentHandler, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		device:     device,
		sampleRate: audioCfg.SampleRate,
		channels:   audioCfg.channels(),
		dir:        rec.Directory,
		writeWAV:   rec.WriteWAV && rec.Directory != "",
		onSegment:  onSegment,
		logger:     logger,
		seq:        firstSeq,
	}
}

// Run reads samples until ctx is cancelled. A segment in progress when Run
// returns is flushed as partial.
func (r *Recorder) Run(ctx context.Context, samples *ringchan.Channel[float32], chunk int) error {
	if chunk <= 0 {
		chunk = 800
	}
	buf := make([]float32, chunk)
	defer r.finish(true)

	for {
		n, err := samples.Read(ctx, buf, true)
		switch {
		case errors.Is(err, ringchan.ErrSegmentEnd):
			r.finish(false)
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if n > 0 {
			if werr := r.append(buf[:n]); werr != nil {
				r.logger.Error("segment write failed", zap.String("device", r.device), zap.Error(werr))
			}
		}
	}
}

// Pending returns the number of samples in the unfinished segment.
func (r *Recorder) Pending() int {
	return int(r.pending.Load())
}

func (r *Recorder) append(samples []float32) error {
	opened := r.current == nil
	if opened {
		r.current = &segmentWriter{started: time.Now()}
	}

	seg := r.current
	for _, s := range samples {
		v := math.Abs(float64(s))
		seg.peak = max(seg.peak, v)
		seg.sumSq += float64(s) * float64(s)
	}
	seg.samples += len(samples)
	r.pending.Store(int64(seg.samples))

	if opened && r.writeWAV {
		if err := r.openWAV(seg); err != nil {
			return err
		}
	}
	if seg.enc == nil {
		return nil
	}
	if cap(seg.buf.Data) < len(samples) {
		seg.buf.Data = make([]int, len(samples))
	}
	seg.buf.Data = seg.buf.Data[:len(samples)]
	for i, s := range samples {
		seg.buf.Data[i] = int(FloatToPCM16(s))
	}
	return seg.enc.Write(seg.buf)
}

func (r *Recorder) openWAV(seg *segmentWriter) error {
	if err := os.MkdirAll(r.dir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	name := fmt.Sprintf("%s_%06d_%s.wav", safeName(r.device), r.seq+1, seg.started.Format("20060102T150405"))
	path := filepath.Join(r.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	seg.path = path
	seg.file = f
	seg.enc = wav.NewEncoder(f, r.sampleRate, 16, r.channels, 1)
	seg.buf = &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: r.sampleRate, NumChannels: r.channels},
		SourceBitDepth: 16,
	}
	return nil
}

// finish closes the current segment. Empty segments are skipped.
func (r *Recorder) finish(partial bool) {
	seg := r.current
	r.current = nil
	r.pending.Store(0)
	if seg == nil || seg.samples == 0 {
		return
	}

	if seg.enc != nil {
		if err := seg.enc.Close(); err != nil {
			r.logger.Error("failed to finalize WAV", zap.String("path", seg.path), zap.Error(err))
		}
		_ = seg.file.Close()
	}

	r.seq++
	out := &model.Segment{
		Device:     r.device,
		Sequence:   r.seq,
		Samples:    seg.samples,
		SampleRate: r.sampleRate,
		Channels:   r.channels,
		Peak:       seg.peak,
		RMS:        math.Sqrt(seg.sumSq / float64(seg.samples)),
		FilePath:   seg.path,
		Partial:    partial,
		StartedAt:  seg.started,
		EndedAt:    time.Now(),
	}
	if r.sampleRate > 0 {
		out.Duration = float64(seg.samples) / float64(r.sampleRate*r.channels)
	}

	r.logger.Info("segment recorded",
		zap.String("device", r.device),
		zap.Uint64("sequence", out.Sequence),
		zap.Int("samples", out.Samples),
		zap.Bool("partial", partial))

	if r.onSegment != nil {
		r.onSegment(out)
	}
}

func safeName(s string) string {
	out := []rune(s)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			out[i] = '_'
		}
	}
	if len(out) == 0 {
		return "device"
	}
	return string(out)
}
