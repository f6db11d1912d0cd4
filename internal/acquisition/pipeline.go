package acquisition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pccr10001/daqring/internal/model"
	"github.com/pccr10001/daqring/pkg/ringchan"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrRunning = errors.New("pipeline already running")

const drainPoll = 10 * time.Millisecond

// PipelineOptions carries the hooks a Pipeline reports through.
type PipelineOptions struct {
	Listener  ringchan.Listener
	OnSegment SegmentHandler
	Logger    *zap.Logger
}

// Stats describes the pipeline and both of its channels.
type Stats struct {
	Running        bool           `json:"running"`
	Source         SourceInfo     `json:"source"`
	Bytes          ringchan.Stats `json:"bytes"`
	Samples        ringchan.Stats `json:"samples"`
	BytesIn        uint64         `json:"bytes_in"`
	Segments       uint64         `json:"segments"`
	PendingSamples int            `json:"pending_samples"`
}

// Pipeline moves raw device bytes through a byte channel, decodes them into
// a sample channel and records each marked stretch as a segment. The two
// channels live as long as the Pipeline; Run may be called again after a
// source fails.
type Pipeline struct {
	cfg       Config
	logger    *zap.Logger
	onSegment SegmentHandler

	bytes   *ringchan.Channel[byte]
	samples *ringchan.Channel[float32]

	mu       sync.Mutex
	running  bool
	source   SourceInfo
	recorder *Recorder

	bytesIn  atomic.Uint64
	segments atomic.Uint64
}

func NewPipeline(cfg Config, opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Audio.Encoding == "" {
		cfg.Audio.Encoding = EncodingPCM16
	}

	common := []ringchan.Option{ringchan.WithLogger(logger.Named("ringchan"))}
	if opts.Listener != nil {
		common = append(common, ringchan.WithListener(opts.Listener), ringchan.WithQueueSize(cfg.Buffer.NotifyQueue))
	}

	p := &Pipeline{
		cfg:       cfg,
		logger:    logger,
		onSegment: opts.OnSegment,
	}
	p.bytes = ringchan.NewBytes(cfg.Buffer.ByteCapacity,
		append([]ringchan.Option{ringchan.WithName("bytes"), ringchan.WithMinSize(cfg.Buffer.MinSize)}, common...)...)
	p.samples = ringchan.NewSamples(cfg.Buffer.SampleCapacity,
		append([]ringchan.Option{ringchan.WithName("samples")}, common...)...)
	return p
}

func (p *Pipeline) Bytes() *ringchan.Channel[byte] {
	return p.bytes
}

func (p *Pipeline) Samples() *ringchan.Channel[float32] {
	return p.samples
}

// Mark ends the current segment after the bytes received so far.
func (p *Pipeline) Mark() {
	p.bytes.Mark()
}

func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	s := Stats{Running: p.running, Source: p.source}
	if p.recorder != nil {
		s.PendingSamples = p.recorder.Pending()
	}
	p.mu.Unlock()

	s.Bytes = p.bytes.Snapshot()
	s.Samples = p.samples.Snapshot()
	s.BytesIn = p.bytesIn.Load()
	s.Segments = p.segments.Load()
	return s
}

// Close stops the channel listeners. Run must have returned.
func (p *Pipeline) Close() {
	p.bytes.Close()
	p.samples.Close()
}

// Run streams src through the pipeline until the source ends, fails or ctx
// is cancelled. src must already be open; Run closes it if ctx is cancelled
// so a blocked ReadChunk returns. When the source ends the data already
// buffered is drained through the decoder and recorder before Run returns.
// Segment sequence numbers continue from firstSeq.
func (p *Pipeline) Run(ctx context.Context, src Source, firstSeq uint64) error {
	info := src.Info()
	rec := NewRecorder(info.Name, p.cfg.Audio, p.cfg.Recording, firstSeq, p.handleSegment, p.logger.Named("recorder"))

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrRunning
	}
	p.running = true
	p.source = info
	p.recorder = rec
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.recorder = nil
		p.mu.Unlock()
	}()

	// Leftovers from a failed run would start the new stream mid-sample.
	p.bytes.Clear()
	p.samples.Clear()

	g, gctx := errgroup.WithContext(ctx)
	decodeCtx, stopDecode := context.WithCancel(gctx)
	recordCtx, stopRecord := context.WithCancel(gctx)
	defer stopDecode()
	defer stopRecord()

	stopClose := context.AfterFunc(gctx, func() { _ = src.Close() })
	defer stopClose()

	produced := make(chan struct{})
	var sourceErr error

	g.Go(func() error {
		defer close(produced)
		sourceErr = p.produce(gctx, src)
		if gctx.Err() != nil {
			return nil
		}
		p.bytes.Mark()
		p.drain(gctx, p.bytes, stopDecode)
		return nil
	})
	g.Go(func() error {
		if err := p.decode(decodeCtx, recordCtx); err != nil {
			return err
		}
		if gctx.Err() == nil {
			p.drain(gctx, p.samples, stopRecord)
		}
		return nil
	})
	g.Go(func() error {
		return rec.Run(recordCtx, p.samples, p.cfg.Audio.DecodeSamples())
	})
	if secs := p.cfg.Recording.SegmentSeconds; secs > 0 {
		g.Go(func() error {
			p.autoMark(gctx, produced, time.Duration(secs)*time.Second)
			return nil
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return err
	}
	return sourceErr
}

func (p *Pipeline) handleSegment(seg *model.Segment) {
	p.segments.Add(1)
	if p.onSegment != nil {
		p.onSegment(seg)
	}
}

// produce copies source chunks into the byte channel. It returns nil when
// the source reports io.EOF or ctx is cancelled.
func (p *Pipeline) produce(ctx context.Context, src Source) error {
	w := ringchan.NewWriter(ctx, p.bytes)
	defer w.Close()

	buf := make([]byte, max(p.cfg.Audio.CaptureBytes(), 1))
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := src.ReadChunk(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("buffer %s: %w", src.Name(), werr)
			}
			p.bytesIn.Add(uint64(n))
		}
		if errors.Is(err, io.EOF) {
			p.logger.Info("source ended", zap.String("source", src.Name()))
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read %s: %w", src.Name(), err)
		}
	}
}

// decode turns raw bytes into samples. A segment end on the byte channel is
// re-emitted as a mark on the sample channel. A sample split by a mark is
// carried into the next segment so the stream stays aligned.
func (p *Pipeline) decode(readCtx, writeCtx context.Context) error {
	r := ringchan.NewReader(readCtx, p.bytes)
	defer r.Close()

	enc := p.cfg.Audio.Encoding
	width := enc.BytesPerSample()
	raw := make([]byte, max(p.cfg.Audio.DecodeBytes(), width))
	out := make([]float32, len(raw)/width)

	carry := 0
	dirty := false
	for {
		n, err := io.ReadFull(r, raw[carry:])
		total := carry + n
		whole := total - total%width
		if whole > 0 {
			k := enc.Decode(out, raw[:whole])
			if werr := p.writeSamples(writeCtx, out[:k]); werr != nil {
				if writeCtx.Err() != nil {
					return nil
				}
				return werr
			}
			dirty = true
		}
		carry = copy(raw, raw[whole:total])

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			if dirty {
				p.samples.Mark()
				dirty = false
			}
		default:
			// Stopped without a mark: the recorder flushes what it has as
			// a partial segment.
			if readCtx.Err() != nil {
				return nil
			}
			return fmt.Errorf("decode: %w", err)
		}
	}
}

func (p *Pipeline) writeSamples(ctx context.Context, s []float32) error {
	for len(s) > 0 {
		n, err := p.samples.Write(ctx, s, true)
		if err != nil {
			return err
		}
		s = s[n:]
	}
	return nil
}

// drain waits until a blocking read on ch would wait, then calls stop.
func (p *Pipeline) drain(ctx context.Context, ch interface{ Ready() bool }, stop context.CancelFunc) {
	defer stop()
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for ch.Ready() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Pipeline) autoMark(ctx context.Context, produced <-chan struct{}, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-produced:
			return
		case <-ticker.C:
			p.bytes.Mark()
		}
	}
}
