package acquisition

import (
	"context"
	"sync"
	"time"

	"github.com/pccr10001/daqring/internal/model"
	"github.com/pccr10001/daqring/internal/repository"
	"go.uber.org/zap"
)

const defaultRetryInterval = 3 * time.Second

// Manager keeps the pipeline fed: it opens the configured source, runs the
// pipeline on it and, when the source fails or ends, retries after the
// configured interval.
type Manager struct {
	cfg      Config
	pipeline *Pipeline
	devices  *repository.DeviceRepository
	segments *repository.SegmentRepository
	logger   *zap.Logger

	newSource func(Config) (Source, error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager wires a Manager. The repositories may be nil, in which case
// device state and sequence numbers are not persisted.
func NewManager(cfg Config, pipeline *Pipeline, devices *repository.DeviceRepository, segments *repository.SegmentRepository, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:       cfg,
		pipeline:  pipeline,
		devices:   devices,
		segments:  segments,
		logger:    logger,
		newSource: NewSource,
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	retry := m.cfg.Source.RetryInterval
	if retry <= 0 {
		retry = defaultRetryInterval
	}
	m.logger.Info("acquisition manager started",
		zap.String("source", m.cfg.Source.Type), zap.Duration("retry", retry))

	go m.loop(ctx, retry)
}

// Stop cancels the running session and waits for it to wind down.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	if m.devices != nil {
		if err := m.devices.MarkAllOffline(); err != nil {
			m.logger.Warn("failed to mark devices offline", zap.Error(err))
		}
	}
}

func (m *Manager) loop(ctx context.Context, retry time.Duration) {
	defer close(m.done)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := m.session(ctx); err != nil {
			m.logger.Error("acquisition session failed", zap.Error(err), zap.Duration("retry_in", retry))
		}
		timer.Reset(retry)
	}
}

func (m *Manager) session(ctx context.Context) error {
	src, err := m.newSource(m.cfg)
	if err != nil {
		return err
	}
	if err := src.Open(); err != nil {
		return err
	}
	defer src.Close()

	info := src.Info()
	m.logger.Info("source opened", zap.String("name", info.Name), zap.String("kind", info.Kind))

	var firstSeq uint64
	if m.devices != nil {
		if err := m.devices.Upsert(&model.Device{
			Name:     info.Name,
			Kind:     info.Kind,
			PortName: info.Port,
			VID:      info.VID,
			PID:      info.PID,
			Serial:   info.Serial,
			Status:   model.DeviceOnline,
			LastSeen: time.Now(),
		}); err != nil {
			m.logger.Warn("failed to record device", zap.String("name", info.Name), zap.Error(err))
		}
		defer func() {
			if err := m.devices.SetStatus(info.Name, model.DeviceOffline); err != nil {
				m.logger.Warn("failed to mark device offline", zap.String("name", info.Name), zap.Error(err))
			}
		}()
	}
	if m.segments != nil {
		if seq, err := m.segments.LastSequence(info.Name); err == nil {
			firstSeq = seq
		}
	}

	return m.pipeline.Run(ctx, src, firstSeq)
}
