package acquisition

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pccr10001/daqring/internal/model"
	"github.com/pccr10001/daqring/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Device{}, &model.Segment{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestManagerRestartsSourceAndContinuesSequence(t *testing.T) {
	db := openTestDB(t)
	devices := repository.NewDeviceRepository(db)
	segments := repository.NewSegmentRepository(db)

	cfg := testConfig()
	cfg.Source.RetryInterval = 10 * time.Millisecond
	p := NewPipeline(cfg, PipelineOptions{OnSegment: func(seg *model.Segment) {
		assert.NoError(t, segments.Create(seg))
	}})
	defer p.Close()

	var opened atomic.Int32
	m := NewManager(cfg, p, devices, segments, nil)
	m.newSource = func(Config) (Source, error) {
		opened.Add(1)
		return NewReaderSource("bench", bytes.NewReader(constantPCM(20, 100))), nil
	}

	m.Start(context.Background())
	require.Eventually(t, func() bool {
		_, total, err := segments.List(repository.SegmentFilter{Device: "bench"})
		return err == nil && total >= 3
	}, 5*time.Second, 10*time.Millisecond)
	m.Stop()

	list, _, err := segments.List(repository.SegmentFilter{Device: "bench", Limit: 100})
	require.NoError(t, err)
	for i, seg := range list {
		assert.EqualValues(t, len(list)-i, seg.Sequence)
		assert.Equal(t, 20, seg.Samples)
	}
	assert.GreaterOrEqual(t, int(opened.Load()), 3)

	dev, err := devices.FindByName("bench")
	require.NoError(t, err)
	assert.Equal(t, model.DeviceOffline, dev.Status)
	assert.Equal(t, "reader", dev.Kind)
}

func TestManagerRetriesFailingSource(t *testing.T) {
	cfg := testConfig()
	cfg.Source.RetryInterval = 5 * time.Millisecond
	p := NewPipeline(cfg, PipelineOptions{})
	defer p.Close()

	var attempts atomic.Int32
	m := NewManager(cfg, p, nil, nil, nil)
	m.newSource = func(Config) (Source, error) {
		attempts.Add(1)
		return nil, errors.New("no device")
	}

	m.Start(context.Background())
	m.Start(context.Background())
	require.Eventually(t, func() bool { return attempts.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)
	m.Stop()
	m.Stop()
}
