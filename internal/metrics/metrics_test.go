package metrics

import (
	"testing"

	"github.com/pccr10001/daqring/internal/model"
	"github.com/pccr10001/daqring/pkg/ringchan"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveEvents(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewBufferMetrics(registry)
	require.NoError(t, err)

	m.Observe(ringchan.Event{Channel: "bytes", Kind: ringchan.EventWritten, Count: 6, Size: 6, Capacity: 8})
	m.Observe(ringchan.Event{Channel: "bytes", Kind: ringchan.EventRead, Count: 4, Size: 2, Capacity: 8, Marked: true})

	assert.Equal(t, float64(6), testutil.ToFloat64(m.elements.WithLabelValues("bytes", "written")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.elements.WithLabelValues("bytes", "read")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.size.WithLabelValues("bytes")))
	assert.Equal(t, float64(8), testutil.ToFloat64(m.capacity.WithLabelValues("bytes")))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.utilization.WithLabelValues("bytes")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.marks.WithLabelValues("bytes")))
}

func TestObserveSegment(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewBufferMetrics(registry)
	require.NoError(t, err)

	m.ObserveSegment(&model.Segment{Device: "dev0", Duration: 1.5, Peak: 0.7})
	m.ObserveSegment(&model.Segment{Device: "dev0", Duration: 0.2, Partial: true})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.segments.WithLabelValues("dev0", "false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.segments.WithLabelValues("dev0", "true")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.segmentPeak.WithLabelValues("dev0")))
}

func TestRegisterTwiceFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewBufferMetrics(registry)
	require.NoError(t, err)
	_, err = NewBufferMetrics(registry)
	assert.Error(t, err)
}
