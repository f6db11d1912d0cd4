// Package metrics exports ring channel and segment metrics to Prometheus.
package metrics

import (
	"github.com/pccr10001/daqring/internal/model"
	"github.com/pccr10001/daqring/pkg/ringchan"
	"github.com/prometheus/client_golang/prometheus"
)

// BufferMetrics is a prometheus.Collector fed by ring channel events and
// finished segments.
type BufferMetrics struct {
	size        *prometheus.GaugeVec
	capacity    *prometheus.GaugeVec
	utilization *prometheus.GaugeVec
	elements    *prometheus.CounterVec
	transfers   *prometheus.CounterVec
	marks       *prometheus.CounterVec

	segments        *prometheus.CounterVec
	segmentDuration *prometheus.HistogramVec
	segmentPeak     *prometheus.GaugeVec
}

// NewBufferMetrics creates the metrics and registers them with registry.
func NewBufferMetrics(registry prometheus.Registerer) (*BufferMetrics, error) {
	m := &BufferMetrics{
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ringchan_size_elements",
			Help: "Elements buffered after the last transfer",
		}, []string{"channel"}),
		capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ringchan_capacity_elements",
			Help: "Buffer capacity in elements",
		}, []string{"channel"}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ringchan_utilization_ratio",
			Help: "Fraction of the buffer in use after the last transfer",
		}, []string{"channel"}),
		elements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringchan_elements_total",
			Help: "Elements moved through the channel",
		}, []string{"channel", "direction"}), // direction: written, read
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringchan_transfers_total",
			Help: "Successful read and write calls",
		}, []string{"channel", "direction"}),
		marks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringchan_marks_reached_total",
			Help: "Reads that stopped at a segment mark",
		}, []string{"channel"}),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acquisition_segments_total",
			Help: "Segments recorded",
		}, []string{"device", "partial"}),
		segmentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acquisition_segment_duration_seconds",
			Help:    "Length of recorded segments",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
		}, []string{"device"}),
		segmentPeak: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "acquisition_segment_peak_ratio",
			Help: "Peak absolute sample of the last segment",
		}, []string{"device"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Observe is a ringchan.Listener.
func (m *BufferMetrics) Observe(ev ringchan.Event) {
	m.size.WithLabelValues(ev.Channel).Set(float64(ev.Size))
	m.capacity.WithLabelValues(ev.Channel).Set(float64(ev.Capacity))
	if ev.Capacity > 0 {
		m.utilization.WithLabelValues(ev.Channel).Set(float64(ev.Size) / float64(ev.Capacity))
	}

	dir := ev.Kind.String()
	m.transfers.WithLabelValues(ev.Channel, dir).Inc()
	m.elements.WithLabelValues(ev.Channel, dir).Add(float64(ev.Count))
	if ev.Marked {
		m.marks.WithLabelValues(ev.Channel).Inc()
	}
}

// ObserveSegment records a finished segment.
func (m *BufferMetrics) ObserveSegment(seg *model.Segment) {
	partial := "false"
	if seg.Partial {
		partial = "true"
	}
	m.segments.WithLabelValues(seg.Device, partial).Inc()
	m.segmentDuration.WithLabelValues(seg.Device).Observe(seg.Duration)
	m.segmentPeak.WithLabelValues(seg.Device).Set(seg.Peak)
}

func (m *BufferMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.size.Describe(ch)
	m.capacity.Describe(ch)
	m.utilization.Describe(ch)
	m.elements.Describe(ch)
	m.transfers.Describe(ch)
	m.marks.Describe(ch)
	m.segments.Describe(ch)
	m.segmentDuration.Describe(ch)
	m.segmentPeak.Describe(ch)
}

func (m *BufferMetrics) Collect(ch chan<- prometheus.Metric) {
	m.size.Collect(ch)
	m.capacity.Collect(ch)
	m.utilization.Collect(ch)
	m.elements.Collect(ch)
	m.transfers.Collect(ch)
	m.marks.Collect(ch)
	m.segments.Collect(ch)
	m.segmentDuration.Collect(ch)
	m.segmentPeak.Collect(ch)
}
