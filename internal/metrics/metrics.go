package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Camera counters
	FramesRead   atomic.Uint64
	CameraErrors atomic.Uint64

	// Capture loop counters
	FramesCaptured    atomic.Uint64
	TrackingSubmits   atomic.Uint64
	DetectionSubmits  atomic.Uint64
	ResponsesRecorded atomic.Uint64
	StaleDiscarded    atomic.Uint64

	// Error counters
	TransportErrors  atomic.Uint64
	ValidationErrors atomic.Uint64
	AnnotateErrors   atomic.Uint64

	// Latency tracking
	SubmitLatencyMs   atomic.Uint64 // Last tracking/detection round trip in ms
	AnnotateLatencyMs atomic.Uint64

	// Stream client tracking
	StreamClients atomic.Uint64

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name string
		help string
		load func() uint64
	}{
		{"assistant_frames_read_total", "Total frames read from the camera device", m.FramesRead.Load},
		{"assistant_camera_errors_total", "Total camera device errors", m.CameraErrors.Load},
		{"assistant_frames_captured_total", "Total frames captured by the periodic loops", m.FramesCaptured.Load},
		{"assistant_tracking_submits_total", "Total frames submitted for tracking feedback", m.TrackingSubmits.Load},
		{"assistant_detection_submits_total", "Total frames submitted for object detection", m.DetectionSubmits.Load},
		{"assistant_responses_recorded_total", "Total responses recorded in the log", m.ResponsesRecorded.Load},
		{"assistant_stale_responses_discarded_total", "Total responses discarded because their generation was stale", m.StaleDiscarded.Load},
		{"assistant_transport_errors_total", "Total remote service transport errors", m.TransportErrors.Load},
		{"assistant_validation_errors_total", "Total draft validation failures", m.ValidationErrors.Load},
		{"assistant_annotate_errors_total", "Total frame annotation failures", m.AnnotateErrors.Load},
		{"assistant_submit_latency_ms", "Last remote submission round trip in milliseconds", m.SubmitLatencyMs.Load},
		{"assistant_annotate_latency_ms", "Last frame annotation duration in milliseconds", m.AnnotateLatencyMs.Load},
		{"assistant_stream_clients", "Connected MJPEG stream clients", m.StreamClients.Load},
	}

	for _, g := range gauges {
		load := g.load
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(load()) },
		))
	}
}

// ObserveSubmit records the round-trip time of a remote submission.
func (m *Metrics) ObserveSubmit(start time.Time) {
	m.SubmitLatencyMs.Store(uint64(time.Since(start).Milliseconds()))
}

// ObserveAnnotate records the duration of one annotation pass.
func (m *Metrics) ObserveAnnotate(d time.Duration) {
	m.AnnotateLatencyMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
