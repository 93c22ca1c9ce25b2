// Package metrics provides Prometheus metrics for the capture engine.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Skip reasons for frames that were dequeued but not decoded.
const (
	SkipRateLimited = "rate_limited"
	SkipDriverError = "driver_error"
	SkipShortBuffer = "short_buffer"
)

// I/O error kinds.
const (
	ErrorWait    = "wait"
	ErrorDequeue = "dequeue"
	ErrorRequeue = "requeue"
)

var (
	framesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kioskcam",
		Subsystem: "capture",
		Name:      "frames_decoded_total",
		Help:      "Frames converted and published to the frame store",
	}, []string{"device"})

	framesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kioskcam",
		Subsystem: "capture",
		Name:      "frames_skipped_total",
		Help:      "Dequeued frames requeued without conversion",
	}, []string{"device", "reason"})

	ioErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kioskcam",
		Subsystem: "capture",
		Name:      "io_errors_total",
		Help:      "Non-benign capture I/O errors",
	}, []string{"device", "kind"})

	disconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kioskcam",
		Subsystem: "capture",
		Name:      "disconnects_total",
		Help:      "Device loss detections",
	}, []string{"device"})

	streaming = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "kioskcam",
		Subsystem: "capture",
		Name:      "streaming",
		Help:      "1 while the capture worker is running",
	}, []string{"device"})

	conversionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kioskcam",
		Subsystem: "capture",
		Name:      "conversion_seconds",
		Help:      "YUYV to RGB conversion time per frame",
		Buckets:   []float64{.001, .002, .004, .008, .016, .033, .066, .133},
	}, []string{"device"})

	restarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kioskcam",
		Subsystem: "capture",
		Name:      "restarts_total",
		Help:      "Planned capture restarts",
	}, []string{"device", "result"})

	recorders   = make(map[string]*Capture)
	recordersMu sync.Mutex
)

// Capture records metrics for one device. The zero label set is resolved
// once so the per-frame path does no map lookups.
type Capture struct {
	device string

	decoded    prometheus.Counter
	conversion prometheus.Observer
	streaming  prometheus.Gauge
}

// ForDevice returns the recorder for a device path.
func ForDevice(device string) *Capture {
	recordersMu.Lock()
	defer recordersMu.Unlock()

	if c, ok := recorders[device]; ok {
		return c
	}
	c := &Capture{
		device:     device,
		decoded:    framesDecoded.WithLabelValues(device),
		conversion: conversionSeconds.WithLabelValues(device),
		streaming:  streaming.WithLabelValues(device),
	}
	recorders[device] = c
	return c
}

// FrameDecoded records one published frame and its conversion time.
func (c *Capture) FrameDecoded(conversion time.Duration) {
	c.decoded.Inc()
	c.conversion.Observe(conversion.Seconds())
}

// FrameSkipped records a dequeued frame that was not converted.
func (c *Capture) FrameSkipped(reason string) {
	framesSkipped.WithLabelValues(c.device, reason).Inc()
}

// IOError records a non-benign I/O error of the given kind.
func (c *Capture) IOError(kind string) {
	ioErrors.WithLabelValues(c.device, kind).Inc()
}

// Disconnected records device loss.
func (c *Capture) Disconnected() {
	disconnects.WithLabelValues(c.device).Inc()
}

// Restarted records a planned restart outcome.
func (c *Capture) Restarted(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	restarts.WithLabelValues(c.device, result).Inc()
}

// SetStreaming updates the streaming gauge.
func (c *Capture) SetStreaming(on bool) {
	if on {
		c.streaming.Set(1)
	} else {
		c.streaming.Set(0)
	}
}
