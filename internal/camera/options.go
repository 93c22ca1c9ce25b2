package camera

import (
	"time"

	"github.com/smazurov/kioskcam/pkg/linuxav/v4l2"
)

// DefaultDevice is opened when no path has been given.
const DefaultDevice = "/dev/video0"

// Options controls format negotiation and the capture loop. Zero fields take
// the values from DefaultOptions.
type Options struct {
	Device      string
	Width       int
	Height      int
	PixelFormat uint32
	// FPS is the frame-rate hint sent to the driver; negative sends none.
	// Failure to apply it is not fatal.
	FPS int

	BufferCount int
	MinBuffers  int

	PollTimeout time.Duration
	// MinFrameInterval is the minimum spacing between decoded frames.
	// Negative disables rate limiting.
	MinFrameInterval time.Duration

	DisconnectThreshold int
	RequeueFailureLimit int

	// ConvertWorkers is the number of goroutines per conversion, 0 for GOMAXPROCS.
	ConvertWorkers int
}

// DefaultOptions returns the defaults for an 800x600 YUYV kiosk camera.
func DefaultOptions() Options {
	return Options{
		Device:              DefaultDevice,
		Width:               800,
		Height:              600,
		PixelFormat:         v4l2.PixFmtYUYV,
		FPS:                 30,
		BufferCount:         4,
		MinBuffers:          2,
		PollTimeout:         time.Second,
		MinFrameInterval:    33 * time.Millisecond,
		DisconnectThreshold: 3,
		RequeueFailureLimit: 3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Device == "" {
		o.Device = d.Device
	}
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.PixelFormat == 0 {
		o.PixelFormat = d.PixelFormat
	}
	if o.FPS == 0 {
		o.FPS = d.FPS
	}
	if o.BufferCount <= 0 {
		o.BufferCount = d.BufferCount
	}
	if o.MinBuffers < 2 {
		o.MinBuffers = d.MinBuffers
	}
	if o.BufferCount < o.MinBuffers {
		o.BufferCount = o.MinBuffers
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = d.PollTimeout
	}
	if o.MinFrameInterval == 0 {
		o.MinFrameInterval = d.MinFrameInterval
	}
	if o.DisconnectThreshold <= 0 {
		o.DisconnectThreshold = d.DisconnectThreshold
	}
	if o.RequeueFailureLimit <= 0 {
		o.RequeueFailureLimit = d.RequeueFailureLimit
	}
	return o
}
