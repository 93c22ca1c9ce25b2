// Package camera implements the capture engine: a V4L2 device session with
// an mmap buffer pool, a background capture loop that decodes YUYV into the
// latest-frame store, and device-loss detection.
//
// Lifecycle calls (open, start, stop, close) may come from several
// goroutines and are serialized by the Camera's mutex, while any number of
// goroutines read frames. Notifications are published on an
// events.Bus from the capture goroutine.
package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/kioskcam/internal/colorspace"
	"github.com/smazurov/kioskcam/internal/events"
	"github.com/smazurov/kioskcam/internal/framestore"
	"github.com/smazurov/kioskcam/internal/metrics"
	"github.com/smazurov/kioskcam/pkg/linuxav/v4l2"
)

// State is the capture state of a Camera.
type State string

// Camera states.
const (
	StateClosed       State = "closed"
	StateIdle         State = "idle"
	StateStreaming    State = "streaming"
	StateDisconnected State = "disconnected"
)

// Option configures a Camera.
type Option func(*Camera)

// WithOpener replaces the hardware opener.
func WithOpener(open Opener) Option {
	return func(c *Camera) {
		c.open = open
	}
}

// Camera is the capture engine facade.
type Camera struct {
	bus    *events.Bus
	logger *slog.Logger
	open   Opener
	store  *framestore.Store
	seq    atomic.Uint64
	stats  captureStats

	// mu serializes owner operations. The worker never takes it.
	mu       sync.Mutex
	opts     Options
	conv     *colorspace.Converter
	sess     *session
	worker   *worker
	lastPath string

	stateMu sync.Mutex
	state   State
}

// New creates a closed camera. bus may be nil when nobody listens.
func New(opts Options, bus *events.Bus, logger *slog.Logger, options ...Option) *Camera {
	opts = opts.withDefaults()
	c := &Camera{
		bus:    bus,
		logger: logger,
		open:   OpenHardware,
		store:  framestore.New(),
		opts:   opts,
		conv:   colorspace.NewConverter(opts.ConvertWorkers),
		state:  StateClosed,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Open claims the device at path, negotiates the format and maps buffers.
// An already open device is closed first.
func (c *Camera) Open(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()
	return c.openLocked(path)
}

// OpenDefault opens the last used path, or the configured device.
func (c *Camera) OpenDefault() error {
	c.mu.Lock()
	path := c.lastPath
	if path == "" {
		path = c.opts.Device
	}
	c.mu.Unlock()
	return c.Open(path)
}

// Close stops capture if running and releases the device. It is safe to
// call more than once. The latest frame stays readable.
func (c *Camera) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()
}

// StartCapturing starts the capture worker. It is a no-op when already
// streaming. A closed or disconnected camera is reopened from the last path
// first.
func (c *Camera) StartCapturing() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.startLocked()
}

// StopCapturing stops the worker and waits for it to exit, which takes at
// most one poll timeout. It is a no-op when not capturing.
func (c *Camera) StopCapturing() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
}

// CurrentFrame returns a copy of the latest decoded frame, or an empty
// frame if none has been decoded yet.
func (c *Camera) CurrentFrame() *framestore.Frame {
	return c.store.Current()
}

// Frames exposes the frame store for readers that reuse their own buffer.
func (c *Camera) Frames() *framestore.Store {
	return c.store
}

// IsCapturing reports whether the worker is streaming.
func (c *Camera) IsCapturing() bool {
	return c.State() == StateStreaming
}

// State returns the current capture state.
func (c *Camera) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Options returns the active options.
func (c *Camera) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// Restart stops capture, waits pause, and starts again to clear driver
// state on long-running sessions. A failed start, or ctx ending during the
// pause, is reported as a CaptureWarningEvent and returned.
func (c *Camera) Restart(ctx context.Context, pause time.Duration) error {
	c.logger.Info("Planned capture restart", "pause", pause)
	c.StopCapturing()

	timer := time.NewTimer(pause)
	select {
	case <-ctx.Done():
		timer.Stop()
		c.logger.Warn("Capture restart cancelled, capture left stopped", "error", ctx.Err())
		c.publish(events.CaptureWarningEvent{
			DevicePath: c.devicePath(),
			Message:    "capture restart cancelled",
			Error:      ctx.Err().Error(),
			Timestamp:  time.Now().Format(time.RFC3339),
		})
		return ctx.Err()
	case <-timer.C:
	}

	err := c.StartCapturing()
	path := c.devicePath()
	metrics.ForDevice(path).Restarted(err == nil)
	if err != nil {
		c.logger.Warn("Capture restart failed", "error", err)
		c.publish(events.CaptureWarningEvent{
			DevicePath: path,
			Message:    "capture restart failed",
			Error:      err.Error(),
			Timestamp:  time.Now().Format(time.RFC3339),
		})
		return err
	}
	return nil
}

// Reconfigure applies new options. The negotiated format cannot change while
// streaming, so the device is closed and reopened, and capture resumes if it
// was running.
func (c *Camera) Reconfigure(opts Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasCapturing := c.worker != nil && c.State() == StateStreaming
	wasOpen := c.sess != nil || wasCapturing

	c.closeLocked()
	c.opts = opts.withDefaults()
	c.conv = colorspace.NewConverter(c.opts.ConvertWorkers)
	c.logger.Info("Camera reconfigured",
		"device", c.opts.Device,
		"width", c.opts.Width,
		"height", c.opts.Height,
		"fps", c.opts.FPS)

	if !wasOpen {
		c.lastPath = c.opts.Device
		return nil
	}
	if err := c.openLocked(c.opts.Device); err != nil {
		return err
	}
	if wasCapturing {
		return c.startLocked()
	}
	return nil
}

func (c *Camera) openLocked(path string) error {
	c.lastPath = path
	logger := c.logger.With("device", path)

	sess, err := openSession(c.open, path, c.opts, logger)
	if err != nil {
		logger.Error("Failed to open camera", "error", err)
		return err
	}
	c.sess = sess
	c.setState(path, StateIdle)

	logger.Info("Camera opened",
		"driver", sess.caps.Driver,
		"card", sess.caps.Card,
		"format", v4l2.FormatFourCC(sess.format.PixelFormat),
		"width", sess.format.Width,
		"height", sess.format.Height,
		"stride", sess.stride(),
		"field", v4l2.FieldName(sess.format.Field),
		"fps", sess.rate.FPS(),
		"buffers", sess.pool.size())
	return nil
}

func (c *Camera) startLocked() error {
	if c.worker != nil && c.State() == StateStreaming {
		return nil
	}
	if c.State() == StateDisconnected {
		c.closeLocked()
	}
	if c.sess == nil {
		if c.lastPath == "" {
			return ErrNotOpen
		}
		c.logger.Info("Reopening camera", "device", c.lastPath)
		if err := c.openLocked(c.lastPath); err != nil {
			return fmt.Errorf("reopen %s: %w", c.lastPath, err)
		}
	}

	sess := c.sess
	if err := sess.pool.queueAll(); err != nil {
		c.streamOff(sess)
		return fmt.Errorf("queue buffers: %w", err)
	}
	if err := sess.dev.StreamOn(); err != nil {
		c.streamOff(sess)
		return err
	}

	logger := c.logger.With("device", sess.path)
	rec := metrics.ForDevice(sess.path)
	w := &worker{
		sess:    sess,
		opts:    c.opts,
		conv:    c.conv,
		store:   c.store,
		seq:     &c.seq,
		stats:   &c.stats,
		publish: c.publish,
		metrics: rec,
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	w.onDisconnect = func(reason error) {
		rec.SetStreaming(false)
		c.setState(sess.path, StateDisconnected)
		c.publish(events.DeviceDisconnectedEvent{
			DevicePath: sess.path,
			Reason:     reason.Error(),
			Timestamp:  time.Now().Format(time.RFC3339),
		})
	}

	c.stats.consecutiveErrors.Store(0)
	c.worker = w
	c.setState(sess.path, StateStreaming)
	rec.SetStreaming(true)
	go w.run()

	logger.Info("Capture started")
	return nil
}

func (c *Camera) stopLocked() {
	w := c.worker
	if w == nil {
		return
	}
	close(w.stop)
	<-w.done
	c.worker = nil

	c.streamOff(w.sess)
	metrics.ForDevice(w.sess.path).SetStreaming(false)
	if c.transition(w.sess.path, StateIdle, StateStreaming) {
		c.logger.Info("Capture stopped", "device", w.sess.path)
	}
}

// streamOff returns every buffer to the dequeued state.
func (c *Camera) streamOff(sess *session) {
	if err := sess.dev.StreamOff(); err != nil {
		if c.State() == StateDisconnected || isDeviceGone(err) {
			c.logger.Debug("Stream off on lost device", "error", err)
		} else {
			c.logger.Warn("Failed to stop stream", "error", err)
		}
	}
}

func (c *Camera) closeLocked() {
	c.stopLocked()
	if c.sess == nil {
		return
	}
	path := c.sess.path
	c.sess.close()
	c.sess = nil
	c.setState(path, StateClosed)
	c.logger.Info("Camera closed", "device", path)
}

func (c *Camera) devicePath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPath
}

func (c *Camera) setState(path string, s State) {
	c.stateMu.Lock()
	prev := c.state
	c.state = s
	c.stateMu.Unlock()

	if prev != s {
		c.publishState(path, prev, s)
	}
}

// transition moves to s only from one of the given states.
func (c *Camera) transition(path string, s State, from ...State) bool {
	c.stateMu.Lock()
	prev := c.state
	ok := false
	for _, f := range from {
		if prev == f {
			ok = true
			break
		}
	}
	if ok {
		c.state = s
	}
	c.stateMu.Unlock()

	if ok && prev != s {
		c.publishState(path, prev, s)
	}
	return ok
}

func (c *Camera) publishState(path string, prev, next State) {
	c.publish(events.CaptureStateChangedEvent{
		DevicePath: path,
		State:      string(next),
		Previous:   string(prev),
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

func (c *Camera) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}
