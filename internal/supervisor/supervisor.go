// Package supervisor owns the camera for the daemon: it opens and starts
// capture, recovers after device loss, follows hotplug events, performs
// planned restarts and reports health to systemd.
//
// The supervisor is not the camera's only caller: the HTTP handlers and the
// NATS restart control drive the same *camera.Camera directly. The camera's
// own mutex serializes those owners; the supervisor reacts to the resulting
// state through the event bus.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/smazurov/kioskcam/internal/camera"
	"github.com/smazurov/kioskcam/internal/events"
	"github.com/smazurov/kioskcam/internal/systemd"
)

// Camera is the part of *camera.Camera the supervisor drives.
type Camera interface {
	Open(path string) error
	Close()
	StartCapturing() error
	IsCapturing() bool
	State() camera.State
	Restart(ctx context.Context, pause time.Duration) error
	Reconfigure(opts camera.Options) error
	Options() camera.Options
}

// Notifier reports service health.
type Notifier interface {
	Notify(state string) error
	WatchdogInterval() time.Duration
}

// Options controls recovery and maintenance.
type Options struct {
	// RestartInterval schedules planned restarts; 0 disables them.
	RestartInterval time.Duration
	// RestartPause is the gap between stop and start in a planned restart.
	RestartPause time.Duration
	// ReopenDelay is the first retry delay after a failure or disconnect.
	ReopenDelay time.Duration
	// MaxBackoff caps the doubling retry delay.
	MaxBackoff time.Duration
	// Hotplug enables the kernel uevent monitor. It is read once by Run.
	Hotplug bool
}

func (o Options) withDefaults() Options {
	if o.RestartPause <= 0 {
		o.RestartPause = 2 * time.Second
	}
	if o.ReopenDelay <= 0 {
		o.ReopenDelay = time.Second
	}
	if o.MaxBackoff < o.ReopenDelay {
		o.MaxBackoff = max(30*time.Second, o.ReopenDelay)
	}
	return o
}

// Supervisor keeps the camera streaming.
type Supervisor struct {
	cam      Camera
	bus      *events.Bus
	opts     Options
	notifier Notifier
	logger   *slog.Logger

	reconfigure chan camera.Options
	options     chan Options
	pause       atomic.Int64

	// set by Run
	devNode string
}

// New creates a supervisor. A nil notifier uses sd_notify.
func New(cam Camera, bus *events.Bus, opts Options, notifier Notifier, logger *slog.Logger) *Supervisor {
	if notifier == nil {
		notifier = systemd.Notifier{}
	}
	s := &Supervisor{
		cam:         cam,
		bus:         bus,
		opts:        opts.withDefaults(),
		notifier:    notifier,
		logger:      logger,
		reconfigure: make(chan camera.Options, 1),
		options:     make(chan Options, 1),
	}
	s.pause.Store(int64(s.opts.RestartPause))
	return s
}

// SetOptions queues new recovery and maintenance settings, replacing any
// not yet applied. The restart pause takes effect immediately.
func (s *Supervisor) SetOptions(opts Options) {
	opts = opts.withDefaults()
	s.pause.Store(int64(opts.RestartPause))
	for {
		select {
		case s.options <- opts:
			return
		default:
		}
		select {
		case <-s.options:
		default:
		}
	}
}

// RestartPause returns the configured planned-restart pause.
func (s *Supervisor) RestartPause() time.Duration {
	return time.Duration(s.pause.Load())
}

// Reconfigure queues new camera options, replacing any not yet applied.
func (s *Supervisor) Reconfigure(opts camera.Options) {
	for {
		select {
		case s.reconfigure <- opts:
			return
		default:
		}
		select {
		case <-s.reconfigure:
		default:
		}
	}
}

// Run drives the camera until ctx is cancelled, then closes it.
func (s *Supervisor) Run(ctx context.Context) error {
	disconnected := make(chan events.DeviceDisconnectedEvent, 1)
	unsubDisconnect := s.bus.Subscribe(func(e events.DeviceDisconnectedEvent) {
		select {
		case disconnected <- e:
		default:
		}
	})
	defer unsubDisconnect()

	hotplug := make(chan events.DeviceHotplugEvent, 16)
	unsubHotplug := s.bus.Subscribe(func(e events.DeviceHotplugEvent) {
		select {
		case hotplug <- e:
		default:
		}
	})
	defer unsubHotplug()

	if s.opts.Hotplug {
		go s.watchHotplug(ctx)
	}

	var restartTicker *time.Ticker
	var restartC <-chan time.Time
	scheduleRestarts := func(interval time.Duration) {
		if restartTicker != nil {
			restartTicker.Stop()
			restartTicker, restartC = nil, nil
		}
		if interval > 0 {
			restartTicker = time.NewTicker(interval)
			restartC = restartTicker.C
		}
	}
	scheduleRestarts(s.opts.RestartInterval)
	defer scheduleRestarts(0)

	var watchdogC <-chan time.Time
	if wd := s.notifier.WatchdogInterval(); wd > 0 {
		t := time.NewTicker(wd / 2)
		defer t.Stop()
		watchdogC = t.C
		s.logger.Info("Systemd watchdog enabled", "interval", wd)
	}

	s.devNode = resolveNode(s.cam.Options().Device)
	backoff := s.opts.ReopenDelay
	retry := time.NewTimer(0)
	defer retry.Stop()
	ready := false

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Supervisor stopping")
			s.notify(systemd.Stopping)
			s.cam.Close()
			return nil

		case <-retry.C:
			if err := s.bringUp(); err != nil {
				s.logger.Warn("Camera unavailable", "error", err, "retry_in", backoff)
				retry.Reset(backoff)
				backoff = min(backoff*2, s.opts.MaxBackoff)
				continue
			}
			backoff = s.opts.ReopenDelay
			if !ready {
				s.notify(systemd.Ready)
				ready = true
			}

		case ev := <-disconnected:
			if s.cam.State() != camera.StateDisconnected {
				continue
			}
			s.logger.Warn("Camera disconnected, closing", "device", ev.DevicePath, "reason", ev.Reason)
			s.cam.Close()
			retry.Reset(s.opts.ReopenDelay)

		case ev := <-hotplug:
			if !s.concerns(ev.DevicePath) {
				continue
			}
			switch ev.Action {
			case "remove":
				s.logger.Info("Camera unplugged", "device", ev.DevicePath)
				s.cam.Close()
				retry.Reset(backoff)
			case "add":
				s.logger.Info("Camera plugged in", "device", ev.DevicePath)
				backoff = s.opts.ReopenDelay
				retry.Reset(0)
			}

		case opts := <-s.reconfigure:
			s.devNode = resolveNode(opts.Device)
			if err := s.cam.Reconfigure(opts); err != nil {
				s.logger.Error("Failed to apply camera configuration", "error", err)
				retry.Reset(s.opts.ReopenDelay)
				continue
			}
			if !s.cam.IsCapturing() {
				retry.Reset(0)
			}

		case opts := <-s.options:
			if opts.RestartInterval != s.opts.RestartInterval {
				s.logger.Info("Planned restart interval changed", "from", s.opts.RestartInterval, "to", opts.RestartInterval)
				scheduleRestarts(opts.RestartInterval)
			}
			opts.Hotplug = s.opts.Hotplug
			s.opts = opts
			backoff = min(backoff, s.opts.MaxBackoff)

		case <-restartC:
			if !s.cam.IsCapturing() {
				continue
			}
			if err := s.cam.Restart(ctx, s.opts.RestartPause); err != nil {
				if ctx.Err() != nil {
					continue
				}
				retry.Reset(s.opts.ReopenDelay)
			}

		case <-watchdogC:
			if s.cam.IsCapturing() {
				s.notify(systemd.Watchdog)
			}
		}
	}
}

// bringUp starts capture, opening the configured device when the camera
// has never been opened.
func (s *Supervisor) bringUp() error {
	if s.cam.IsCapturing() {
		return nil
	}
	err := s.cam.StartCapturing()
	if errors.Is(err, camera.ErrNotOpen) {
		if err := s.cam.Open(s.cam.Options().Device); err != nil {
			return err
		}
		err = s.cam.StartCapturing()
	}
	if err == nil {
		s.devNode = resolveNode(s.cam.Options().Device)
	}
	return err
}

// concerns matches a hotplug node against the configured device, which may
// be a by-id symlink.
func (s *Supervisor) concerns(node string) bool {
	node = filepath.Clean(node)
	return node == s.devNode || node == filepath.Clean(s.cam.Options().Device)
}

func (s *Supervisor) notify(state string) {
	if err := s.notifier.Notify(state); err != nil {
		s.logger.Debug("sd_notify failed", "state", state, "error", err)
	}
}

// resolveNode follows symlinks while the node exists.
func resolveNode(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}
