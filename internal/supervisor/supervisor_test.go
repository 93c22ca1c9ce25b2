package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/kioskcam/internal/camera"
	"github.com/smazurov/kioskcam/internal/camera/camtest"
	"github.com/smazurov/kioskcam/internal/events"
	"github.com/smazurov/kioskcam/internal/systemd"
)

const testPath = "/dev/video9"

type recordingNotifier struct {
	mu       sync.Mutex
	states   []string
	watchdog time.Duration
}

func (n *recordingNotifier) Notify(state string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
	return nil
}

func (n *recordingNotifier) WatchdogInterval() time.Duration {
	return n.watchdog
}

func (n *recordingNotifier) count(state string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.states {
		if s == state {
			c++
		}
	}
	return c
}

type fixture struct {
	cam      *camera.Camera
	dev      *camtest.Device
	opener   *camtest.Opener
	bus      *events.Bus
	notifier *recordingNotifier
	sup      *Supervisor
	cancel   context.CancelFunc
	done     chan error
	stopOnce sync.Once
}

func cameraOptions() camera.Options {
	return camera.Options{
		Device:           testPath,
		Width:            32,
		Height:           16,
		PollTimeout:      10 * time.Millisecond,
		MinFrameInterval: -1,
		ConvertWorkers:   1,
	}
}

func start(t *testing.T, opts Options, withDevice bool) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		dev:      camtest.NewDevice(),
		opener:   camtest.NewOpener(),
		bus:      events.New(),
		notifier: &recordingNotifier{},
		done:     make(chan error, 1),
	}
	if withDevice {
		f.opener.Add(testPath, f.dev)
	}
	f.cam = camera.New(cameraOptions(), f.bus, logger, camera.WithOpener(f.opener.Open))
	return f.run(t, opts, logger)
}

func (f *fixture) run(t *testing.T, opts Options, logger *slog.Logger) *fixture {
	t.Helper()
	if opts.ReopenDelay == 0 {
		opts.ReopenDelay = 10 * time.Millisecond
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = 40 * time.Millisecond
	}
	f.sup = New(f.cam, f.bus, opts, f.notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.done <- f.sup.Run(ctx) }()

	t.Cleanup(func() {
		f.stop(t)
		_ = f.bus.Close()
	})
	return f
}

func (f *fixture) stop(t *testing.T) {
	t.Helper()
	f.stopOnce.Do(func() {
		f.cancel()
		select {
		case err := <-f.done:
			if err != nil {
				t.Errorf("Run() error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunStartsCaptureAndNotifiesReady(t *testing.T) {
	f := start(t, Options{}, true)

	eventually(t, "capture", f.cam.IsCapturing)
	eventually(t, "READY", func() bool { return f.notifier.count(systemd.Ready) == 1 })

	f.stop(t)
	if f.cam.State() != camera.StateClosed {
		t.Errorf("State() = %s after shutdown, want closed", f.cam.State())
	}
	if got := f.notifier.count(systemd.Stopping); got != 1 {
		t.Errorf("STOPPING sent %d times, want 1", got)
	}
}

func TestRetriesUntilDeviceAppears(t *testing.T) {
	f := start(t, Options{}, false)

	time.Sleep(60 * time.Millisecond)
	if f.cam.IsCapturing() {
		t.Fatal("capturing without a device")
	}
	if got := f.notifier.count(systemd.Ready); got != 0 {
		t.Errorf("READY sent before capture started")
	}

	f.opener.Add(testPath, f.dev)
	eventually(t, "capture after device appears", f.cam.IsCapturing)
}

func TestRecoversAfterDisconnect(t *testing.T) {
	f := start(t, Options{}, true)
	eventually(t, "capture", f.cam.IsCapturing)

	f.dev.Unplug()
	eventually(t, "camera leaves streaming", func() bool { return !f.cam.IsCapturing() })

	f.dev.Replug()
	eventually(t, "capture after replug", f.cam.IsCapturing)
	if got := f.opener.Opens(); got < 2 {
		t.Errorf("device opened %d times, want a reopen", got)
	}
	if got := f.notifier.count(systemd.Ready); got != 1 {
		t.Errorf("READY sent %d times, want 1", got)
	}
}

func TestHotplugRemoveAndAdd(t *testing.T) {
	f := start(t, Options{}, true)
	eventually(t, "capture", f.cam.IsCapturing)

	f.opener.Remove(testPath)
	f.bus.Publish(events.DeviceHotplugEvent{DevicePath: testPath, Action: "remove"})
	eventually(t, "camera closed on remove", func() bool { return f.cam.State() == camera.StateClosed })

	// Events for other nodes are ignored.
	f.opener.Add(testPath, f.dev)
	f.bus.Publish(events.DeviceHotplugEvent{DevicePath: "/dev/video3", Action: "add"})

	f.bus.Publish(events.DeviceHotplugEvent{DevicePath: testPath, Action: "add"})
	eventually(t, "capture after add", f.cam.IsCapturing)
}

func TestReconfigure(t *testing.T) {
	f := start(t, Options{}, true)
	eventually(t, "capture", f.cam.IsCapturing)

	opts := cameraOptions()
	opts.Width, opts.Height = 16, 8
	f.sup.Reconfigure(opts)

	eventually(t, "new geometry", func() bool {
		frame := f.cam.CurrentFrame()
		return frame.Width == 16 && frame.Height == 8
	})
	if !f.cam.IsCapturing() {
		t.Error("not capturing after reconfigure")
	}
}

func TestPlannedRestarts(t *testing.T) {
	f := start(t, Options{RestartInterval: 40 * time.Millisecond, RestartPause: time.Millisecond}, true)

	eventually(t, "two planned restarts", func() bool { return f.dev.StreamOns() >= 3 })
	eventually(t, "capture", f.cam.IsCapturing)
}

func TestSetOptionsReschedulesRestarts(t *testing.T) {
	f := start(t, Options{RestartPause: time.Millisecond}, true)
	eventually(t, "capture", f.cam.IsCapturing)

	time.Sleep(60 * time.Millisecond)
	if got := f.dev.StreamOns(); got != 1 {
		t.Fatalf("StreamOn called %d times with restarts disabled, want 1", got)
	}

	f.sup.SetOptions(Options{RestartInterval: 20 * time.Millisecond, RestartPause: time.Millisecond, ReopenDelay: 10 * time.Millisecond})
	eventually(t, "planned restarts after reload", func() bool { return f.dev.StreamOns() >= 3 })

	f.sup.SetOptions(Options{RestartPause: time.Millisecond, ReopenDelay: 10 * time.Millisecond})
	// Let any restart already in flight finish before sampling.
	time.Sleep(30 * time.Millisecond)
	eventually(t, "capture", f.cam.IsCapturing)
	settled := f.dev.StreamOns()
	time.Sleep(80 * time.Millisecond)
	if got := f.dev.StreamOns(); got != settled {
		t.Errorf("StreamOn called %d times after restarts were disabled, want %d", got, settled)
	}
}

func TestSetOptionsUpdatesRestartPause(t *testing.T) {
	s := New(nil, events.New(), Options{RestartPause: time.Second}, &recordingNotifier{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if got := s.RestartPause(); got != time.Second {
		t.Fatalf("RestartPause() = %v, want 1s", got)
	}

	s.SetOptions(Options{RestartPause: 3 * time.Second})
	s.SetOptions(Options{RestartPause: 5 * time.Second})
	if got := s.RestartPause(); got != 5*time.Second {
		t.Errorf("RestartPause() = %v, want 5s", got)
	}
	if got := <-s.options; got.RestartPause != 5*time.Second {
		t.Errorf("queued pause %v, want 5s", got.RestartPause)
	}
	select {
	case extra := <-s.options:
		t.Errorf("unexpected extra options %+v", extra)
	default:
	}
}

func TestWatchdogWhileCapturing(t *testing.T) {
	f := &fixture{
		dev:      camtest.NewDevice(),
		opener:   camtest.NewOpener(),
		bus:      events.New(),
		notifier: &recordingNotifier{watchdog: 20 * time.Millisecond},
		done:     make(chan error, 1),
	}
	f.opener.Add(testPath, f.dev)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.cam = camera.New(cameraOptions(), f.bus, logger, camera.WithOpener(f.opener.Open))
	f.run(t, Options{}, logger)

	eventually(t, "watchdog pings", func() bool { return f.notifier.count(systemd.Watchdog) >= 2 })
}

func TestReconfigureKeepsLatest(t *testing.T) {
	s := New(nil, events.New(), Options{}, &recordingNotifier{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, w := range []int{100, 200, 300} {
		s.Reconfigure(camera.Options{Width: w})
	}
	got := <-s.reconfigure
	if got.Width != 300 {
		t.Errorf("queued width %d, want 300", got.Width)
	}
	select {
	case extra := <-s.reconfigure:
		t.Errorf("unexpected extra reconfigure %+v", extra)
	default:
	}
}

func TestOptionsDefaults(t *testing.T) {
	got := Options{}.withDefaults()
	if got.ReopenDelay != time.Second || got.MaxBackoff != 30*time.Second || got.RestartPause != 2*time.Second {
		t.Errorf("defaults = %+v", got)
	}
	if got.RestartInterval != 0 {
		t.Errorf("RestartInterval = %v, want disabled", got.RestartInterval)
	}

	long := Options{ReopenDelay: time.Minute}.withDefaults()
	if long.MaxBackoff != time.Minute {
		t.Errorf("MaxBackoff = %v, want raised to ReopenDelay", long.MaxBackoff)
	}
}

func TestConcerns(t *testing.T) {
	s := &Supervisor{cam: camera.New(cameraOptions(), nil, slog.New(slog.NewTextHandler(io.Discard, nil))), devNode: testPath}

	tests := []struct {
		node string
		want bool
	}{
		{testPath, true},
		{"/dev//video9", true},
		{"/dev/video1", false},
	}
	for _, tt := range tests {
		if got := s.concerns(tt.node); got != tt.want {
			t.Errorf("concerns(%q) = %v, want %v", tt.node, got, tt.want)
		}
	}
}
