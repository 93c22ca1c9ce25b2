package camera_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/kioskcam/internal/camera"
	"github.com/smazurov/kioskcam/internal/camera/camtest"
	"github.com/smazurov/kioskcam/internal/colorspace"
	"github.com/smazurov/kioskcam/internal/events"
	"github.com/smazurov/kioskcam/pkg/linuxav/v4l2"
)

const testPath = "/dev/video9"

func testOptions() camera.Options {
	return camera.Options{
		Device:           testPath,
		Width:            64,
		Height:           48,
		PollTimeout:      20 * time.Millisecond,
		MinFrameInterval: -1,
		ConvertWorkers:   2,
	}
}

type harness struct {
	cam    *camera.Camera
	dev    *camtest.Device
	opener *camtest.Opener
	bus    *events.Bus

	frames       atomic.Int32
	disconnects  atomic.Int32
	warnings     atomic.Int32
	disconnected chan events.DeviceDisconnectedEvent
}

func newHarness(t *testing.T, opts camera.Options, dev *camtest.Device) *harness {
	t.Helper()
	h := &harness{
		dev:          dev,
		opener:       camtest.NewOpener(),
		bus:          events.New(),
		disconnected: make(chan events.DeviceDisconnectedEvent, 8),
	}
	h.opener.Add(opts.Device, dev)
	h.bus.Subscribe(func(events.FrameAvailableEvent) { h.frames.Add(1) })
	h.bus.Subscribe(func(events.CaptureWarningEvent) { h.warnings.Add(1) })
	h.bus.Subscribe(func(e events.DeviceDisconnectedEvent) {
		h.disconnects.Add(1)
		h.disconnected <- e
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.cam = camera.New(opts, h.bus, logger, camera.WithOpener(h.opener.Open))
	t.Cleanup(func() {
		h.cam.Close()
		_ = h.bus.Close()
	})
	return h
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOpenSetupErrors(t *testing.T) {
	tests := []struct {
		name      string
		configure func(d *camtest.Device)
		wantErr   error
	}{
		{
			name: "not a capture device",
			configure: func(d *camtest.Device) {
				d.Caps.Capabilities = v4l2.CapStreaming
			},
			wantErr: camera.ErrUnsupportedDevice,
		},
		{
			name: "no streaming io",
			configure: func(d *camtest.Device) {
				d.Caps.Capabilities = v4l2.CapVideoCapture | v4l2.CapReadWrite
			},
			wantErr: camera.ErrUnsupportedDevice,
		},
		{
			name:      "format rejected",
			configure: func(d *camtest.Device) { d.FormatErr = unix.EINVAL },
			wantErr:   camera.ErrFormatNegotiation,
		},
		{
			name: "compressed format granted",
			configure: func(d *camtest.Device) {
				d.Grant = func(want v4l2.PixFormat) v4l2.PixFormat {
					want.PixelFormat = v4l2.PixFmtMJPEG
					return want
				}
			},
			wantErr: camera.ErrFormatNegotiation,
		},
		{
			name:      "one buffer",
			configure: func(d *camtest.Device) { d.Buffers = 1 },
			wantErr:   camera.ErrInsufficientBuffers,
		},
		{
			name:      "mapping fails midway",
			configure: func(d *camtest.Device) { d.MapFailAt = 2 },
			wantErr:   camera.ErrMappingFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := camtest.NewDevice()
			tt.configure(dev)
			h := newHarness(t, testOptions(), dev)

			err := h.cam.Open(testPath)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Open() error = %v, want %v", err, tt.wantErr)
			}
			if got := h.cam.State(); got != camera.StateClosed {
				t.Errorf("State() = %s, want closed", got)
			}
			if dev.Closes() != 1 {
				t.Errorf("device closed %d times, want 1", dev.Closes())
			}
			if dev.Mapped() != 0 {
				t.Errorf("%d driver buffers left allocated", dev.Mapped())
			}
		})
	}
}

func TestOpenMissingDevice(t *testing.T) {
	h := newHarness(t, testOptions(), camtest.NewDevice())

	err := h.cam.Open("/dev/video42")
	if !errors.Is(err, unix.ENOENT) || !errors.Is(err, camera.ErrOpen) {
		t.Fatalf("Open() error = %v, want ErrOpen wrapping ENOENT", err)
	}
	if h.cam.IsCapturing() {
		t.Error("camera capturing after failed open")
	}
}

func TestMappingFailureUnmapsEarlierSlots(t *testing.T) {
	dev := camtest.NewDevice()
	dev.MapFailAt = 3
	h := newHarness(t, testOptions(), dev)

	if err := h.cam.Open(testPath); !errors.Is(err, camera.ErrMappingFailed) {
		t.Fatalf("Open() error = %v, want ErrMappingFailed", err)
	}
	if got := dev.Unmapped(); got != 3 {
		t.Errorf("unmapped %d slots, want 3", got)
	}
}

func TestNegotiatedFormatIsReadBack(t *testing.T) {
	dev := camtest.NewDevice()
	dev.Grant = func(want v4l2.PixFormat) v4l2.PixFormat {
		return v4l2.PixFormat{
			Width:        32,
			Height:       24,
			PixelFormat:  v4l2.PixFmtYUYV,
			Field:        v4l2.FieldInterlaced,
			BytesPerLine: 80,
		}
	}
	dev.IntervalErr = unix.ENOTTY
	h := newHarness(t, testOptions(), dev)

	if err := h.cam.Open(testPath); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	st := h.cam.Status()
	if st.Width != 32 || st.Height != 24 {
		t.Errorf("negotiated %dx%d, want driver's 32x24", st.Width, st.Height)
	}
	if st.BytesPerLine != 80 {
		t.Errorf("BytesPerLine = %d, want 80", st.BytesPerLine)
	}
	if st.Field != "interlaced" {
		t.Errorf("Field = %q, want interlaced", st.Field)
	}
	if st.PixelFormat != "YUYV" {
		t.Errorf("PixelFormat = %q, want YUYV", st.PixelFormat)
	}
	if st.FPS != 0 {
		t.Errorf("FPS = %v after failed frame-rate hint, want 0", st.FPS)
	}
	if st.Buffers != 4 {
		t.Errorf("Buffers = %d, want 4", st.Buffers)
	}

	if err := h.cam.StartCapturing(); err != nil {
		t.Fatalf("StartCapturing() error: %v", err)
	}
	eventually(t, "a decoded frame", func() bool { return h.frames.Load() > 0 })

	frame := h.cam.CurrentFrame()
	if frame.Width != 32 || frame.Height != 24 {
		t.Errorf("frame is %dx%d, want 32x24", frame.Width, frame.Height)
	}
}

func TestEndToEnd(t *testing.T) {
	dev := camtest.NewDevice()
	h := newHarness(t, testOptions(), dev)

	if frame := h.cam.CurrentFrame(); !frame.Empty() {
		t.Fatal("expected empty frame before capture")
	}
	if err := h.cam.Open(testPath); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatalf("StartCapturing() error: %v", err)
	}
	if !h.cam.IsCapturing() {
		t.Fatal("IsCapturing() = false after start")
	}
	eventually(t, "three frames", func() bool { return h.frames.Load() >= 3 })

	frame := h.cam.CurrentFrame()
	if frame.Width != 64 || frame.Height != 48 {
		t.Fatalf("frame is %dx%d, want 64x48", frame.Width, frame.Height)
	}
	want := colorspace.Luma(0x80)
	if frame.Pix[0] != want || frame.Pix[1] != want || frame.Pix[2] != want {
		t.Errorf("grey input decoded to %v, want %d on every channel", frame.Pix[:3], want)
	}

	h.cam.StopCapturing()
	h.cam.Close()

	if h.cam.IsCapturing() {
		t.Error("IsCapturing() = true after close")
	}
	if got := h.cam.State(); got != camera.StateClosed {
		t.Errorf("State() = %s, want closed", got)
	}
	if last := h.cam.CurrentFrame(); last.Empty() {
		t.Error("frame store cleared by close")
	}
	if dev.Unmapped() != 4 || dev.Closes() != 1 {
		t.Errorf("unmapped %d, closed %d; want 4 and 1", dev.Unmapped(), dev.Closes())
	}
	if dev.Streaming() {
		t.Error("device still streaming after close")
	}
}

func TestStartCapturingIdempotent(t *testing.T) {
	dev := camtest.NewDevice()
	h := newHarness(t, testOptions(), dev)

	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	for i := range 3 {
		if err := h.cam.StartCapturing(); err != nil {
			t.Fatalf("StartCapturing() #%d error: %v", i+1, err)
		}
	}
	if got := dev.StreamOns(); got != 1 {
		t.Errorf("StreamOn called %d times, want 1", got)
	}
}

func TestStopWhenNotCapturing(t *testing.T) {
	h := newHarness(t, testOptions(), camtest.NewDevice())

	start := time.Now()
	h.cam.StopCapturing()
	h.cam.StopCapturing()
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("idle StopCapturing took %v", elapsed)
	}

	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	h.cam.StopCapturing()
	if got := h.cam.State(); got != camera.StateIdle {
		t.Errorf("State() = %s, want idle", got)
	}
}

func TestStopIsBoundedByPollTimeout(t *testing.T) {
	h := newHarness(t, testOptions(), camtest.NewDevice())
	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	h.cam.StopCapturing()
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("StopCapturing took %v", elapsed)
	}
	if got := h.cam.State(); got != camera.StateIdle {
		t.Errorf("State() = %s, want idle", got)
	}
}

func TestRestartRequeuesFromScratch(t *testing.T) {
	dev := camtest.NewDevice()
	h := newHarness(t, testOptions(), dev)
	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}

	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}
	eventually(t, "first frame", func() bool { return h.frames.Load() > 0 })
	h.cam.StopCapturing()

	before := h.frames.Load()
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatalf("second StartCapturing() error: %v", err)
	}
	eventually(t, "frames after restart", func() bool { return h.frames.Load() > before })
}

func TestConsecutiveWaitErrorsDisconnectOnce(t *testing.T) {
	dev := camtest.NewDevice()
	dev.FailWait(unix.EIO, unix.EIO, unix.EIO, unix.EIO, unix.EIO)
	h := newHarness(t, testOptions(), dev)

	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-h.disconnected:
		if ev.DevicePath != testPath {
			t.Errorf("DevicePath = %q, want %q", ev.DevicePath, testPath)
		}
	case <-time.After(time.Second):
		t.Fatal("no disconnect event")
	}
	time.Sleep(100 * time.Millisecond)

	if got := h.disconnects.Load(); got != 1 {
		t.Errorf("disconnect events = %d, want 1", got)
	}
	if got := h.cam.State(); got != camera.StateDisconnected {
		t.Errorf("State() = %s, want disconnected", got)
	}
	if h.cam.IsCapturing() {
		t.Error("IsCapturing() = true after disconnect")
	}
	if got := h.frames.Load(); got != 0 {
		t.Errorf("decoded %d frames before the disconnect, want 0", got)
	}
}

func TestWaitEAGAINCountsTowardDisconnect(t *testing.T) {
	dev := camtest.NewDevice()
	dev.FailWait(unix.EAGAIN, unix.EAGAIN, unix.EAGAIN, unix.EAGAIN)
	h := newHarness(t, testOptions(), dev)

	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-h.disconnected:
		if !strings.Contains(ev.Reason, "consecutive wait errors") {
			t.Errorf("disconnect reason = %q", ev.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("repeated EAGAIN from wait did not disconnect")
	}
}

func TestWaitErrorsBelowThresholdRecover(t *testing.T) {
	dev := camtest.NewDevice()
	dev.FailWait(unix.EIO, unix.EIO)
	h := newHarness(t, testOptions(), dev)

	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}
	eventually(t, "frames", func() bool { return h.frames.Load() > 0 })

	// The counter reset after the first frame, so two more are tolerated.
	dev.FailWait(unix.EIO, unix.EIO)
	before := h.frames.Load()
	eventually(t, "more frames", func() bool { return h.frames.Load() > before+2 })

	if got := h.disconnects.Load(); got != 0 {
		t.Errorf("disconnect events = %d, want 0", got)
	}
	eventually(t, "error counter reset", func() bool { return h.cam.Status().ConsecutiveErrors == 0 })
}

func TestBenignErrorsIgnored(t *testing.T) {
	dev := camtest.NewDevice()
	dev.FailWait(unix.EINTR, unix.EINTR, unix.EINTR, unix.EINTR)
	dev.FailDequeue(unix.EAGAIN, unix.EAGAIN, unix.EAGAIN, unix.EAGAIN)
	h := newHarness(t, testOptions(), dev)

	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}
	eventually(t, "frames", func() bool { return h.frames.Load() >= 2 })

	if got := h.disconnects.Load(); got != 0 {
		t.Errorf("disconnect events = %d, want 0", got)
	}
}

func TestDeviceGoneDisconnectsImmediately(t *testing.T) {
	tests := []struct {
		name   string
		script func(d *camtest.Device)
	}{
		{name: "dequeue ENODEV", script: func(d *camtest.Device) { d.FailDequeue(unix.ENODEV) }},
		{name: "wait ENXIO", script: func(d *camtest.Device) { d.FailWait(unix.ENXIO) }},
		{name: "unplugged", script: func(d *camtest.Device) { d.Unplug() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := camtest.NewDevice()
			h := newHarness(t, testOptions(), dev)
			if err := h.cam.Open(testPath); err != nil {
				t.Fatal(err)
			}
			if err := h.cam.StartCapturing(); err != nil {
				t.Fatal(err)
			}
			tt.script(dev)

			select {
			case <-h.disconnected:
			case <-time.After(time.Second):
				t.Fatal("no disconnect event")
			}
			time.Sleep(50 * time.Millisecond)
			if got := h.disconnects.Load(); got != 1 {
				t.Errorf("disconnect events = %d, want 1", got)
			}
		})
	}
}

func TestSustainedRequeueFailureIsDeviceLoss(t *testing.T) {
	dev := camtest.NewDevice()
	h := newHarness(t, testOptions(), dev)
	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}
	dev.FailQueue(unix.EIO, unix.EIO, unix.EIO)

	select {
	case ev := <-h.disconnected:
		if ev.Reason == "" {
			t.Error("disconnect reason is empty")
		}
	case <-time.After(time.Second):
		t.Fatal("no disconnect after repeated requeue failures")
	}
	if got := h.cam.State(); got != camera.StateDisconnected {
		t.Errorf("State() = %s, want disconnected", got)
	}
}

func TestIsolatedRequeueFailureTolerated(t *testing.T) {
	dev := camtest.NewDevice()
	h := newHarness(t, testOptions(), dev)
	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}
	dev.FailQueue(unix.EIO)
	before := h.frames.Load()
	eventually(t, "frames after requeue failure", func() bool { return h.frames.Load() > before+3 })

	if got := h.disconnects.Load(); got != 0 {
		t.Errorf("disconnect events = %d, want 0", got)
	}
}

func TestRateLimitSkipsConversionAndNotification(t *testing.T) {
	opts := testOptions()
	opts.MinFrameInterval = time.Hour
	dev := camtest.NewDevice()
	h := newHarness(t, opts, dev)

	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}
	eventually(t, "skipped frames", func() bool { return h.cam.Status().FramesSkipped >= 5 })

	st := h.cam.Status()
	if st.FramesDecoded != 1 {
		t.Errorf("FramesDecoded = %d, want 1", st.FramesDecoded)
	}
	if got := h.frames.Load(); got != 1 {
		t.Errorf("frame notifications = %d, want 1", got)
	}
	// Skipped buffers are still handed back.
	if dev.QueueCalls() < 4+5 {
		t.Errorf("QueueBuffer called %d times, want every dequeued buffer requeued", dev.QueueCalls())
	}
}

func TestDriverErrorFlagSkipsFrame(t *testing.T) {
	dev := camtest.NewDevice()
	dev.FlagNextError()
	h := newHarness(t, testOptions(), dev)

	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}
	eventually(t, "frames", func() bool { return h.frames.Load() >= 2 })
	h.cam.StopCapturing()

	st := h.cam.Status()
	if st.FramesSkipped < 1 {
		t.Errorf("FramesSkipped = %d, want the flagged buffer skipped", st.FramesSkipped)
	}
	if frame := h.cam.CurrentFrame(); frame.Sequence != st.Sequence {
		t.Errorf("frame sequence %d, status sequence %d", frame.Sequence, st.Sequence)
	}
}

func TestStartAfterDisconnectReopens(t *testing.T) {
	dev := camtest.NewDevice()
	h := newHarness(t, testOptions(), dev)
	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}
	dev.Unplug()
	<-h.disconnected

	if err := h.cam.StartCapturing(); !errors.Is(err, unix.ENODEV) {
		t.Fatalf("StartCapturing() on unplugged device error = %v, want ENODEV", err)
	}

	dev.Replug()
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatalf("StartCapturing() after replug error: %v", err)
	}
	if got := h.opener.Opens(); got < 2 {
		t.Errorf("opener used %d times, want a reopen", got)
	}
	before := h.frames.Load()
	eventually(t, "frames after reopen", func() bool { return h.frames.Load() > before })
}

func TestStartWithoutOpen(t *testing.T) {
	h := newHarness(t, testOptions(), camtest.NewDevice())

	if err := h.cam.StartCapturing(); !errors.Is(err, camera.ErrNotOpen) {
		t.Fatalf("StartCapturing() error = %v, want ErrNotOpen", err)
	}

	if err := h.cam.OpenDefault(); err != nil {
		t.Fatalf("OpenDefault() error: %v", err)
	}
	h.cam.Close()
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatalf("StartCapturing() after close should reopen, got %v", err)
	}
	if !h.cam.IsCapturing() {
		t.Error("IsCapturing() = false")
	}
}

func TestPlannedRestart(t *testing.T) {
	dev := camtest.NewDevice()
	h := newHarness(t, testOptions(), dev)
	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}

	if err := h.cam.Restart(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("Restart() error: %v", err)
	}
	if !h.cam.IsCapturing() {
		t.Error("not capturing after restart")
	}
	if got := dev.StreamOns(); got != 2 {
		t.Errorf("StreamOn called %d times, want 2", got)
	}

	dev.Unplug()
	if err := h.cam.Restart(context.Background(), time.Millisecond); err == nil {
		t.Fatal("Restart() on unplugged device succeeded")
	}
	eventually(t, "warning event", func() bool { return h.warnings.Load() == 1 })
}

func TestRestartCancelled(t *testing.T) {
	h := newHarness(t, testOptions(), camtest.NewDevice())
	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.cam.Restart(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Restart() error = %v, want context.Canceled", err)
	}
	if h.cam.IsCapturing() {
		t.Error("capture resumed after cancelled restart")
	}
	eventually(t, "cancellation warning", func() bool { return h.warnings.Load() == 1 })
}

func TestReconfigureWhileCapturing(t *testing.T) {
	dev := camtest.NewDevice()
	h := newHarness(t, testOptions(), dev)
	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}
	eventually(t, "frames", func() bool { return h.frames.Load() > 0 })

	opts := testOptions()
	opts.Width, opts.Height = 32, 16
	if err := h.cam.Reconfigure(opts); err != nil {
		t.Fatalf("Reconfigure() error: %v", err)
	}
	if !h.cam.IsCapturing() {
		t.Fatal("capture not resumed after reconfigure")
	}
	eventually(t, "resized frame", func() bool {
		f := h.cam.CurrentFrame()
		return f.Width == 32 && f.Height == 16
	})
	if got := h.cam.Options().Width; got != 32 {
		t.Errorf("Options().Width = %d, want 32", got)
	}
}

func TestConcurrentReaders(t *testing.T) {
	h := newHarness(t, testOptions(), camtest.NewDevice())
	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				f := h.cam.CurrentFrame()
				if !f.Empty() && len(f.Pix) != f.Width*f.Height*3 {
					t.Errorf("torn frame: %dx%d with %d bytes", f.Width, f.Height, len(f.Pix))
					return
				}
				_ = h.cam.Status()
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()
}

func TestStateNotifications(t *testing.T) {
	dev := camtest.NewDevice()
	h := newHarness(t, testOptions(), dev)

	var mu sync.Mutex
	var states []string
	h.bus.Subscribe(func(e events.CaptureStateChangedEvent) {
		mu.Lock()
		states = append(states, e.State)
		mu.Unlock()
	})

	if err := h.cam.Open(testPath); err != nil {
		t.Fatal(err)
	}
	if err := h.cam.StartCapturing(); err != nil {
		t.Fatal(err)
	}
	h.cam.StopCapturing()
	h.cam.Close()

	want := []string{"idle", "streaming", "idle", "closed"}
	eventually(t, "state events", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == len(want)
	})
	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states = %v, want %v", states, want)
			break
		}
	}
}
