package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type captureSettings struct {
	Device string `toml:"device"`
	Width  int    `toml:"width"`
}

func loadCaptureSettings(path string) (captureSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return captureSettings{}, err
	}
	var cfg captureSettings
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func writeSettings(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

// startWatcher writes an initial file into a temp dir and starts a watcher on it.
func startWatcher(t *testing.T, debounce time.Duration, opts ...WatcherOption[captureSettings]) (*Watcher[captureSettings], string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kioskcam.toml")
	writeSettings(t, path, "device = \"/dev/video0\"\nwidth = 800\n")

	opts = append([]WatcherOption[captureSettings]{WithDebounce[captureSettings](debounce)}, opts...)
	w := NewConfigWatcher(path, loadCaptureSettings, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop() error: %v", err)
		}
	})
	// let the inotify watch settle
	time.Sleep(50 * time.Millisecond)
	return w, path
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		var zero T
		t.Fatal("timeout waiting for reload")
		return zero
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	received := make(chan captureSettings, 1)
	w, path := startWatcher(t, 50*time.Millisecond)
	w.OnReload(func(cfg captureSettings) { received <- cfg })

	writeSettings(t, path, "device = \"/dev/video2\"\nwidth = 1280\n")

	cfg := waitFor(t, received)
	if cfg.Device != "/dev/video2" || cfg.Width != 1280 {
		t.Errorf("got %+v, want device=/dev/video2 width=1280", cfg)
	}
}

func TestWatcherFollowsRenameReplace(t *testing.T) {
	received := make(chan captureSettings, 1)
	w, path := startWatcher(t, 50*time.Millisecond)
	w.OnReload(func(cfg captureSettings) { received <- cfg })

	tmp := path + ".swp"
	writeSettings(t, tmp, "device = \"/dev/video4\"\nwidth = 640\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	if cfg := waitFor(t, received); cfg.Device != "/dev/video4" {
		t.Errorf("Device = %q, want /dev/video4", cfg.Device)
	}

	// The watch must survive the replacement.
	writeSettings(t, path, "device = \"/dev/video6\"\n")
	if cfg := waitFor(t, received); cfg.Device != "/dev/video6" {
		t.Errorf("Device = %q after second write, want /dev/video6", cfg.Device)
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	var count atomic.Int32
	w, path := startWatcher(t, 30*time.Millisecond)
	w.OnReload(func(captureSettings) { count.Add(1) })

	writeSettings(t, filepath.Join(filepath.Dir(path), "other.toml"), "width = 1\n")
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected no reloads for sibling file, got %d", got)
	}
}

func TestWatcherHandlersAndUnsubscribe(t *testing.T) {
	received := make(chan int, 1)
	w, path := startWatcher(t, 30*time.Millisecond)

	var first, second atomic.Int32
	w.OnReload(func(cfg captureSettings) {
		first.Store(int32(cfg.Width))
		received <- cfg.Width
	})
	unsub := w.OnReload(func(cfg captureSettings) { second.Store(int32(cfg.Width)) })

	writeSettings(t, path, "width = 10\n")
	waitFor(t, received)

	unsub()
	writeSettings(t, path, "width = 20\n")
	waitFor(t, received)

	if got := first.Load(); got != 20 {
		t.Errorf("first handler last width = %d, want 20", got)
	}
	if got := second.Load(); got != 10 {
		t.Errorf("unsubscribed handler last width = %d, want 10", got)
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	errs := make(chan error, 1)
	configs := make(chan captureSettings, 1)
	w, path := startWatcher(t, 30*time.Millisecond, WithErrorHandler[captureSettings](func(err error) {
		errs <- err
	}))
	w.OnReload(func(cfg captureSettings) { configs <- cfg })

	writeSettings(t, path, "width = [[[")

	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected non-nil load error")
		}
	case <-configs:
		t.Fatal("reload handler called for invalid file")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestWatcherDebounce(t *testing.T) {
	var count, last atomic.Int32
	w, path := startWatcher(t, 200*time.Millisecond)
	w.OnReload(func(cfg captureSettings) {
		count.Add(1)
		last.Store(int32(cfg.Width))
	})

	for i := 1; i <= 5; i++ {
		writeSettings(t, path, fmt.Sprintf("width = %d\n", i))
		time.Sleep(40 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced reload, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("expected final width 5, got %d", got)
	}
}

func TestWatcherConcurrentSubscribe(t *testing.T) {
	w, path := startWatcher(t, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := w.OnReload(func(captureSettings) {})
			time.Sleep(time.Millisecond)
			unsub()
		}()
	}
	for i := range 5 {
		writeSettings(t, path, fmt.Sprintf("width = %d\n", i))
		time.Sleep(15 * time.Millisecond)
	}
	wg.Wait()
}

func TestWatcherStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kioskcam.toml")
	writeSettings(t, path, "width = 1\n")

	var count atomic.Int32
	w := NewConfigWatcher(path, loadCaptureSettings, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithDebounce[captureSettings](30*time.Millisecond))
	w.OnReload(func(captureSettings) { count.Add(1) })

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() before Start error: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}

	writeSettings(t, path, "width = 99\n")
	time.Sleep(150 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected no reloads after Stop, got %d", got)
	}
}

func TestWatcherContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kioskcam.toml")
	writeSettings(t, path, "width = 1\n")

	w := NewConfigWatcher(path, loadCaptureSettings, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case <-w.done:
	case <-time.After(time.Second):
		t.Fatal("watch loop did not exit on context cancel")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() after cancel error: %v", err)
	}
}
