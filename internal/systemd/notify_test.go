package systemd

import (
	"context"
	"errors"
	"testing"
)

func TestNotifierOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	n := Notifier{}
	for _, state := range []string{Ready, Watchdog, Stopping} {
		if err := n.Notify(state); err != nil {
			t.Errorf("Notify(%q) error: %v", state, err)
		}
	}
	if got := n.WatchdogInterval(); got != 0 {
		t.Errorf("WatchdogInterval() = %v, want 0", got)
	}
}

func TestWatchdogInterval(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "4000000")
	t.Setenv("WATCHDOG_PID", "")

	if got := (Notifier{}).WatchdogInterval(); got.Seconds() != 4 {
		t.Errorf("WatchdogInterval() = %v, want 4s", got)
	}
}

func TestNilManager(t *testing.T) {
	var m *Manager
	if _, err := m.Status(context.Background()); !errors.Is(err, ErrNoManager) {
		t.Errorf("Status() error = %v, want ErrNoManager", err)
	}
	if err := m.Restart(context.Background()); !errors.Is(err, ErrNoManager) {
		t.Errorf("Restart() error = %v, want ErrNoManager", err)
	}
	if got := m.Unit(); got != DefaultUnit {
		t.Errorf("Unit() = %q, want %q", got, DefaultUnit)
	}
	m.Close()
}
