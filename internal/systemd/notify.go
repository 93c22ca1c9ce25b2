package systemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notification states.
const (
	Ready    = daemon.SdNotifyReady
	Stopping = daemon.SdNotifyStopping
	Watchdog = daemon.SdNotifyWatchdog
)

// Notifier sends sd_notify messages. Outside systemd every call is a no-op.
type Notifier struct{}

// Notify sends state to the service manager.
func (Notifier) Notify(state string) error {
	_, err := daemon.SdNotify(false, state)
	return err
}

// WatchdogInterval returns the configured watchdog timeout, 0 if disabled.
func (Notifier) WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return d
}
