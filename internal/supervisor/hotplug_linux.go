//go:build linux

package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/smazurov/kioskcam/internal/events"
	"github.com/smazurov/kioskcam/pkg/linuxav/hotplug"
)

// watchHotplug republishes video4linux add/remove uevents on the bus.
func (s *Supervisor) watchHotplug(ctx context.Context) {
	monitor, err := hotplug.NewMonitor(hotplug.SubsystemVideo4Linux)
	if err != nil {
		s.logger.Warn("Hotplug monitor unavailable", "error", err)
		return
	}
	defer monitor.Close()

	uevents := make(chan hotplug.Event, 16)
	go func() {
		if err := monitor.Run(ctx, uevents); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("Hotplug monitor stopped", "error", err)
		}
	}()

	s.logger.Info("Hotplug monitor started")
	for ev := range uevents {
		if ev.Action != hotplug.ActionAdd && ev.Action != hotplug.ActionRemove {
			continue
		}
		node := ev.DevNode()
		if node == "" {
			continue
		}
		s.logger.Debug("Video device uevent", "action", ev.Action, "device", node)
		s.bus.Publish(events.DeviceHotplugEvent{
			DevicePath: node,
			Action:     ev.Action,
			Timestamp:  time.Now().Format(time.RFC3339),
		})
	}
}
