//go:build !linux

package supervisor

import "context"

func (s *Supervisor) watchHotplug(context.Context) {
	s.logger.Info("Hotplug monitoring is only available on Linux")
}
