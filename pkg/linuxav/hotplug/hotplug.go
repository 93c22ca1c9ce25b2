//go:build linux

// Package hotplug watches kernel uevents over netlink so capture devices can
// be reopened when they reappear, without cgo or a udev dependency.
package hotplug

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// Action constants for device events.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
	ActionBind   = "bind"
	ActionUnbind = "unbind"
)

// Subsystem names.
const (
	SubsystemVideo4Linux = "video4linux"
	SubsystemUSB         = "usb"
)

// netlinkKobjectUEvent is the netlink protocol for kernel object events.
const netlinkKobjectUEvent = 15

// kernelGroup is the multicast group the kernel broadcasts uevents on.
const kernelGroup = 1

// pollInterval bounds how long Run blocks before re-checking its context.
const pollInterval = 1000 // ms

// Monitor listens for kernel device events via netlink.
type Monitor struct {
	fd int

	mu         sync.RWMutex
	subsystems map[string]struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewMonitor opens a uevent socket. Events are limited to the given
// subsystems; with none given, every event passes.
func NewMonitor(subsystems ...string) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, netlinkKobjectUEvent)
	if err != nil {
		return nil, err
	}

	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelGroup}); err != nil {
		unix.Close(fd)
		return nil, err
	}

	m := &Monitor{fd: fd, subsystems: make(map[string]struct{})}
	for _, s := range subsystems {
		m.subsystems[s] = struct{}{}
	}
	return m, nil
}

// AddSubsystemFilter restricts events to an additional subsystem.
// Safe for concurrent use with Run.
func (m *Monitor) AddSubsystemFilter(subsystem string) {
	m.mu.Lock()
	m.subsystems[subsystem] = struct{}{}
	m.mu.Unlock()
}

func (m *Monitor) accept(e *Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.subsystems) == 0 {
		return true
	}
	_, ok := m.subsystems[e.Subsystem]
	return ok
}

// Close releases the socket. Subsequent calls return the first result.
func (m *Monitor) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = unix.Close(m.fd)
	})
	return m.closeErr
}

// Run delivers matching events to the channel until ctx is cancelled or the
// socket fails. The channel is closed when Run returns.
func (m *Monitor) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)

	buf := make([]byte, 16*1024)
	fds := []unix.PollFd{{Fd: int32(m.fd), Events: unix.POLLIN}}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.Poll(fds, pollInterval)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		// Drain everything queued so a burst of events is not delayed a poll cycle.
		for {
			size, _, err := unix.Recvfrom(m.fd, buf, 0)
			if err != nil {
				if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
					break
				}
				// ENOBUFS means the kernel dropped events; keep listening.
				if errors.Is(err, unix.ENOBUFS) {
					break
				}
				return err
			}

			event := ParseUEvent(buf[:size])
			if event == nil || !m.accept(event) {
				continue
			}

			select {
			case events <- *event:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
