//go:build linux

package hotplug

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseUEvent(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected *Event
	}{
		{name: "empty input", input: []byte{}, expected: nil},
		{name: "nil input", input: nil, expected: nil},
		{name: "no @ separator", input: []byte("invalid"), expected: nil},
		{name: "missing action", input: []byte("@/devices/foo"), expected: nil},
		{name: "only null bytes", input: []byte{0, 0, 0, 0}, expected: nil},
		{name: "libudev rebroadcast", input: []byte("libudev\x00\xfe\xed\xca\xfeadd@/devices/foo\x00"), expected: nil},
		{
			name:  "video add event",
			input: []byte("add@/devices/pci0000:00/usb1/1-1/1-1:1.0/video4linux/video0\x00ACTION=add\x00SUBSYSTEM=video4linux\x00DEVNAME=video0\x00SEQNUM=4242\x00"),
			expected: &Event{
				Action:    "add",
				KObj:      "/devices/pci0000:00/usb1/1-1/1-1:1.0/video4linux/video0",
				Subsystem: "video4linux",
				DevName:   "video0",
				Env: map[string]string{
					"ACTION":    "add",
					"SUBSYSTEM": "video4linux",
					"DEVNAME":   "video0",
					"SEQNUM":    "4242",
				},
			},
		},
		{
			name:  "usb remove event",
			input: []byte("remove@/devices/usb/1-1\x00SUBSYSTEM=usb\x00DEVTYPE=usb_device\x00PRODUCT=46d/825/12\x00"),
			expected: &Event{
				Action:    "remove",
				KObj:      "/devices/usb/1-1",
				Subsystem: "usb",
				DevType:   "usb_device",
				Env: map[string]string{
					"SUBSYSTEM": "usb",
					"DEVTYPE":   "usb_device",
					"PRODUCT":   "46d/825/12",
				},
			},
		},
		{
			name:  "value containing equals",
			input: []byte("change@/dev/foo\x00KEY=val=ue\x00EMPTY=\x00"),
			expected: &Event{
				Action: "change",
				KObj:   "/dev/foo",
				Env:    map[string]string{"KEY": "val=ue", "EMPTY": ""},
			},
		},
		{
			name:  "very long path",
			input: []byte("add@/devices/" + strings.Repeat("a", 500) + "\x00"),
			expected: &Event{
				Action: "add",
				KObj:   "/devices/" + strings.Repeat("a", 500),
				Env:    map[string]string{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseUEvent(tt.input)

			if tt.expected == nil {
				if result != nil {
					t.Errorf("expected nil, got %+v", result)
				}
				return
			}
			if result == nil {
				t.Fatalf("expected %+v, got nil", tt.expected)
			}

			if result.Action != tt.expected.Action {
				t.Errorf("Action: expected %q, got %q", tt.expected.Action, result.Action)
			}
			if result.KObj != tt.expected.KObj {
				t.Errorf("KObj: expected %q, got %q", tt.expected.KObj, result.KObj)
			}
			if result.Subsystem != tt.expected.Subsystem {
				t.Errorf("Subsystem: expected %q, got %q", tt.expected.Subsystem, result.Subsystem)
			}
			if result.DevType != tt.expected.DevType {
				t.Errorf("DevType: expected %q, got %q", tt.expected.DevType, result.DevType)
			}
			if result.DevName != tt.expected.DevName {
				t.Errorf("DevName: expected %q, got %q", tt.expected.DevName, result.DevName)
			}
			if len(result.Env) != len(tt.expected.Env) {
				t.Errorf("Env: expected %d entries, got %d", len(tt.expected.Env), len(result.Env))
			}
			for k, v := range tt.expected.Env {
				if result.Env[k] != v {
					t.Errorf("Env[%q]: expected %q, got %q", k, v, result.Env[k])
				}
			}
		})
	}
}

func TestEventDevNode(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		devNode  string
		concerns string
		want     bool
	}{
		{name: "relative name", event: Event{DevName: "video0"}, devNode: "/dev/video0", concerns: "/dev/video0", want: true},
		{name: "absolute name", event: Event{DevName: "/dev/video2"}, devNode: "/dev/video2", concerns: "/dev/video2", want: true},
		{name: "other node", event: Event{DevName: "video1"}, devNode: "/dev/video1", concerns: "/dev/video0", want: false},
		{name: "unclean path", event: Event{DevName: "video0"}, devNode: "/dev/video0", concerns: "/dev//video0", want: true},
		{name: "no node", event: Event{}, devNode: "", concerns: "/dev/video0", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.DevNode(); got != tt.devNode {
				t.Errorf("DevNode() = %q, want %q", got, tt.devNode)
			}
			if got := tt.event.Concerns(tt.concerns); got != tt.want {
				t.Errorf("Concerns(%q) = %v, want %v", tt.concerns, got, tt.want)
			}
		})
	}
}

func newTestMonitor(t *testing.T, subsystems ...string) *Monitor {
	t.Helper()
	m, err := NewMonitor(subsystems...)
	if err != nil {
		t.Skipf("netlink uevent socket unavailable: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMonitorFilters(t *testing.T) {
	m := newTestMonitor(t)

	if !m.accept(&Event{Subsystem: "block"}) {
		t.Error("monitor without filters should accept every subsystem")
	}

	m.AddSubsystemFilter(SubsystemVideo4Linux)
	if !m.accept(&Event{Subsystem: SubsystemVideo4Linux}) {
		t.Error("expected video4linux event to be accepted")
	}
	if m.accept(&Event{Subsystem: SubsystemUSB}) {
		t.Error("expected usb event to be filtered out")
	}
}

func TestMonitorCloseIdempotent(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Skipf("netlink uevent socket unavailable: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestMonitorRunCancellation(t *testing.T) {
	m := newTestMonitor(t, SubsystemVideo4Linux)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan Event, 1)
	if err := m.Run(ctx, events); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, open := <-events; open {
		t.Error("expected events channel to be closed after Run returns")
	}
}
