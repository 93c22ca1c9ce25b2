//go:build linux

package hotplug

import (
	"bytes"
	"path"
)

// Event is a parsed kernel uevent.
type Event struct {
	Action    string            // "add", "remove", "change", etc.
	KObj      string            // Kernel object path: /devices/pci0000:00/...
	Subsystem string            // "video4linux", "usb", ...
	DevType   string            // Device type if available
	DevName   string            // Node name relative to /dev (e.g. "video0")
	Env       map[string]string // All KEY=VALUE pairs of the event
}

// DevNode returns the /dev path of the event's device node, or "" when the
// event does not concern a device node.
func (e Event) DevNode() string {
	if e.DevName == "" {
		return ""
	}
	if path.IsAbs(e.DevName) {
		return e.DevName
	}
	return "/dev/" + e.DevName
}

// Concerns reports whether the event is about the device node at devPath.
func (e Event) Concerns(devPath string) bool {
	node := e.DevNode()
	return node != "" && node == path.Clean(devPath)
}

// ParseUEvent parses a kernel uevent message of the form
// "ACTION@KOBJ\0KEY=VALUE\0KEY=VALUE\0...". Messages re-broadcast by udev
// start with a binary "libudev" header and are ignored.
func ParseUEvent(data []byte) *Event {
	if len(data) == 0 || bytes.HasPrefix(data, []byte("libudev")) {
		return nil
	}

	fields := bytes.Split(data, []byte{0})
	action, kobj, ok := bytes.Cut(fields[0], []byte("@"))
	if !ok || len(action) == 0 {
		return nil
	}

	event := &Event{
		Action: string(action),
		KObj:   string(kobj),
		Env:    make(map[string]string),
	}

	for _, field := range fields[1:] {
		key, value, ok := bytes.Cut(field, []byte("="))
		if !ok || len(key) == 0 {
			continue
		}
		k, v := string(key), string(value)
		event.Env[k] = v

		switch k {
		case "SUBSYSTEM":
			event.Subsystem = v
		case "DEVTYPE":
			event.DevType = v
		case "DEVNAME":
			event.DevName = v
		}
	}

	return event
}
