//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unsafe"
)

// Device is an open V4L2 device node.
type Device struct {
	path string

	mu sync.RWMutex
	fd int
}

// Open opens a V4L2 device node for non-blocking read/write access.
func Open(path string) (*Device, error) {
	fd, err := open(path)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return &Device{path: path, fd: fd}, nil
}

// Path returns the device node path the device was opened with.
func (d *Device) Path() string {
	return d.path
}

// Close releases the file descriptor. It is safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fd < 0 {
		return nil
	}
	err := closeFd(d.fd)
	d.fd = -1
	return err
}

func (d *Device) handle() (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.fd < 0 {
		return -1, ErrClosed
	}
	return d.fd, nil
}

func (d *Device) ioctl(req uint, arg unsafe.Pointer) error {
	fd, err := d.handle()
	if err != nil {
		return err
	}
	return ioctl(fd, req, arg)
}

// Capability queries the driver identity and capability bits.
func (d *Device) Capability() (Capability, error) {
	var raw v4l2Capability
	if err := d.ioctl(vidiocQuerycap, unsafe.Pointer(&raw)); err != nil {
		return Capability{}, fmt.Errorf("VIDIOC_QUERYCAP: %w", err)
	}
	return Capability{
		Driver:       cstr(raw.driver[:]),
		Card:         cstr(raw.card[:]),
		BusInfo:      cstr(raw.busInfo[:]),
		Version:      raw.version,
		Capabilities: raw.capabilities,
		DeviceCaps:   raw.deviceCaps,
	}, nil
}

// FindDevices finds all V4L2 video capture devices on the system.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir("/sys/class/video4linux")
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	logger := slog.With("component", "v4l2")
	var devices []DeviceInfo

	for _, entry := range entries {
		devicePath := "/dev/" + entry.Name()

		dev, err := Open(devicePath)
		if err != nil {
			logger.Debug("failed to open video device", "path", devicePath, "error", err)
			continue
		}
		caps, err := dev.Capability()
		dev.Close()
		if err != nil {
			logger.Debug("failed to query device capabilities", "path", devicePath, "error", err)
			continue
		}

		// Metadata nodes of the same camera report no capture capability.
		if !caps.CanCapture() {
			continue
		}

		indexValue := readSysfsInt(filepath.Join("/sys/class/video4linux", entry.Name(), "index"))

		stableID := findStableID(entry.Name(), indexValue)
		if stableID == "" {
			if strings.HasPrefix(caps.BusInfo, "usb-") {
				stableID = fmt.Sprintf("%s-video-index%d", caps.BusInfo, indexValue)
			} else {
				stableID = fmt.Sprintf("platform-%s-video-index%d", caps.BusInfo, indexValue)
			}
		}

		devices = append(devices, DeviceInfo{
			DevicePath: devicePath,
			DeviceName: caps.Card,
			DeviceID:   stableID,
			Driver:     caps.Driver,
			Caps:       caps.Effective(),
		})
	}

	return devices, nil
}

// findStableID looks for a stable ID symlink in /dev/v4l/by-id/
func findStableID(deviceName string, indexValue int) string {
	byIDDir := "/dev/v4l/by-id"
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}

	expectedSuffix := fmt.Sprintf("-video-index%d", indexValue)

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(filepath.Join(byIDDir, entry.Name()))
		if err != nil {
			continue
		}
		if filepath.Base(target) == deviceName && strings.HasSuffix(entry.Name(), expectedSuffix) {
			return entry.Name()
		}
	}

	return ""
}

func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return val
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
