package camera

import (
	"fmt"
	"os"
	"time"

	"github.com/smazurov/kioskcam/pkg/linuxav/v4l2"
)

// Device is the subset of a V4L2 device node used by a capture session.
// *v4l2.Device implements it on Linux.
type Device interface {
	Capability() (v4l2.Capability, error)
	SetFormat(want v4l2.PixFormat) (v4l2.PixFormat, error)
	SetFrameInterval(num, den uint32) (v4l2.Framerate, error)
	RequestBuffers(count uint32) (uint32, error)
	MapBuffer(index uint32) ([]byte, error)
	UnmapBuffer(data []byte) error
	QueueBuffer(index uint32) error
	DequeueBuffer() (v4l2.Buffer, error)
	StreamOn() error
	StreamOff() error
	WaitReadable(timeout time.Duration) (bool, error)
	Close() error
}

// Opener acquires a device handle for a path.
type Opener func(path string) (Device, error)

// checkCharDevice verifies path names a character special file. A missing or
// unreadable path is an open error, anything else of the wrong type is not
// hardware.
func checkCharDevice(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpen, err)
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return fmt.Errorf("%w: %s", ErrNotAHardwareDevice, path)
	}
	return nil
}
