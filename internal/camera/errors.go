package camera

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/smazurov/kioskcam/pkg/linuxav/v4l2"
)

// Setup errors. Each is wrapped together with the underlying cause, so both
// the category and the errno match with errors.Is.
var (
	ErrNotAHardwareDevice  = errors.New("not a character device")
	ErrOpen                = errors.New("cannot open device")
	ErrUnsupportedDevice   = errors.New("device cannot stream video capture via mmap")
	ErrFormatNegotiation   = errors.New("format negotiation failed")
	ErrInsufficientBuffers = errors.New("driver granted too few buffers")
	ErrMappingFailed       = errors.New("buffer mapping failed")
)

var (
	// ErrNotOpen is returned when an operation needs an open device and no
	// device path is known to reopen.
	ErrNotOpen = errors.New("camera not open")
	// ErrDisconnected is the reason recorded when the capture worker gives
	// up on the device.
	ErrDisconnected = errors.New("device disconnected")
)

// isDeviceGone reports errors meaning the device node no longer exists.
func isDeviceGone(err error) bool {
	return errors.Is(err, unix.ENODEV) ||
		errors.Is(err, unix.ENXIO) ||
		errors.Is(err, unix.ESHUTDOWN) ||
		errors.Is(err, v4l2.ErrClosed)
}

// isBenign reports transient dequeue conditions retried on the next
// iteration.
func isBenign(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR)
}

// isInterrupted reports a wait cut short by a signal. Any other wait
// failure, EAGAIN included, counts toward the disconnect threshold.
func isInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}
