//go:build !linux

package camera

import (
	"fmt"
	"runtime"
)

// OpenHardware is unavailable off Linux.
func OpenHardware(path string) (Device, error) {
	if err := checkCharDevice(path); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: V4L2 is not available on %s", ErrOpen, runtime.GOOS)
}
