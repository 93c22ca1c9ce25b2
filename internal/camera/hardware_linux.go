//go:build linux

package camera

import (
	"fmt"

	"github.com/smazurov/kioskcam/pkg/linuxav/v4l2"
)

var _ Device = (*v4l2.Device)(nil)

// OpenHardware opens a V4L2 device node.
func OpenHardware(path string) (Device, error) {
	if err := checkCharDevice(path); err != nil {
		return nil, err
	}
	dev, err := v4l2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	return dev, nil
}
