//go:build !linux

package v4l2

// FindDevices reports no devices outside Linux.
func FindDevices() ([]DeviceInfo, error) {
	return []DeviceInfo{}, nil
}

func GetFormats(string) ([]FormatInfo, error) {
	return nil, ErrUnsupportedPlatform
}

func GetResolutions(string, uint32) ([]Resolution, error) {
	return nil, ErrUnsupportedPlatform
}

func GetFramerates(string, uint32, uint32, uint32) ([]Framerate, error) {
	return nil, ErrUnsupportedPlatform
}
