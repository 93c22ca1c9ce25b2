package v4l2

import "errors"

var (
	// ErrClosed is returned by Device methods after Close.
	ErrClosed = errors.New("v4l2: device closed")
	// ErrFrameIntervalUnsupported is returned when the driver cannot set a frame interval.
	ErrFrameIntervalUnsupported = errors.New("v4l2: driver does not support frame interval selection")
	// ErrUnsupportedPlatform is returned by enumeration helpers on non-Linux builds.
	ErrUnsupportedPlatform = errors.New("v4l2: video4linux is only available on linux")
)
