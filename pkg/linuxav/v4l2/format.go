//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Formats returns all pixel formats the capture queue supports.
func (d *Device) Formats() ([]FormatInfo, error) {
	var formats []FormatInfo

	for i := uint32(0); ; i++ {
		fmtdesc := v4l2Fmtdesc{index: i, typ: bufTypeVideoCapture}

		if err := d.ioctl(vidiocEnumFmt, unsafe.Pointer(&fmtdesc)); err != nil {
			if errors.Is(err, unix.EINVAL) {
				break
			}
			return nil, fmt.Errorf("failed to enumerate format %d: %w", i, err)
		}

		formats = append(formats, FormatInfo{
			PixelFormat: fmtdesc.pixelformat,
			FormatName:  cstr(fmtdesc.description[:]),
			Emulated:    fmtdesc.flags&fmtFlagEmulated != 0,
		})
	}

	return formats, nil
}

// FrameSizes returns the resolutions supported for a pixel format.
func (d *Device) FrameSizes(pixelFormat uint32) ([]Resolution, error) {
	var resolutions []Resolution

	for i := uint32(0); ; i++ {
		frmsize := v4l2Frmsizeenum{index: i, pixelFormat: pixelFormat}

		if err := d.ioctl(vidiocEnumFramesizes, unsafe.Pointer(&frmsize)); err != nil {
			if errors.Is(err, unix.EINVAL) {
				break
			}
			if errors.Is(err, unix.ENOTTY) {
				return []Resolution{}, nil
			}
			return nil, fmt.Errorf("failed to enumerate frame size %d: %w", i, err)
		}

		switch frmsize.typ {
		case frmsizeTypeDiscrete:
			resolutions = append(resolutions, Resolution{
				Width:  frmsize.discrete.width,
				Height: frmsize.discrete.height,
			})
		case frmsizeTypeContinuous, frmsizeTypeStepwise:
			// A stepwise range is reported as a single entry.
			stepwise := (*v4l2FrmsizeStepwise)(unsafe.Pointer(&frmsize.discrete))
			return append(resolutions, stepwiseResolutions(stepwise)...), nil
		}
	}

	return resolutions, nil
}

// FrameIntervals returns the frame intervals supported for a format and size.
func (d *Device) FrameIntervals(pixelFormat, width, height uint32) ([]Framerate, error) {
	var framerates []Framerate

	for i := uint32(0); ; i++ {
		frmival := v4l2Frmivalenum{
			index:       i,
			pixelFormat: pixelFormat,
			width:       width,
			height:      height,
		}

		if err := d.ioctl(vidiocEnumFrameintervals, unsafe.Pointer(&frmival)); err != nil {
			if errors.Is(err, unix.EINVAL) {
				break
			}
			if errors.Is(err, unix.ENOTTY) {
				return []Framerate{}, nil
			}
			return nil, fmt.Errorf("failed to enumerate frame interval %d: %w", i, err)
		}

		switch frmival.typ {
		case frmivalTypeDiscrete:
			framerates = append(framerates, Framerate{
				Numerator:   frmival.discrete.numerator,
				Denominator: frmival.discrete.denominator,
			})
		case frmivalTypeContinuous, frmivalTypeStepwise:
			return append(framerates, commonFramerates()...), nil
		}
	}

	return framerates, nil
}

// SetFormat asks the driver for a capture format and returns what it granted.
// Drivers adjust unsupported values instead of failing, so callers must use
// the returned format rather than the requested one.
func (d *Device) SetFormat(want PixFormat) (PixFormat, error) {
	f := v4l2Format{typ: bufTypeVideoCapture}
	f.pix = v4l2PixFormat{
		width:        want.Width,
		height:       want.Height,
		pixelformat:  want.PixelFormat,
		field:        want.Field,
		bytesperline: want.BytesPerLine,
	}

	if err := d.ioctl(vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, fmt.Errorf("VIDIOC_S_FMT: %w", err)
	}
	return pixFormatFromRaw(&f.pix), nil
}

// Format returns the currently configured capture format.
func (d *Device) Format() (PixFormat, error) {
	f := v4l2Format{typ: bufTypeVideoCapture}
	if err := d.ioctl(vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, fmt.Errorf("VIDIOC_G_FMT: %w", err)
	}
	return pixFormatFromRaw(&f.pix), nil
}

// SetFrameInterval requests a time per frame of num/den seconds and returns
// the interval the driver actually applied.
func (d *Device) SetFrameInterval(num, den uint32) (Framerate, error) {
	parm := v4l2Streamparm{typ: bufTypeVideoCapture}
	if err := d.ioctl(vidiocGParm, unsafe.Pointer(&parm)); err != nil {
		return Framerate{}, fmt.Errorf("VIDIOC_G_PARM: %w", err)
	}
	if parm.capture.capability&capTimePerFrame == 0 {
		return Framerate{}, ErrFrameIntervalUnsupported
	}

	parm.capture.timeperframe = v4l2Fract{numerator: num, denominator: den}
	if err := d.ioctl(vidiocSParm, unsafe.Pointer(&parm)); err != nil {
		return Framerate{}, fmt.Errorf("VIDIOC_S_PARM: %w", err)
	}

	return Framerate{
		Numerator:   parm.capture.timeperframe.numerator,
		Denominator: parm.capture.timeperframe.denominator,
	}, nil
}

func pixFormatFromRaw(p *v4l2PixFormat) PixFormat {
	return PixFormat{
		Width:        p.width,
		Height:       p.height,
		PixelFormat:  p.pixelformat,
		Field:        p.field,
		BytesPerLine: p.bytesperline,
		SizeImage:    p.sizeimage,
		Colorspace:   p.colorspace,
	}
}

// GetFormats opens devicePath and returns its supported pixel formats.
func GetFormats(devicePath string) ([]FormatInfo, error) {
	dev, err := Open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer dev.Close()
	return dev.Formats()
}

// GetResolutions opens devicePath and returns the resolutions for a pixel format.
func GetResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error) {
	dev, err := Open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer dev.Close()
	return dev.FrameSizes(pixelFormat)
}

// GetFramerates opens devicePath and returns the framerates for a format and resolution.
func GetFramerates(devicePath string, pixelFormat, width, height uint32) ([]Framerate, error) {
	dev, err := Open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer dev.Close()
	return dev.FrameIntervals(pixelFormat, width, height)
}

// stepwiseResolutions returns common resolutions within a stepwise range.
func stepwiseResolutions(sw *v4l2FrmsizeStepwise) []Resolution {
	common := [][2]uint32{
		{320, 240},
		{640, 480},
		{800, 600},
		{1024, 768},
		{1280, 720},
		{1280, 960},
		{1280, 1024},
		{1920, 1080},
		{1920, 1200},
		{2560, 1440},
		{3840, 2160},
	}

	var resolutions []Resolution
	for _, res := range common {
		w, h := res[0], res[1]
		if w >= sw.minWidth && w <= sw.maxWidth && h >= sw.minHeight && h <= sw.maxHeight {
			resolutions = append(resolutions, Resolution{Width: w, Height: h})
		}
	}
	return resolutions
}

func commonFramerates() []Framerate {
	return []Framerate{{1, 60}, {1, 30}, {1, 25}, {1, 15}, {1, 10}, {1, 5}}
}
