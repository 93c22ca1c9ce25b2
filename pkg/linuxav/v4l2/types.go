package v4l2

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Driver     string
	Caps       uint32
}

// Capability is the decoded result of VIDIOC_QUERYCAP.
type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
}

// Effective returns the capability bits of the opened device node, which
// differ from the physical device's when the driver exposes several nodes.
func (c Capability) Effective() uint32 {
	if c.Capabilities&CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// CanCapture reports whether the node can produce a video capture stream.
func (c Capability) CanCapture() bool {
	return c.Effective()&CapVideoCapture != 0
}

// CanStream reports whether the node supports streaming I/O (mmap buffers).
func (c Capability) CanStream() bool {
	return c.Effective()&CapStreaming != 0
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a frame interval as a fraction of a second.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// PixFormat is the single-planar image format exchanged with VIDIOC_S_FMT/G_FMT.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
}

// Buffer describes a driver buffer as returned by QUERYBUF or DQBUF.
type Buffer struct {
	Index     uint32
	BytesUsed uint32
	Flags     uint32
	Field     uint32
	Sequence  uint32
	Offset    uint32
	Length    uint32
}

// Errored reports whether the driver flagged the buffer contents as corrupt.
func (b Buffer) Errored() bool {
	return b.Flags&BufFlagError != 0
}

// Capability flags.
const (
	CapVideoCapture = 0x00000001
	CapReadWrite    = 0x01000000
	CapStreaming    = 0x04000000
	CapDeviceCaps   = 0x80000000
)

// Pixel formats.
const (
	PixFmtYUYV  = 0x56595559 // 'YUYV'
	PixFmtUYVY  = 0x59565955 // 'UYVY'
	PixFmtMJPEG = 0x47504A4D // 'MJPG'
	PixFmtH264  = 0x34363248 // 'H264'
	PixFmtHEVC  = 0x43564548 // 'HEVC'
	PixFmtNV12  = 0x3231564E // 'NV12'
	PixFmtRGB24 = 0x33424752 // 'RGB3'
)

// Field orders.
const (
	FieldAny        = 0
	FieldNone       = 1
	FieldTop        = 2
	FieldBottom     = 3
	FieldInterlaced = 4
)

// Buffer flags.
const (
	BufFlagMapped = 0x00000001
	BufFlagQueued = 0x00000002
	BufFlagDone   = 0x00000004
	BufFlagError  = 0x00000040
)

// Format flags.
const (
	fmtFlagEmulated = 0x0002
)

// Frame size types.
const (
	frmsizeTypeDiscrete   = 1
	frmsizeTypeContinuous = 2
	frmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	frmivalTypeDiscrete   = 1
	frmivalTypeContinuous = 2
	frmivalTypeStepwise   = 3
)

const (
	bufTypeVideoCapture = 1
	memoryMMap          = 1
	capTimePerFrame     = 0x1000
)

// FieldName returns a short name for a field order.
func FieldName(field uint32) string {
	switch field {
	case FieldAny:
		return "any"
	case FieldNone:
		return "progressive"
	case FieldTop:
		return "top"
	case FieldBottom:
		return "bottom"
	case FieldInterlaced:
		return "interlaced"
	default:
		return "other"
	}
}
