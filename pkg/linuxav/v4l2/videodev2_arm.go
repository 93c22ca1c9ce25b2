//go:build linux && arm

package v4l2

import "unsafe"

// Compile-time struct size assertions for 32-bit ARM.
var (
	_ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(v4l2Fmtdesc{})]byte{}
	_ [24]byte  = [unsafe.Sizeof(v4l2FrmsizeStepwise{})]byte{}
	_ [44]byte  = [unsafe.Sizeof(v4l2Frmsizeenum{})]byte{}
	_ [52]byte  = [unsafe.Sizeof(v4l2Frmivalenum{})]byte{}
	_ [48]byte  = [unsafe.Sizeof(v4l2PixFormat{})]byte{}
	_ [204]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
	_ [20]byte  = [unsafe.Sizeof(v4l2Requestbuffers{})]byte{}
	_ [204]byte = [unsafe.Sizeof(v4l2Streamparm{})]byte{}
	_ [68]byte  = [unsafe.Sizeof(v4l2Buffer{})]byte{}
)

// IOCTL constants for 32-bit ARM. v4l2_format and v4l2_buffer are smaller
// than on 64-bit, so the encoded sizes differ for the format and buffer calls.
const (
	vidiocQuerycap           = 0x80685600
	vidiocEnumFmt            = 0xc0405602
	vidiocGFmt               = 0xc0cc5604
	vidiocSFmt               = 0xc0cc5605
	vidiocReqbufs            = 0xc0145608
	vidiocQuerybuf           = 0xc0445609
	vidiocQbuf               = 0xc044560f
	vidiocDqbuf              = 0xc0445611
	vidiocStreamon           = 0x40045612
	vidiocStreamoff          = 0x40045613
	vidiocGParm              = 0xc0cc5615
	vidiocSParm              = 0xc0cc5616
	vidiocEnumFramesizes     = 0xc02c564a
	vidiocEnumFrameintervals = 0xc034564b
)

// v4l2Format has size 204 bytes on 32-bit.
type v4l2Format struct {
	typ uint32
	pix v4l2PixFormat
	_   [152]byte
}

// v4l2Buffer has size 68 bytes on 32-bit (8 byte timeval, 4 byte union m).
type v4l2Buffer struct {
	index     uint32
	typ       uint32
	bytesused uint32
	flags     uint32
	field     uint32
	timestamp [8]byte
	timecode  [16]byte
	sequence  uint32
	memory    uint32
	offset    uint32
	length    uint32
	reserved2 uint32
	requestFd int32
}
