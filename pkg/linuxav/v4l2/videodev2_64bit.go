//go:build linux && (amd64 || arm64 || riscv64)

package v4l2

import "unsafe"

// Compile-time struct size assertions.
var (
	_ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(v4l2Fmtdesc{})]byte{}
	_ [24]byte  = [unsafe.Sizeof(v4l2FrmsizeStepwise{})]byte{}
	_ [44]byte  = [unsafe.Sizeof(v4l2Frmsizeenum{})]byte{}
	_ [52]byte  = [unsafe.Sizeof(v4l2Frmivalenum{})]byte{}
	_ [48]byte  = [unsafe.Sizeof(v4l2PixFormat{})]byte{}
	_ [208]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
	_ [20]byte  = [unsafe.Sizeof(v4l2Requestbuffers{})]byte{}
	_ [204]byte = [unsafe.Sizeof(v4l2Streamparm{})]byte{}
	_ [88]byte  = [unsafe.Sizeof(v4l2Buffer{})]byte{}
)

// IOCTL constants for 64-bit architectures.
const (
	vidiocQuerycap           = 0x80685600
	vidiocEnumFmt            = 0xc0405602
	vidiocGFmt               = 0xc0d05604
	vidiocSFmt               = 0xc0d05605
	vidiocReqbufs            = 0xc0145608
	vidiocQuerybuf           = 0xc0585609
	vidiocQbuf               = 0xc058560f
	vidiocDqbuf              = 0xc0585611
	vidiocStreamon           = 0x40045612
	vidiocStreamoff          = 0x40045613
	vidiocGParm              = 0xc0cc5615
	vidiocSParm              = 0xc0cc5616
	vidiocEnumFramesizes     = 0xc02c564a
	vidiocEnumFrameintervals = 0xc034564b
)

// v4l2Format has size 208 bytes. The fmt union is 8-byte aligned because
// v4l2_window carries pointers.
type v4l2Format struct {
	typ uint32        // offset 0
	_   [4]byte       // padding
	pix v4l2PixFormat // offset 8
	_   [152]byte     // rest of the 200 byte union
}

// v4l2Buffer has size 88 bytes.
type v4l2Buffer struct {
	index     uint32   // offset 0
	typ       uint32   // offset 4
	bytesused uint32   // offset 8
	flags     uint32   // offset 12
	field     uint32   // offset 16
	_         [4]byte  // padding
	timestamp [16]byte // offset 24 - struct timeval
	timecode  [16]byte // offset 40
	sequence  uint32   // offset 56
	memory    uint32   // offset 60
	offset    uint32   // offset 64 - union m
	_         [4]byte  // rest of union m
	length    uint32   // offset 72
	reserved2 uint32   // offset 76
	requestFd int32    // offset 80
	_         [4]byte  // padding to 88
}
