//go:build linux

package v4l2

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// RequestBuffers asks the driver for count memory-mapped capture buffers and
// returns how many it allocated, which may be fewer. A count of zero frees
// all buffers; any mappings must be released before that.
func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	req := v4l2Requestbuffers{
		count:  count,
		typ:    bufTypeVideoCapture,
		memory: memoryMMap,
	}
	if err := d.ioctl(vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("VIDIOC_REQBUFS: %w", err)
	}
	return req.count, nil
}

// QueryBuffer returns the mapping offset and length of buffer index.
func (d *Device) QueryBuffer(index uint32) (Buffer, error) {
	buf := v4l2Buffer{index: index, typ: bufTypeVideoCapture, memory: memoryMMap}
	if err := d.ioctl(vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
		return Buffer{}, fmt.Errorf("VIDIOC_QUERYBUF %d: %w", index, err)
	}
	return bufferFromRaw(&buf), nil
}

// MapBuffer maps driver buffer index into the process address space.
func (d *Device) MapBuffer(index uint32) ([]byte, error) {
	info, err := d.QueryBuffer(index)
	if err != nil {
		return nil, err
	}
	fd, err := d.handle()
	if err != nil {
		return nil, err
	}
	data, err := unix.Mmap(fd, int64(info.Offset), int(info.Length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap buffer %d: %w", index, err)
	}
	return data, nil
}

// UnmapBuffer releases a mapping returned by MapBuffer.
func (d *Device) UnmapBuffer(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}

// QueueBuffer hands buffer index to the driver for filling.
func (d *Device) QueueBuffer(index uint32) error {
	buf := v4l2Buffer{index: index, typ: bufTypeVideoCapture, memory: memoryMMap}
	if err := d.ioctl(vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("VIDIOC_QBUF %d: %w", index, err)
	}
	return nil
}

// DequeueBuffer takes the oldest filled buffer from the driver. With the
// device opened non-blocking it fails with EAGAIN when none is ready.
func (d *Device) DequeueBuffer() (Buffer, error) {
	buf := v4l2Buffer{typ: bufTypeVideoCapture, memory: memoryMMap}
	if err := d.ioctl(vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
		return Buffer{}, fmt.Errorf("VIDIOC_DQBUF: %w", err)
	}
	return bufferFromRaw(&buf), nil
}

// StreamOn starts the capture stream.
func (d *Device) StreamOn() error {
	typ := uint32(bufTypeVideoCapture)
	if err := d.ioctl(vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("VIDIOC_STREAMON: %w", err)
	}
	return nil
}

// StreamOff stops the capture stream. The driver returns every buffer to
// the dequeued state, so they must be queued again before the next StreamOn.
func (d *Device) StreamOff() error {
	typ := uint32(bufTypeVideoCapture)
	if err := d.ioctl(vidiocStreamoff, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("VIDIOC_STREAMOFF: %w", err)
	}
	return nil
}

// WaitReadable blocks until a filled buffer can be dequeued or the timeout
// elapses. It returns false with a nil error on timeout. A hang-up from the
// driver, which V4L2 reports once the device is unregistered, yields ENODEV.
func (d *Device) WaitReadable(timeout time.Duration) (bool, error) {
	fd, err := d.handle()
	if err != nil {
		return false, err
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	revents := fds[0].Revents
	switch {
	case revents&unix.POLLNVAL != 0:
		return false, unix.EBADF
	case revents&unix.POLLHUP != 0:
		return false, unix.ENODEV
	case revents&unix.POLLERR != 0:
		return false, unix.EIO
	}
	return revents&unix.POLLIN != 0, nil
}

func bufferFromRaw(b *v4l2Buffer) Buffer {
	return Buffer{
		Index:     b.index,
		BytesUsed: b.bytesused,
		Flags:     b.flags,
		Field:     b.field,
		Sequence:  b.sequence,
		Offset:    b.offset,
		Length:    b.length,
	}
}
