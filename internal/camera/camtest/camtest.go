// Package camtest provides a scripted in-memory V4L2 device for exercising
// the capture engine without hardware.
package camtest

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/kioskcam/internal/camera"
	"github.com/smazurov/kioskcam/pkg/linuxav/v4l2"
)

var _ camera.Device = (*Device)(nil)

// Device imitates a YUYV capture node. Exported fields configure it and must
// be set before the device is opened; everything else is guarded by mu.
type Device struct {
	// Caps is returned by Capability. Defaults to capture+streaming.
	Caps v4l2.Capability
	// Grant rewrites the requested format. nil grants the request with
	// packed stride.
	Grant func(want v4l2.PixFormat) v4l2.PixFormat
	// Buffers is the count granted by RequestBuffers; 0 grants the request.
	Buffers uint32
	// MapFailAt makes MapBuffer fail for that index; -1 never fails.
	MapFailAt int
	// Fill writes frame content into a buffer as it is dequeued. nil fills
	// mid grey.
	Fill func(seq uint32, buf []byte)

	FormatErr   error
	IntervalErr error

	mu        sync.Mutex
	format    v4l2.PixFormat
	mem       [][]byte
	queued    []uint32
	streaming bool
	closed    bool
	gone      bool
	sequence  uint32
	flagNext  uint32

	waitErrs    []error
	dequeueErrs []error
	queueErrs   []error

	closes     int
	unmapped   int
	streamOns  int
	streamOffs int
	queueCalls int
}

// NewDevice returns a working fake.
func NewDevice() *Device {
	return &Device{
		Caps: v4l2.Capability{
			Driver:       "camtest",
			Card:         "Fake Camera",
			Capabilities: v4l2.CapVideoCapture | v4l2.CapStreaming,
		},
		MapFailAt: -1,
	}
}

// FailWait scripts errors returned by the next WaitReadable calls.
func (d *Device) FailWait(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitErrs = append(d.waitErrs, errs...)
}

// FailDequeue scripts errors returned by the next DequeueBuffer calls.
func (d *Device) FailDequeue(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dequeueErrs = append(d.dequeueErrs, errs...)
}

// FailQueue scripts errors returned by the next QueueBuffer calls.
func (d *Device) FailQueue(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queueErrs = append(d.queueErrs, errs...)
}

// FlagNextError marks the next dequeued buffer as corrupt.
func (d *Device) FlagNextError() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flagNext = v4l2.BufFlagError
}

// Unplug makes every further call fail with ENODEV.
func (d *Device) Unplug() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gone = true
}

// Replug undoes Unplug for handles opened afterwards.
func (d *Device) Replug() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gone = false
}

// Closes returns how many times Close was called.
func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Unmapped returns how many times UnmapBuffer was called.
func (d *Device) Unmapped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unmapped
}

// StreamOns returns how many times StreamOn succeeded.
func (d *Device) StreamOns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streamOns
}

// StreamOffs returns how many times StreamOff was called.
func (d *Device) StreamOffs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streamOffs
}

// QueueCalls returns how many times QueueBuffer was called.
func (d *Device) QueueCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queueCalls
}

// Streaming reports whether StreamOn is in effect.
func (d *Device) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

// Mapped reports how many buffers are currently allocated.
func (d *Device) Mapped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mem)
}

func (d *Device) check() error {
	switch {
	case d.closed:
		return v4l2.ErrClosed
	case d.gone:
		return unix.ENODEV
	}
	return nil
}

// Capability implements camera.Device.
func (d *Device) Capability() (v4l2.Capability, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return v4l2.Capability{}, err
	}
	return d.Caps, nil
}

// SetFormat implements camera.Device.
func (d *Device) SetFormat(want v4l2.PixFormat) (v4l2.PixFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return v4l2.PixFormat{}, err
	}
	if d.FormatErr != nil {
		return v4l2.PixFormat{}, d.FormatErr
	}
	got := want
	if d.Grant != nil {
		got = d.Grant(want)
	}
	if got.Field == v4l2.FieldAny {
		got.Field = v4l2.FieldNone
	}
	if got.BytesPerLine == 0 {
		got.BytesPerLine = got.Width * 2
	}
	if got.SizeImage == 0 {
		got.SizeImage = got.BytesPerLine * got.Height
	}
	d.format = got
	return got, nil
}

// SetFrameInterval implements camera.Device.
func (d *Device) SetFrameInterval(num, den uint32) (v4l2.Framerate, error) {
	if d.IntervalErr != nil {
		return v4l2.Framerate{}, d.IntervalErr
	}
	return v4l2.Framerate{Numerator: num, Denominator: den}, nil
}

// RequestBuffers implements camera.Device.
func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if count == 0 {
		d.mem = nil
		d.queued = nil
		return 0, nil
	}
	if err := d.check(); err != nil {
		return 0, err
	}
	if d.Buffers > 0 {
		count = d.Buffers
	}
	d.mem = make([][]byte, count)
	for i := range d.mem {
		d.mem[i] = make([]byte, d.format.SizeImage)
	}
	return count, nil
}

// MapBuffer implements camera.Device.
func (d *Device) MapBuffer(index uint32) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return nil, err
	}
	if int(index) == d.MapFailAt {
		return nil, unix.ENOMEM
	}
	if int(index) >= len(d.mem) {
		return nil, unix.EINVAL
	}
	return d.mem[index], nil
}

// UnmapBuffer implements camera.Device.
func (d *Device) UnmapBuffer([]byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unmapped++
	return nil
}

// QueueBuffer implements camera.Device.
func (d *Device) QueueBuffer(index uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queueCalls++
	if len(d.queueErrs) > 0 {
		err := d.queueErrs[0]
		d.queueErrs = d.queueErrs[1:]
		return fmt.Errorf("VIDIOC_QBUF %d: %w", index, err)
	}
	if err := d.check(); err != nil {
		return err
	}
	if int(index) >= len(d.mem) {
		return unix.EINVAL
	}
	d.queued = append(d.queued, index)
	return nil
}

// DequeueBuffer implements camera.Device.
func (d *Device) DequeueBuffer() (v4l2.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.dequeueErrs) > 0 {
		err := d.dequeueErrs[0]
		d.dequeueErrs = d.dequeueErrs[1:]
		return v4l2.Buffer{}, fmt.Errorf("VIDIOC_DQBUF: %w", err)
	}
	if err := d.check(); err != nil {
		return v4l2.Buffer{}, err
	}
	if !d.streaming || len(d.queued) == 0 {
		return v4l2.Buffer{}, unix.EAGAIN
	}
	index := d.queued[0]
	d.queued = d.queued[1:]

	buf := d.mem[index]
	if d.Fill != nil {
		d.Fill(d.sequence, buf)
	} else {
		for i := range buf {
			buf[i] = 0x80
		}
	}
	b := v4l2.Buffer{
		Index:     index,
		BytesUsed: uint32(len(buf)),
		Flags:     v4l2.BufFlagDone | d.flagNext,
		Field:     d.format.Field,
		Sequence:  d.sequence,
		Length:    uint32(len(buf)),
	}
	d.flagNext = 0
	d.sequence++
	return b, nil
}

// StreamOn implements camera.Device.
func (d *Device) StreamOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	d.streaming = true
	d.streamOns++
	return nil
}

// StreamOff implements camera.Device.
func (d *Device) StreamOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.streamOffs++
	d.streaming = false
	d.queued = nil
	return d.check()
}

// WaitReadable implements camera.Device. Scripted errors are returned
// first; otherwise it reports ready whenever a queued buffer exists and
// sleeps a short while when none does.
func (d *Device) WaitReadable(timeout time.Duration) (bool, error) {
	d.mu.Lock()
	if len(d.waitErrs) > 0 {
		err := d.waitErrs[0]
		d.waitErrs = d.waitErrs[1:]
		d.mu.Unlock()
		return false, err
	}
	if err := d.check(); err != nil {
		d.mu.Unlock()
		return false, err
	}
	ready := d.streaming && len(d.queued) > 0
	d.mu.Unlock()

	if ready {
		time.Sleep(time.Millisecond)
		return true, nil
	}
	time.Sleep(min(timeout, 5*time.Millisecond))
	return false, nil
}

// Close implements camera.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	d.closed = true
	return nil
}

// Opener hands out devices by path. A path with no device fails with ENOENT.
type Opener struct {
	mu      sync.Mutex
	devices map[string][]*Device
	opened  []*Device
}

// NewOpener returns an opener with no devices.
func NewOpener() *Opener {
	return &Opener{devices: make(map[string][]*Device)}
}

// Add queues devices for path, handed out one per Open. The last one is
// reused once the queue runs dry.
func (o *Opener) Add(path string, devs ...*Device) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.devices[path] = append(o.devices[path], devs...)
}

// Remove forgets path, so opening it fails.
func (o *Opener) Remove(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.devices, path)
}

// Open returns the next fake for path. The method value satisfies
// camera.Opener.
func (o *Opener) Open(path string) (camera.Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	devs := o.devices[path]
	if len(devs) == 0 {
		return nil, fmt.Errorf("%w: open %s: %w", camera.ErrOpen, path, unix.ENOENT)
	}
	dev := devs[0]
	if len(devs) > 1 {
		o.devices[path] = devs[1:]
	} else {
		// reopen of a single fake gets a fresh handle on the same device
		dev.mu.Lock()
		dev.closed = false
		dev.mu.Unlock()
	}
	o.opened = append(o.opened, dev)
	return dev, nil
}

// Opens returns how many times Open succeeded.
func (o *Opener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}
