//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for device enumeration, format negotiation and memory-mapped streaming.
//
// This package does not use cgo, enabling simple cross-compilation for
// the Linux architectures a kiosk typically runs on (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Streaming
//
// A capture session negotiates a format, requests driver buffers, maps them
// and cycles them through the dequeue/requeue protocol:
//
//	dev, _ := v4l2.Open("/dev/video0")
//	granted, _ := dev.SetFormat(v4l2.PixFormat{Width: 800, Height: 600, PixelFormat: v4l2.PixFmtYUYV})
//	n, _ := dev.RequestBuffers(4)
//	bufs := make([][]byte, n)
//	for i := range bufs {
//	    bufs[i], _ = dev.MapBuffer(uint32(i))
//	    _ = dev.QueueBuffer(uint32(i))
//	}
//	_ = dev.StreamOn()
//	for {
//	    ready, _ := dev.WaitReadable(time.Second)
//	    if !ready {
//	        continue
//	    }
//	    buf, err := dev.DequeueBuffer()
//	    if err != nil {
//	        continue
//	    }
//	    process(bufs[buf.Index][:buf.BytesUsed], granted)
//	    _ = dev.QueueBuffer(buf.Index)
//	}
//
// Buffer memory is only safe to read between a successful DequeueBuffer and
// the matching QueueBuffer; the driver writes into it at any other time.
package v4l2
