package camera

import (
	"fmt"
	"log/slog"

	"github.com/smazurov/kioskcam/pkg/linuxav/v4l2"
)

// session owns one open device handle, the format the driver granted and
// the mapped buffer pool.
type session struct {
	path   string
	dev    Device
	caps   v4l2.Capability
	format v4l2.PixFormat
	rate   v4l2.Framerate
	pool   *bufferPool
	logger *slog.Logger
}

// openSession acquires path, checks it can stream, negotiates the format
// and maps the buffer pool. Every failure leaves nothing open.
func openSession(open Opener, path string, opts Options, logger *slog.Logger) (*session, error) {
	dev, err := open(path)
	if err != nil {
		return nil, err
	}
	s := &session{path: path, dev: dev, logger: logger}

	if err := s.setup(opts); err != nil {
		if s.pool != nil {
			s.pool.release()
		}
		if cerr := dev.Close(); cerr != nil {
			logger.Debug("Failed to close device after setup error", "error", cerr)
		}
		return nil, err
	}
	return s, nil
}

func (s *session) setup(opts Options) error {
	caps, err := s.dev.Capability()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedDevice, err)
	}
	if !caps.CanCapture() || !caps.CanStream() {
		return fmt.Errorf("%w: %s (%s) caps 0x%08x", ErrUnsupportedDevice, caps.Card, caps.Driver, caps.Effective())
	}
	s.caps = caps

	if err := s.negotiateFormat(opts); err != nil {
		return err
	}

	pool, err := allocatePool(s.dev, opts.BufferCount, opts.MinBuffers, s.logger)
	if err != nil {
		return err
	}
	s.pool = pool
	return nil
}

// negotiateFormat requests the configured geometry and keeps what the
// driver granted. Only packed YUYV can be decoded.
func (s *session) negotiateFormat(opts Options) error {
	want := v4l2.PixFormat{
		Width:       uint32(opts.Width),
		Height:      uint32(opts.Height),
		PixelFormat: opts.PixelFormat,
		Field:       v4l2.FieldAny,
	}
	granted, err := s.dev.SetFormat(want)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFormatNegotiation, err)
	}
	if granted.Width == 0 || granted.Height == 0 {
		return fmt.Errorf("%w: driver granted %dx%d", ErrFormatNegotiation, granted.Width, granted.Height)
	}
	if granted.PixelFormat != v4l2.PixFmtYUYV {
		return fmt.Errorf("%w: driver granted %s, only YUYV is supported",
			ErrFormatNegotiation, v4l2.FormatFourCC(granted.PixelFormat))
	}
	if granted.Width != want.Width || granted.Height != want.Height {
		s.logger.Info("Driver adjusted resolution",
			"requested", fmt.Sprintf("%dx%d", want.Width, want.Height),
			"granted", fmt.Sprintf("%dx%d", granted.Width, granted.Height))
	}
	s.format = granted

	if opts.FPS > 0 {
		rate, err := s.dev.SetFrameInterval(1, uint32(opts.FPS))
		if err != nil {
			s.logger.Warn("Failed to set frame rate", "fps", opts.FPS, "error", err)
		} else {
			s.rate = rate
		}
	}
	return nil
}

// stride returns the row pitch, falling back to packed rows when the driver
// leaves bytesperline unset.
func (s *session) stride() int {
	if s.format.BytesPerLine > 0 {
		return int(s.format.BytesPerLine)
	}
	return int(s.format.Width) * 2
}

// close unmaps the pool and releases the handle.
func (s *session) close() {
	if s.pool != nil {
		s.pool.release()
		s.pool = nil
	}
	if err := s.dev.Close(); err != nil {
		s.logger.Warn("Failed to close device", "error", err)
	}
}
