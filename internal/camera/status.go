package camera

import (
	"time"

	"github.com/smazurov/kioskcam/pkg/linuxav/v4l2"
)

// Status is a snapshot of the camera for display and diagnostics.
type Status struct {
	State      State
	DevicePath string
	Driver     string
	Card       string

	Width        int
	Height       int
	PixelFormat  string
	BytesPerLine int
	Field        string
	FPS          float64
	Buffers      int

	FramesDecoded     uint64
	FramesSkipped     uint64
	ConsecutiveErrors int
	Sequence          uint64
	LastFrame         time.Time
}

// Status returns the current state, negotiated format and counters.
func (c *Camera) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:             c.State(),
		DevicePath:        c.lastPath,
		FramesDecoded:     c.stats.decoded.Load(),
		FramesSkipped:     c.stats.skipped.Load(),
		ConsecutiveErrors: int(c.stats.consecutiveErrors.Load()),
		Sequence:          c.seq.Load(),
	}
	if ns := c.stats.lastFrame.Load(); ns != 0 {
		st.LastFrame = time.Unix(0, ns)
	}
	if s := c.sess; s != nil {
		st.Driver = s.caps.Driver
		st.Card = s.caps.Card
		st.Width = int(s.format.Width)
		st.Height = int(s.format.Height)
		st.PixelFormat = v4l2.FormatFourCC(s.format.PixelFormat)
		st.BytesPerLine = s.stride()
		st.Field = v4l2.FieldName(s.format.Field)
		st.FPS = s.rate.FPS()
		st.Buffers = s.pool.size()
	}
	return st
}
