// Package framestore holds the most recently decoded camera frame.
package framestore

import (
	"image"
	"image/color"
	"time"
)

// Frame is a decoded RGB888 image. Pix holds Height rows of Width*3 bytes.
// Frames handed out by a Store are private copies and may be modified freely.
type Frame struct {
	Width     int
	Height    int
	Pix       []byte
	Sequence  uint64
	Timestamp time.Time
}

// NewFrame allocates a zeroed frame of the given size.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*3),
	}
}

// Empty reports whether the frame carries no image.
func (f *Frame) Empty() bool {
	return f == nil || f.Width == 0 || f.Height == 0 || len(f.Pix) == 0
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	c.Pix = append([]byte(nil), f.Pix...)
	return &c
}

// Resize reshapes the frame to width x height, reusing its buffer if large enough.
func (f *Frame) Resize(width, height int) {
	n := width * height * 3
	if cap(f.Pix) >= n {
		f.Pix = f.Pix[:n]
	} else {
		f.Pix = make([]byte, n)
	}
	f.Width, f.Height = width, height
}

// ColorModel implements image.Image.
func (f *Frame) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// At implements image.Image.
func (f *Frame) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return color.RGBA{}
	}
	i := (y*f.Width + x) * 3
	return color.RGBA{R: f.Pix[i], G: f.Pix[i+1], B: f.Pix[i+2], A: 0xff}
}

// RGBA expands the frame to an *image.RGBA, which encoders handle without
// per-pixel interface calls.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	for s, d := 0, 0; s+2 < len(f.Pix); s, d = s+3, d+4 {
		img.Pix[d] = f.Pix[s]
		img.Pix[d+1] = f.Pix[s+1]
		img.Pix[d+2] = f.Pix[s+2]
		img.Pix[d+3] = 0xff
	}
	return img
}
