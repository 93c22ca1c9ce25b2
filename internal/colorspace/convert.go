package colorspace

import (
	"fmt"
	"runtime"
	"sync"
)

// minRowsPerWorker keeps tiny frames on a single goroutine.
const minRowsPerWorker = 16

// Converter converts YUYV frames using a fixed number of goroutines per call.
// It is safe for concurrent use.
type Converter struct {
	workers int
}

// NewConverter returns a converter that splits each frame across workers
// goroutines by scanline. workers <= 0 selects GOMAXPROCS.
func NewConverter(workers int) *Converter {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Converter{workers: workers}
}

// Workers returns the configured parallelism.
func (c *Converter) Workers() int {
	return c.workers
}

// SourceSize returns the minimum YUYV buffer length for the given geometry.
// stride 0 means tightly packed rows.
func SourceSize(width, height, stride int) int {
	rowBytes := packedRowBytes(width)
	if stride < rowBytes {
		stride = rowBytes
	}
	if height == 0 {
		return 0
	}
	return stride*(height-1) + rowBytes
}

// Convert decodes src, a YUYV frame with the given row stride in bytes
// (0 for tightly packed), into dst as RGB888. dst must hold width*height*3
// bytes and src at least SourceSize(width, height, stride) bytes; shorter
// buffers are a caller bug and cause a panic.
func (c *Converter) Convert(dst, src []byte, width, height, stride int) {
	rowBytes := packedRowBytes(width)
	if stride < rowBytes {
		stride = rowBytes
	}
	if need := width * height * 3; len(dst) < need {
		panic(fmt.Sprintf("colorspace: destination holds %d bytes, %dx%d RGB888 needs %d", len(dst), width, height, need))
	}
	if need := SourceSize(width, height, stride); len(src) < need {
		panic(fmt.Sprintf("colorspace: source holds %d bytes, %dx%d YUYV with stride %d needs %d", len(src), width, height, stride, need))
	}

	t := lookup()

	workers := c.workers
	if maxWorkers := height / minRowsPerWorker; workers > maxWorkers {
		workers = maxWorkers
	}
	if workers <= 1 {
		convertRows(t, dst, src, width, stride, 0, height)
		return
	}

	rowsPer := (height + workers - 1) / workers
	var wg sync.WaitGroup
	for first := 0; first < height; first += rowsPer {
		last := min(first+rowsPer, height)
		wg.Add(1)
		go func(first, last int) {
			defer wg.Done()
			convertRows(t, dst, src, width, stride, first, last)
		}(first, last)
	}
	wg.Wait()
}

// ConvertYUYV converts on the calling goroutine only.
func ConvertYUYV(dst, src []byte, width, height, stride int) {
	(&Converter{workers: 1}).Convert(dst, src, width, height, stride)
}

func packedRowBytes(width int) int {
	return (width + 1) / 2 * 4
}

// convertRows decodes scanlines [first, last). Each 4 byte group Y0 U Y1 V
// yields two pixels sharing the chroma contributions.
func convertRows(t *tables, dst, src []byte, width, stride, first, last int) {
	for y := first; y < last; y++ {
		in := src[y*stride : y*stride+packedRowBytes(width)]
		out := dst[y*width*3 : (y+1)*width*3]

		for x, o := 0, 0; x < len(in); x += 4 {
			y0 := int32(t.luma[in[x]])
			u := in[x+1]
			y1 := int32(t.luma[in[x+2]])
			v := in[x+3]

			r := t.crR[v]
			g := t.cbG[u] + t.crG[v]
			b := t.cbB[u]

			out[o] = clamp(y0 + r)
			out[o+1] = clamp(y0 + g)
			out[o+2] = clamp(y0 + b)
			o += 3

			// Odd widths carry a padding luma in the last group.
			if o == len(out) {
				break
			}
			out[o] = clamp(y1 + r)
			out[o+1] = clamp(y1 + g)
			out[o+2] = clamp(y1 + b)
			o += 3
		}
	}
}
