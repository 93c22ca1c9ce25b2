// Package colorspace converts packed YUYV 4:2:2 frames to RGB888.
//
// Per-channel contributions are precomputed for all 256 byte values so the
// inner loop is table lookups and integer adds. Coefficients are the BT.601
// limited-range ones in 8.8 fixed point.
package colorspace

import "sync"

// LumaBoost is added to every luma sample before clamping. Small kiosk
// cameras tend to underexpose indoors.
const LumaBoost = 12

type tables struct {
	luma [256]uint8 // brightness-adjusted, clamped luma
	crR  [256]int32 // V contribution to red
	cbG  [256]int32 // U contribution to green
	crG  [256]int32 // V contribution to green
	cbB  [256]int32 // U contribution to blue
}

var (
	lut     *tables
	lutOnce sync.Once
)

// lookup returns the shared tables, building them on first use. The tables
// are never written after construction.
func lookup() *tables {
	lutOnce.Do(func() {
		lut = buildTables()
	})
	return lut
}

func buildTables() *tables {
	t := &tables{}
	for i := range 256 {
		c := int32(i) - 16
		t.luma[i] = clamp((298*c+128)>>8 + LumaBoost)

		d := int32(i) - 128
		t.crR[i] = (409*d + 128) >> 8
		t.cbG[i] = (-100*d + 128) >> 8
		t.crG[i] = (-208*d + 128) >> 8
		t.cbB[i] = (516*d + 128) >> 8
	}
	return t
}

// Luma returns the brightness-adjusted luma value for a raw Y sample.
func Luma(y uint8) uint8 {
	return lookup().luma[y]
}

func clamp(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
