package v4l2

import "fmt"

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	return string([]byte{
		byte(format),
		byte(format >> 8),
		byte(format >> 16),
		byte(format >> 24),
	})
}

// ParseFourCC is the inverse of FormatFourCC. Codes shorter than four
// characters are padded with spaces.
func ParseFourCC(code string) (uint32, error) {
	if len(code) == 0 || len(code) > 4 {
		return 0, fmt.Errorf("invalid fourcc %q", code)
	}
	b := []byte(code + "    ")[:4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}
