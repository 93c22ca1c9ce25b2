// Package led drives a board status LED from the camera's capture state.
package led

// Pattern is a blink pattern understood by a Controller.
type Pattern string

// Patterns.
const (
	PatternSolid     Pattern = "solid"
	PatternBlink     Pattern = "blink"
	PatternHeartbeat Pattern = "heartbeat"
)

// Controller abstracts LED hardware across single-board computers.
type Controller interface {
	// Set turns led on or off. pattern is ignored when turning off; an
	// empty pattern keeps the current one.
	Set(led string, on bool, pattern Pattern) error

	// Available lists the LED names this board exposes.
	Available() []string

	// Patterns lists supported patterns.
	Patterns() []Pattern
}
