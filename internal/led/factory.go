package led

import (
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// board maps a device-tree model substring to its LED names. The first LED
// is the status LED.
type board struct {
	match string
	leds  []ledName
}

type ledName struct {
	name  string
	sysfs string
}

var boards = []board{
	{match: "Raspberry Pi", leds: []ledName{{"act", "ACT"}, {"pwr", "PWR"}}},
	{match: "NanoPC-T6", leds: []ledName{{"system", "sys_led"}, {"user", "usr_led"}}},
	{match: "Orange Pi", leds: []ledName{{"green", "green_led"}, {"blue", "blue_led"}}},
}

// New returns a controller for the detected board and the name of its
// status LED. Unknown boards get a no-op controller.
func New(logger *slog.Logger) (Controller, string) {
	return newForModel(detectBoard(deviceTreeModelPath), sysfsLEDPath, logger)
}

func newForModel(model, root string, logger *slog.Logger) (Controller, string) {
	for _, b := range boards {
		if !strings.Contains(model, b.match) {
			continue
		}
		leds := make(map[string]string, len(b.leds))
		for _, l := range b.leds {
			leds[l.name] = l.sysfs
		}
		logger.Info("Using sysfs LED controller", "board_model", model, "status_led", b.leds[0].name)
		return newSysfs(root, leds), b.leds[0].name
	}
	logger.Info("No LED support detected, using no-op controller", "board_model", model)
	return newNoop(logger), ""
}

// detectBoard reads the device-tree model, which is NUL terminated.
func detectBoard(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}
