package led

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs drives LEDs through /sys/class/leds/<name>/{trigger,brightness}.
type sysfs struct {
	root string
	leds map[string]string // LED name -> sysfs directory
}

func newSysfs(root string, leds map[string]string) *sysfs {
	return &sysfs{root: root, leds: leds}
}

func (s *sysfs) Set(led string, on bool, pattern Pattern) error {
	dir, ok := s.leds[led]
	if !ok {
		return fmt.Errorf("LED %q not supported on this board", led)
	}
	path := filepath.Join(s.root, dir)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("LED %q: %w", led, err)
	}

	if !on {
		if err := s.write(path, "trigger", "none"); err != nil {
			return err
		}
		return s.write(path, "brightness", "0")
	}

	switch pattern {
	case "":
	case PatternSolid:
		if err := s.write(path, "trigger", "none"); err != nil {
			return err
		}
	case PatternBlink:
		if err := s.write(path, "trigger", "timer"); err != nil {
			return err
		}
		// timer exposes delay_on/delay_off only after it is selected
		_ = s.write(path, "delay_on", "250")
		_ = s.write(path, "delay_off", "250")
	case PatternHeartbeat:
		if err := s.write(path, "trigger", "heartbeat"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown LED pattern %q", pattern)
	}
	if pattern == PatternBlink || pattern == PatternHeartbeat {
		return nil
	}
	return s.write(path, "brightness", maxBrightness(path))
}

func (s *sysfs) write(dir, attr, value string) error {
	if err := os.WriteFile(filepath.Join(dir, attr), []byte(value), 0o644); err != nil {
		return fmt.Errorf("set LED %s: %w", attr, err)
	}
	return nil
}

func (s *sysfs) Available() []string {
	names := make([]string, 0, len(s.leds))
	for name := range s.leds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *sysfs) Patterns() []Pattern {
	return []Pattern{PatternSolid, PatternBlink, PatternHeartbeat}
}

func maxBrightness(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return "1"
	}
	if v := strings.TrimSpace(string(data)); v != "" {
		return v
	}
	return "1"
}
