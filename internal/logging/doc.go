// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Keeps the most recent entries in a ring buffer served by the API
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"capture": "debug",
//			"http":    "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("camera")
//	logger.Info("Device opened", "device", path)
//
// Loggers may be obtained before Initialize (for example in package-level
// vars); they are cached and follow later level and output changes.
//
// # Viewing Logs
//
//	journalctl -t kioskcam -f
//	journalctl -t kioskcam MODULE=capture
//	journalctl -t kioskcam DEVICE=/dev/video0 -p warning
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	capture = "debug"
package logging
