package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// SyslogIdentifier tags every journal entry.
const SyslogIdentifier = "kioskcam"

const defaultBufferSize = 1000

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// outputs is the handler chain every module logger writes through. It is
// replaced wholesale by Initialize; gen lets module handlers notice.
type outputs struct {
	gen     uint64
	handler slog.Handler
}

var (
	mutex           sync.Mutex
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{}

	current   atomic.Pointer[outputs]
	logBuffer atomic.Pointer[RingBuffer]
	callback  atomic.Pointer[LogCallback]
)

func init() {
	current.Store(&outputs{gen: 1, handler: createOutputs("text")})
}

// Initialize sets the global and per-module levels and rebuilds the outputs.
// Loggers obtained earlier keep working and pick up the new settings.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	logBuffer.Store(NewRingBuffer(defaultBufferSize))

	globalLevelVar.Set(levelOr(config.Level, slog.LevelInfo))
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(module))
	}

	prev := current.Load()
	current.Store(&outputs{gen: prev.gen + 1, handler: createOutputs(config.Format)})

	slog.SetDefault(slog.New(newModuleHandler(globalLevelVar)))
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.Lock()
	defer mutex.Unlock()

	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(moduleLevel(module))

	logger := slog.New(newModuleHandler(levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// SetModuleLevel changes a module's level at runtime. An empty level resets
// the module to the global level.
func SetModuleLevel(module, level string) bool {
	mutex.Lock()
	defer mutex.Unlock()

	if level != "" && parseLevel(level) == nil {
		return false
	}
	if globalConfig.Modules == nil {
		globalConfig.Modules = make(map[string]string)
	}
	if level == "" {
		delete(globalConfig.Modules, module)
	} else {
		globalConfig.Modules[module] = level
	}
	if levelVar, ok := moduleLevelVars[module]; ok {
		levelVar.Set(moduleLevel(module))
	}
	return true
}

// GetBuffer returns the log ring buffer, nil before Initialize.
func GetBuffer() *RingBuffer {
	return logBuffer.Load()
}

// SetLogCallback sets a callback to be called for each new log entry.
func SetLogCallback(cb LogCallback) {
	if cb == nil {
		callback.Store(nil)
		return
	}
	callback.Store(&cb)
}

// moduleLevel must be called with mutex held.
func moduleLevel(module string) slog.Level {
	level := levelOr(globalConfig.Level, slog.LevelInfo)
	if levelStr, ok := globalConfig.Modules[module]; ok {
		level = levelOr(levelStr, level)
	}
	return level
}

// createOutputs builds the stdout, journal and ring buffer chain. Level
// filtering happens in the module handler, so the outputs accept everything.
func createOutputs(format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}

	var stdoutHandler slog.Handler
	if format == "json" {
		stdoutHandler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdoutHandler = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if isStdoutAvailable() {
		handlers = append(handlers, stdoutHandler)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(slog.LevelDebug))
	}
	handlers = append(handlers, NewBufferHandler(slog.LevelDebug))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// isStdoutAvailable checks if stdout is connected to a terminal, pipe, socket, or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

func levelOr(level string, fallback slog.Level) slog.Level {
	if parsed := parseLevel(level); parsed != nil {
		return *parsed
	}
	return fallback
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
