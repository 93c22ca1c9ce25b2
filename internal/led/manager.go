package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/kioskcam/internal/camera"
	"github.com/smazurov/kioskcam/internal/events"
)

// Manager mirrors capture state on the status LED: streaming is solid, a
// lost device blinks, anything else is off.
type Manager struct {
	controller Controller
	led        string
	bus        *events.Bus
	logger     *slog.Logger

	mu          sync.Mutex
	unsubscribe func()
	state       camera.State
}

// NewManager creates a manager driving led on controller.
func NewManager(controller Controller, led string, bus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		led:        led,
		bus:        bus,
		logger:     logger,
		state:      camera.StateClosed,
	}
}

// Start turns the LED off and begins following state changes.
func (m *Manager) Start() {
	m.apply(camera.StateClosed)

	unsub := m.bus.Subscribe(func(e events.CaptureStateChangedEvent) {
		m.apply(camera.State(e.State))
	})
	m.mu.Lock()
	m.unsubscribe = unsub
	m.mu.Unlock()
	m.logger.Info("LED manager started", "led", m.led)
}

// Stop unsubscribes and turns the LED off.
func (m *Manager) Stop() {
	m.mu.Lock()
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	m.apply(camera.StateClosed)
	m.logger.Info("LED manager stopped")
}

// State returns the last state shown.
func (m *Manager) State() camera.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Controller returns the underlying controller for direct API access.
func (m *Manager) Controller() Controller {
	return m.controller
}

func (m *Manager) apply(state camera.State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()

	on, pattern := indication(state)
	if err := m.controller.Set(m.led, on, pattern); err != nil {
		m.logger.Warn("Failed to set status LED", "state", state, "error", err)
		return
	}
	m.logger.Debug("Status LED updated", "state", state, "on", on, "pattern", pattern)
}

func indication(state camera.State) (bool, Pattern) {
	switch state {
	case camera.StateStreaming:
		return true, PatternSolid
	case camera.StateDisconnected:
		return true, PatternBlink
	default:
		return false, ""
	}
}
