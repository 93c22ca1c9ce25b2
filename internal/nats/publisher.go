package nats

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smazurov/kioskcam/internal/events"
)

// Publisher forwards camera notifications from the event bus to NATS and
// receives control commands for the camera it names.
// It keeps working while the server is unreachable; notifications raised
// while disconnected are dropped, never buffered.
type Publisher struct {
	url    string
	name   string
	bus    *events.Bus
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *nats.Conn
	sub       *nats.Subscription
	unsubs    []func()
	onRestart func(ControlMessage)
}

// NewPublisher creates a publisher for the camera called name.
func NewPublisher(url, name string, bus *events.Bus, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		url:    url,
		name:   name,
		bus:    bus,
		logger: logger.With("component", "nats-publisher", "camera", name),
	}
}

// OnRestart sets the callback for restart commands. Must be called before Start.
func (p *Publisher) OnRestart(fn func(ControlMessage)) {
	p.mu.Lock()
	p.onRestart = fn
	p.mu.Unlock()
}

// Start connects and subscribes to the bus. An unreachable server is not an
// error; the client keeps retrying in the background.
func (p *Publisher) Start() error {
	conn, err := nats.Connect(p.url,
		nats.Name("kioskcam-"+p.name),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				p.logger.Warn("NATS disconnected", "error", err)
			} else {
				p.logger.Debug("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			p.logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
		nats.ConnectHandler(func(c *nats.Conn) {
			p.logger.Info("NATS connected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return err
	}

	sub, err := conn.Subscribe(SubjectControlRestart(p.name), p.handleControl)
	if err != nil {
		conn.Close()
		return err
	}
	if conn.IsConnected() {
		if err := conn.Flush(); err != nil {
			p.logger.Debug("NATS flush failed", "error", err)
		}
	} else {
		p.logger.Warn("NATS server unreachable, retrying in background", "url", p.url)
	}

	p.mu.Lock()
	p.conn = conn
	p.sub = sub
	p.unsubs = []func(){
		p.bus.Subscribe(func(e events.FrameAvailableEvent) {
			p.publish(SubjectFrame(p.name), FrameMessage{
				Camera:     p.name,
				DevicePath: e.DevicePath,
				Timestamp:  e.Timestamp,
				Sequence:   e.Sequence,
				Width:      e.Width,
				Height:     e.Height,
			})
		}),
		p.bus.Subscribe(func(e events.DeviceDisconnectedEvent) {
			p.publish(SubjectDisconnected(p.name), DisconnectMessage{
				Camera:     p.name,
				DevicePath: e.DevicePath,
				Timestamp:  e.Timestamp,
				Reason:     e.Reason,
			})
		}),
		p.bus.Subscribe(func(e events.CaptureStateChangedEvent) {
			p.publish(SubjectState(p.name), StateMessage{
				Camera:     p.name,
				DevicePath: e.DevicePath,
				Timestamp:  e.Timestamp,
				State:      e.State,
				Previous:   e.Previous,
			})
		}),
		p.bus.Subscribe(func(e events.CaptureWarningEvent) {
			p.publish(SubjectWarning(p.name), WarningMessage{
				Camera:     p.name,
				DevicePath: e.DevicePath,
				Timestamp:  e.Timestamp,
				Message:    e.Message,
				Error:      e.Error,
			})
		}),
	}
	p.mu.Unlock()

	return nil
}

func (p *Publisher) publish(subject string, msg any) {
	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Warn("Failed to marshal message", "subject", subject, "error", err)
		return
	}
	if err := conn.Publish(subject, data); err != nil {
		p.logger.Debug("Failed to publish", "subject", subject, "error", err)
	}
}

func (p *Publisher) handleControl(msg *nats.Msg) {
	ctrl, err := UnmarshalControl(msg.Data)
	if err != nil {
		p.logger.Warn("Failed to unmarshal control message", "error", err)
		return
	}
	if ctrl.Action != ActionRestart {
		p.logger.Warn("Unknown control action", "action", ctrl.Action)
		return
	}

	p.mu.RLock()
	fn := p.onRestart
	p.mu.RUnlock()

	p.logger.Info("Received control command", "action", ctrl.Action, "reason", ctrl.Reason)
	if fn != nil {
		fn(ctrl)
	}
}

// IsConnected reports whether the NATS connection is up.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conn != nil && p.conn.IsConnected()
}

// Stop unsubscribes from the bus and closes the connection.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, unsub := range p.unsubs {
		unsub()
	}
	p.unsubs = nil

	if p.sub != nil {
		_ = p.sub.Unsubscribe()
		p.sub = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	p.logger.Debug("NATS publisher stopped")
}

// ControlPublisher sends control commands to a running daemon.
type ControlPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewControlPublisher connects to url.
func NewControlPublisher(url string, logger *slog.Logger) (*ControlPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("kioskcam-control"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &ControlPublisher{
		conn:   conn,
		logger: logger.With("component", "nats-control"),
	}, nil
}

// Restart asks the daemon owning camera name to restart capture. A zero
// pause uses the daemon's configured pause. Returns once the server has
// accepted the message.
func (p *ControlPublisher) Restart(name, reason string, pause time.Duration) error {
	msg := ControlMessage{
		Action:    ActionRestart,
		Camera:    name,
		Timestamp: time.Now().Format(time.RFC3339),
		Reason:    reason,
		PauseMS:   int(pause / time.Millisecond),
	}

	data, err := msg.Marshal()
	if err != nil {
		return err
	}
	if err := p.conn.Publish(SubjectControlRestart(name), data); err != nil {
		return err
	}
	if err := p.conn.Flush(); err != nil {
		return err
	}

	p.logger.Info("Sent restart command", "camera", name, "reason", reason)
	return nil
}

// Close closes the connection.
func (p *ControlPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
