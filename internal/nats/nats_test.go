package nats

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smazurov/kioskcam/internal/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer(ServerOptions{Port: -1, Name: "test-server", Logger: discardLogger()})
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv
}

func subscribe(t *testing.T, url, subject string) chan *nats.Msg {
	t.Helper()
	conn, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(conn.Close)

	ch := make(chan *nats.Msg, 16)
	if _, err := conn.ChanSubscribe(subject, ch); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return ch
}

func receive(t *testing.T, ch chan *nats.Msg) *nats.Msg {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestServerStartStop(t *testing.T) {
	srv := NewServer(ServerOptions{Port: -1, Logger: discardLogger()})
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if !srv.IsRunning() {
		t.Error("Server should be running after Start()")
	}
	if srv.ClientURL() == "" {
		t.Error("ClientURL should not be empty")
	}

	srv.Stop()
	if srv.IsRunning() {
		t.Error("Server should not be running after Stop()")
	}
	srv.Stop()
}

func TestPublisherForwardsEvents(t *testing.T) {
	srv := startServer(t)
	msgs := subscribe(t, srv.ClientURL(), SubjectCameraPrefix+".kiosk.>")

	bus := events.New()
	defer bus.Close()
	pub := NewPublisher(srv.ClientURL(), "kiosk", bus, discardLogger())
	if err := pub.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer pub.Stop()
	if !pub.IsConnected() {
		t.Fatal("publisher not connected")
	}

	bus.Publish(events.FrameAvailableEvent{DevicePath: "/dev/video0", Sequence: 7, Width: 800, Height: 600})
	msg := receive(t, msgs)
	if msg.Subject != SubjectFrame("kiosk") {
		t.Errorf("subject = %q, want %q", msg.Subject, SubjectFrame("kiosk"))
	}
	var frame FrameMessage
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		t.Fatal(err)
	}
	if frame.Sequence != 7 || frame.Width != 800 || frame.Camera != "kiosk" {
		t.Errorf("frame message = %+v", frame)
	}

	bus.Publish(events.DeviceDisconnectedEvent{DevicePath: "/dev/video0", Reason: "no such device"})
	msg = receive(t, msgs)
	if msg.Subject != SubjectDisconnected("kiosk") {
		t.Errorf("subject = %q, want %q", msg.Subject, SubjectDisconnected("kiosk"))
	}
	var lost DisconnectMessage
	if err := json.Unmarshal(msg.Data, &lost); err != nil {
		t.Fatal(err)
	}
	if lost.Reason != "no such device" {
		t.Errorf("reason = %q", lost.Reason)
	}

	bus.Publish(events.CaptureStateChangedEvent{State: "idle", Previous: "streaming"})
	if msg = receive(t, msgs); msg.Subject != SubjectState("kiosk") {
		t.Errorf("subject = %q, want %q", msg.Subject, SubjectState("kiosk"))
	}
}

func TestPublisherRestartControl(t *testing.T) {
	srv := startServer(t)

	bus := events.New()
	defer bus.Close()
	pub := NewPublisher(srv.ClientURL(), "kiosk", bus, discardLogger())
	got := make(chan ControlMessage, 1)
	pub.OnRestart(func(m ControlMessage) { got <- m })
	if err := pub.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer pub.Stop()

	ctrl, err := NewControlPublisher(srv.ClientURL(), discardLogger())
	if err != nil {
		t.Fatalf("NewControlPublisher() error: %v", err)
	}
	defer ctrl.Close()

	if err := ctrl.Restart("kiosk", "test", 250*time.Millisecond); err != nil {
		t.Fatalf("Restart() error: %v", err)
	}

	select {
	case m := <-got:
		if m.Action != ActionRestart || m.Reason != "test" || m.PauseMS != 250 {
			t.Errorf("control message = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("restart callback not called")
	}

	// Commands for another camera are not delivered.
	if err := ctrl.Restart("lobby", "test", 0); err != nil {
		t.Fatal(err)
	}
	select {
	case m := <-got:
		t.Errorf("unexpected control message %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublisherOffline(t *testing.T) {
	bus := events.New()
	defer bus.Close()

	pub := NewPublisher("nats://127.0.0.1:59999", "kiosk", bus, discardLogger())
	if err := pub.Start(); err != nil {
		t.Fatalf("Start() should tolerate an unreachable server: %v", err)
	}
	if pub.IsConnected() {
		t.Error("publisher should not be connected")
	}

	bus.Publish(events.FrameAvailableEvent{Sequence: 1})
	pub.Stop()
	pub.Stop()
}

func TestControlPublisherUnreachable(t *testing.T) {
	if _, err := NewControlPublisher("nats://127.0.0.1:59999", discardLogger()); err == nil {
		t.Error("expected connect error")
	}
}

func TestControlMessageRoundTrip(t *testing.T) {
	data, err := ControlMessage{Action: ActionRestart, PauseMS: 1500}.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	m, err := UnmarshalControl(data)
	if err != nil {
		t.Fatal(err)
	}
	if m.Action != ActionRestart || m.PauseMS != 1500 {
		t.Errorf("decoded = %+v", m)
	}
	if _, err := UnmarshalControl([]byte("{")); err == nil {
		t.Error("expected error for truncated JSON")
	}
}
