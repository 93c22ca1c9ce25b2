package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smazurov/kioskcam/internal/events"
	"github.com/smazurov/kioskcam/internal/framestore"
)

const (
	previewWriteWait  = 5 * time.Second
	previewPongWait   = 30 * time.Second
	previewPingPeriod = previewPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	// The kiosk UI may be served from any origin; access is gated by basic auth.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handlePreview pushes the latest frame as a binary JPEG message after every
// frame notification. Notifications are coalesced through a one-slot channel,
// so a slow client always gets the newest frame and never a backlog.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(w, r) {
		return
	}
	if s.options.Camera == nil || s.eventBus == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return
	}

	quality := s.options.JPEGQuality
	if q, err := strconv.Atoi(r.URL.Query().Get("quality")); err == nil && q > 0 && q <= 100 {
		quality = q
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Preview upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("remote_addr", r.RemoteAddr)
	logger.Info("Preview client connected")
	defer logger.Info("Preview client disconnected")

	notify := make(chan any, 1)
	unsubscribe := events.SubscribeToChannel[events.FrameAvailableEvent](s.eventBus, notify)
	defer unsubscribe()

	// The read side only handles control frames; it ends when the client goes away.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(previewPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(previewPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(previewPingPeriod)
	defer ping.Stop()

	store := s.options.Camera.Frames()
	frame := &framestore.Frame{}
	var buf bytes.Buffer
	var sent uint64

	send := func() bool {
		if !store.CopyInto(frame) || frame.Sequence == sent {
			return true
		}
		buf.Reset()
		if err := frame.Encode(&buf, framestore.EncodingJPEG, quality); err != nil {
			logger.Warn("Preview encode failed", "error", err)
			return true
		}
		_ = conn.SetWriteDeadline(time.Now().Add(previewWriteWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
			logger.Debug("Preview write failed", "error", err)
			return false
		}
		sent = frame.Sequence
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-notify:
			if !send() {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(previewWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
