package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/kioskcam/internal/events"
)

// sseEventTypes maps SSE event names to payloads.
var sseEventTypes = map[string]any{
	"frame-available":       events.FrameAvailableEvent{},
	"device-disconnected":   events.DeviceDisconnectedEvent{},
	"capture-state-changed": events.CaptureStateChangedEvent{},
	"capture-warning":       events.CaptureWarningEvent{},
	"device-hotplug":        events.DeviceHotplugEvent{},
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Camera state changes, disconnects, warnings, hotplug and frame notifications. " +
			"Slow clients miss events rather than stalling capture.",
		Tags:     []string{"events"},
		Security: withAuth(),
		Errors:   []int{401},
	}, sseEventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.FrameAvailableEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceDisconnectedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CaptureStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CaptureWarningEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceHotplugEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Current state first, so clients do not wait for the next transition.
		if cam := s.options.Camera; cam != nil {
			st := cam.Status()
			if err := send.Data(events.CaptureStateChangedEvent{
				DevicePath: st.DevicePath,
				State:      string(st.State),
				Previous:   string(st.State),
				Timestamp:  time.Now().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
