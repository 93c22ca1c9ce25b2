package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/kioskcam/internal/api/models"
	"github.com/smazurov/kioskcam/internal/led"
)

// LEDRequest represents a request to control an LED
type LEDRequest struct {
	Body struct {
		Type    string `json:"type" example:"act" doc:"LED name (board-specific: act, pwr, system, user, green, ...)"`
		Enabled bool   `json:"enabled" example:"true" doc:"Whether the LED should be on or off"`
		Pattern string `json:"pattern,omitempty" enum:"solid,blink,heartbeat," example:"solid" doc:"Optional pattern"`
	}
}

// registerLEDRoutes registers LED control endpoints. Manual changes to the
// status LED last until the next capture state change.
func (s *Server) registerLEDRoutes() {
	ctrl := s.options.LEDController
	if ctrl == nil {
		s.logger.Debug("LED controller not available, skipping LED routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "control-led",
		Method:      http.MethodPost,
		Path:        "/api/leds",
		Summary:     "Control LED",
		Description: "Set an LED's state and optional pattern. LED names and patterns are board-specific.",
		Tags:        []string{"leds"},
		Errors:      []int{400, 401},
		Security:    withAuth(),
	}, func(_ context.Context, input *LEDRequest) (*struct{}, error) {
		if err := ctrl.Set(input.Body.Type, input.Body.Enabled, led.Pattern(input.Body.Pattern)); err != nil {
			return nil, huma.Error400BadRequest("Failed to control LED", err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-led-capabilities",
		Method:      http.MethodGet,
		Path:        "/api/leds/capabilities",
		Summary:     "Get LED Capabilities",
		Description: "LED names and patterns available on this board",
		Tags:        []string{"leds"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.LEDCapabilitiesResponse, error) {
		patterns := ctrl.Patterns()
		names := make([]string, len(patterns))
		for i, p := range patterns {
			names[i] = string(p)
		}
		return &models.LEDCapabilitiesResponse{
			Body: models.LEDCapabilitiesData{
				AvailableTypes:    ctrl.Available(),
				AvailablePatterns: names,
				StatusLED:         s.options.StatusLED,
			},
		}, nil
	})
}
