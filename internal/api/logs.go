package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/kioskcam/internal/api/models"
	"github.com/smazurov/kioskcam/internal/logging"
)

// LogListInput limits the number of entries returned.
type LogListInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"1000" default:"100" doc:"Newest entries to return, 0 for all"`
}

// LogLevelInput changes one module's level.
type LogLevelInput struct {
	Body struct {
		Module string `json:"module" minLength:"1" example:"camera" doc:"Module name"`
		Level  string `json:"level" enum:"debug,info,warn,error," example:"debug" doc:"New level, empty to reset"`
	}
}

// registerLogRoutes exposes the in-memory log ring buffer.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Newest entries from the in-memory log buffer, oldest first",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *LogListInput) (*models.LogListResponse, error) {
		entries := []models.LogEntry{}
		if buffer := logging.GetBuffer(); buffer != nil {
			for _, e := range buffer.Tail(input.Limit) {
				entries = append(entries, models.LogEntry{
					Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
					Level:      e.Level,
					Module:     e.Module,
					Message:    e.Message,
					Attributes: e.Attributes,
				})
			}
		}
		return &models.LogListResponse{
			Body: models.LogListData{Entries: entries, Count: len(entries)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logs/level",
		Summary:     "Set Module Log Level",
		Description: "Change a module's log level at runtime",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{400, 401},
	}, func(_ context.Context, input *LogLevelInput) (*models.LogLevelResponse, error) {
		if !logging.SetModuleLevel(input.Body.Module, input.Body.Level) {
			return nil, huma.Error400BadRequest("Invalid log level: " + input.Body.Level)
		}
		s.logger.Info("Log level changed", "target_module", input.Body.Module, "level", input.Body.Level)
		return &models.LogLevelResponse{
			Body: models.LogLevelData{Module: input.Body.Module, Level: input.Body.Level},
		}, nil
	})
}
