package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/kioskcam/internal/api/models"
	"github.com/smazurov/kioskcam/internal/systemd"
)

func (s *Server) registerSystemdRoutes() {
	mgr := s.options.SystemdManager
	if mgr == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-service-status",
		Method:      http.MethodGet,
		Path:        "/api/system/service",
		Summary:     "Service Status",
		Description: "systemd state of the kioskcam unit",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 500, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.SystemdServiceStatusResponse, error) {
		status, err := mgr.Status(ctx)
		if errors.Is(err, systemd.ErrNoManager) {
			return nil, huma.Error503ServiceUnavailable("systemd is not available", err)
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get service status", err)
		}
		return &models.SystemdServiceStatusResponse{
			Body: models.SystemdServiceStatus{
				Service:     status.Unit,
				ActiveState: status.ActiveState,
				SubState:    status.SubState,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-service",
		Method:      http.MethodPost,
		Path:        "/api/system/service/restart",
		Summary:     "Restart Service",
		Description: "Ask systemd to restart the kioskcam unit. The response is sent before the process exits.",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401, 500, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.SystemdServiceActionResponse, error) {
		err := mgr.Restart(ctx)
		if errors.Is(err, systemd.ErrNoManager) {
			return nil, huma.Error503ServiceUnavailable("systemd is not available", err)
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to restart service", err)
		}
		return &models.SystemdServiceActionResponse{
			Body: models.SystemdServiceAction{
				Service: mgr.Unit(),
				Action:  "restart",
				Success: true,
			},
		}, nil
	})
}
