package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/kioskcam/internal/api/models"
	"github.com/smazurov/kioskcam/internal/camera"
	"github.com/smazurov/kioskcam/internal/framestore"
)

// OpenCameraInput selects the device to open.
type OpenCameraInput struct {
	DevicePath string `query:"device" example:"/dev/video0" doc:"Device node; the configured device when empty"`
}

// RestartCameraInput overrides the planned-restart pause.
type RestartCameraInput struct {
	PauseMs int `query:"pause_ms" minimum:"0" maximum:"60000" example:"2000" doc:"Pause between stop and start; the configured pause when 0"`
}

// FrameInput selects the encoding of the latest frame.
type FrameInput struct {
	Format  string `query:"format" enum:"jpeg,png" default:"jpeg" doc:"Image encoding"`
	Quality int    `query:"quality" minimum:"0" maximum:"100" doc:"JPEG quality; the server default when 0"`
}

// FrameResponse carries the encoded image.
type FrameResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Sequence     string `header:"X-Frame-Sequence"`
	Width        string `header:"X-Frame-Width"`
	Height       string `header:"X-Frame-Height"`
	Body         []byte
}

// cameraError maps capture engine errors onto HTTP statuses.
func cameraError(msg string, err error) error {
	switch {
	case errors.Is(err, camera.ErrNotOpen):
		return huma.Error409Conflict(msg, err)
	case errors.Is(err, camera.ErrOpen):
		return huma.Error503ServiceUnavailable(msg, err)
	case errors.Is(err, camera.ErrNotAHardwareDevice),
		errors.Is(err, camera.ErrUnsupportedDevice),
		errors.Is(err, camera.ErrFormatNegotiation),
		errors.Is(err, camera.ErrInsufficientBuffers),
		errors.Is(err, camera.ErrMappingFailed):
		return huma.Error422UnprocessableEntity(msg, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}

func statusModel(st camera.Status, capturing bool) models.CameraStatus {
	m := models.CameraStatus{
		State:             string(st.State),
		Capturing:         capturing,
		DevicePath:        st.DevicePath,
		Driver:            st.Driver,
		Card:              st.Card,
		Width:             st.Width,
		Height:            st.Height,
		PixelFormat:       st.PixelFormat,
		BytesPerLine:      st.BytesPerLine,
		Field:             st.Field,
		FPS:               st.FPS,
		Buffers:           st.Buffers,
		FramesDecoded:     st.FramesDecoded,
		FramesSkipped:     st.FramesSkipped,
		ConsecutiveErrors: st.ConsecutiveErrors,
		Sequence:          st.Sequence,
	}
	if !st.LastFrame.IsZero() {
		m.LastFrame = st.LastFrame.Format(time.RFC3339Nano)
	}
	return m
}

func (s *Server) restartPause() time.Duration {
	if s.options.RestartPauseFunc != nil {
		if pause := s.options.RestartPauseFunc(); pause > 0 {
			return pause
		}
	}
	return s.options.RestartPause
}

func (s *Server) cameraStatus() *models.CameraStatusResponse {
	cam := s.options.Camera
	return &models.CameraStatusResponse{Body: statusModel(cam.Status(), cam.IsCapturing())}
}

func (s *Server) registerCameraRoutes() {
	if s.options.Camera == nil {
		s.logger.Debug("Camera not configured, skipping camera routes")
		return
	}
	cam := s.options.Camera

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera",
		Method:      http.MethodGet,
		Path:        "/api/camera",
		Summary:     "Camera Status",
		Description: "Capture state, negotiated format and frame counters",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.CameraStatusResponse, error) {
		return s.cameraStatus(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "open-camera",
		Method:      http.MethodPost,
		Path:        "/api/camera/open",
		Summary:     "Open Camera",
		Description: "Open a capture device and negotiate its format. Any open device is closed first.",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 500, 503},
	}, func(_ context.Context, input *OpenCameraInput) (*models.CameraStatusResponse, error) {
		var err error
		if input.DevicePath == "" {
			err = cam.OpenDefault()
		} else {
			err = cam.Open(input.DevicePath)
		}
		if err != nil {
			return nil, cameraError("Failed to open camera", err)
		}
		return s.cameraStatus(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "close-camera",
		Method:      http.MethodPost,
		Path:        "/api/camera/close",
		Summary:     "Close Camera",
		Description: "Stop capture if running and release the device",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.CameraStatusResponse, error) {
		cam.Close()
		return s.cameraStatus(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-camera",
		Method:      http.MethodPost,
		Path:        "/api/camera/start",
		Summary:     "Start Capture",
		Description: "Start the capture worker, reopening the last device if needed. Idempotent.",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422, 500, 503},
	}, func(_ context.Context, _ *struct{}) (*models.CameraStatusResponse, error) {
		if err := cam.StartCapturing(); err != nil {
			return nil, cameraError("Failed to start capture", err)
		}
		return s.cameraStatus(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-camera",
		Method:      http.MethodPost,
		Path:        "/api/camera/stop",
		Summary:     "Stop Capture",
		Description: "Stop the capture worker and wait for it to exit. Idempotent.",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.CameraStatusResponse, error) {
		cam.StopCapturing()
		return s.cameraStatus(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-camera",
		Method:      http.MethodPost,
		Path:        "/api/camera/restart",
		Summary:     "Restart Capture",
		Description: "Stop, pause and start capture to clear accumulated driver state",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422, 500, 503},
	}, func(ctx context.Context, input *RestartCameraInput) (*models.CameraStatusResponse, error) {
		pause := s.restartPause()
		if input.PauseMs > 0 {
			pause = time.Duration(input.PauseMs) * time.Millisecond
		}
		// A client hanging up mid-pause must not leave capture stopped.
		if err := cam.Restart(context.WithoutCancel(ctx), pause); err != nil {
			return nil, cameraError("Capture restart failed", err)
		}
		return s.cameraStatus(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-frame",
		Method:      http.MethodGet,
		Path:        "/api/camera/frame",
		Summary:     "Latest Frame",
		Description: "The most recently decoded frame. Frames are not cleared by stop or close.",
		Tags:        []string{"camera"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(_ context.Context, input *FrameInput) (*FrameResponse, error) {
		frame := cam.Frames().Current()
		if frame.Empty() {
			return nil, huma.Error404NotFound("No frame decoded yet")
		}
		quality := input.Quality
		if quality == 0 {
			quality = s.options.JPEGQuality
		}

		var buf bytes.Buffer
		if err := frame.Encode(&buf, input.Format, quality); err != nil {
			return nil, huma.Error500InternalServerError("Failed to encode frame", err)
		}
		return &FrameResponse{
			ContentType:  framestore.ContentType(input.Format),
			CacheControl: "no-store",
			Sequence:     strconv.FormatUint(frame.Sequence, 10),
			Width:        strconv.Itoa(frame.Width),
			Height:       strconv.Itoa(frame.Height),
			Body:         buf.Bytes(),
		}, nil
	})
}
