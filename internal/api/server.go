package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/kioskcam/internal/api/models"
	"github.com/smazurov/kioskcam/internal/camera"
	"github.com/smazurov/kioskcam/internal/events"
	"github.com/smazurov/kioskcam/internal/framestore"
	"github.com/smazurov/kioskcam/internal/led"
	"github.com/smazurov/kioskcam/internal/logging"
	"github.com/smazurov/kioskcam/internal/systemd"
	"github.com/smazurov/kioskcam/internal/version"
	"github.com/smazurov/kioskcam/ui"
)

// Camera is the capture engine as seen by HTTP handlers.
type Camera interface {
	Open(path string) error
	OpenDefault() error
	Close()
	StartCapturing() error
	StopCapturing()
	IsCapturing() bool
	Restart(ctx context.Context, pause time.Duration) error
	Status() camera.Status
	Frames() *framestore.Store
}

// ServiceManager controls the daemon's own systemd unit.
type ServiceManager interface {
	Unit() string
	Status(ctx context.Context) (systemd.UnitStatus, error)
	Restart(ctx context.Context) error
}

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string

	Camera       Camera
	EventBus     *events.Bus
	RestartPause time.Duration
	// RestartPauseFunc, when set, supplies the pause at request time so
	// reloaded configuration applies without rebuilding the server.
	RestartPauseFunc func() time.Duration
	JPEGQuality      int

	LEDController  led.Controller
	StatusLED      string
	SystemdManager ServiceManager

	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// Server serves the camera control API, frame endpoints and event streams.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

func apiConfig() huma.Config {
	config := huma.DefaultConfig("kioskcam API", version.String())
	config.Info.Description = "Control and preview API for the kiosk camera capture engine"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}
	return config
}

// NewServer creates the API server on a Go 1.22+ ServeMux.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()
	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	s := newServer(humago.New(mux, apiConfig()), mux, opts)

	s.api.UseMiddleware(NewCORSMiddleware(corsConfig))
	s.api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		s.api.UseMiddleware(s.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}
	mux.HandleFunc("GET /api/camera/preview", s.handlePreview)

	s.registerRoutes()

	if page, err := ui.Handler(); err == nil {
		mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api") {
				http.NotFound(w, r)
				return
			}
			page.ServeHTTP(w, r)
		})
	}
	return s
}

func newServer(api huma.API, mux *http.ServeMux, opts *Options) *Server {
	if opts.RestartPause <= 0 {
		opts.RestartPause = 2 * time.Second
	}
	if opts.JPEGQuality == 0 {
		opts.JPEGQuality = framestore.DefaultJPEGQuality
	}
	return &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting kioskcam API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the listener and all connections, including SSE and preview
// streams that would otherwise hold a graceful shutdown open.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		v := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   v.Version,
				GitCommit: v.GitCommit,
				BuildDate: v.BuildDate,
				BuildID:   v.BuildID,
				GoVersion: v.GoVersion,
				Compiler:  v.Compiler,
				Platform:  v.Platform,
				Modified:  v.Modified,
			},
		}, nil
	})

	s.registerDeviceRoutes()
	s.registerCameraRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
	s.registerLEDRoutes()
	s.registerSystemdRoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
