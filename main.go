package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/kioskcam/cmd"
	"github.com/smazurov/kioskcam/internal/api"
	"github.com/smazurov/kioskcam/internal/camera"
	"github.com/smazurov/kioskcam/internal/config"
	"github.com/smazurov/kioskcam/internal/events"
	"github.com/smazurov/kioskcam/internal/led"
	"github.com/smazurov/kioskcam/internal/logging"
	"github.com/smazurov/kioskcam/internal/metrics"
	"github.com/smazurov/kioskcam/internal/nats"
	"github.com/smazurov/kioskcam/internal/supervisor"
	"github.com/smazurov/kioskcam/internal/systemd"
	"github.com/spf13/cobra"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"kioskcam.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Camera settings
	CameraDevice           string `help:"Capture device" short:"d" default:"/dev/video0" toml:"camera.device" env:"CAMERA_DEVICE"`
	CameraWidth            int    `help:"Requested frame width" default:"800" toml:"camera.width" env:"CAMERA_WIDTH"`
	CameraHeight           int    `help:"Requested frame height" default:"600" toml:"camera.height" env:"CAMERA_HEIGHT"`
	CameraFPS              int    `help:"Frame rate hint, negative to leave the driver default" default:"30" toml:"camera.fps" env:"CAMERA_FPS"`
	CameraBuffers          int    `help:"Driver buffers to request" default:"4" toml:"camera.buffers" env:"CAMERA_BUFFERS"`
	CameraPollTimeout      string `help:"Readiness wait timeout" default:"1s" toml:"camera.poll_timeout" env:"CAMERA_POLL_TIMEOUT"`
	CameraMinFrameInterval string `help:"Minimum time between decoded frames, negative to disable" default:"33ms" toml:"camera.min_frame_interval" env:"CAMERA_MIN_FRAME_INTERVAL"`
	CameraConvertWorkers   int    `help:"Conversion goroutines, 0 for GOMAXPROCS" default:"0" toml:"camera.convert_workers" env:"CAMERA_CONVERT_WORKERS"`
	CameraJPEGQuality      int    `help:"JPEG quality for frame and preview endpoints" default:"85" toml:"camera.jpeg_quality" env:"CAMERA_JPEG_QUALITY"`

	// Supervisor settings
	SupervisorRestartInterval string `help:"Planned restart interval, 0 to disable" default:"0" toml:"supervisor.restart_interval" env:"SUPERVISOR_RESTART_INTERVAL"`
	SupervisorRestartPause    string `help:"Pause between stop and start on planned restart" default:"2s" toml:"supervisor.restart_pause" env:"SUPERVISOR_RESTART_PAUSE"`
	SupervisorReopenDelay     string `help:"First retry delay after a failure or disconnect" default:"1s" toml:"supervisor.reopen_delay" env:"SUPERVISOR_REOPEN_DELAY"`
	SupervisorHotplug         bool   `help:"Watch kernel uevents for device add/remove" default:"true" toml:"supervisor.hotplug" env:"SUPERVISOR_HOTPLUG"`

	// Auth settings
	AuthUsername string `help:"Basic auth username, empty disables auth" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Features settings
	FeaturesLEDControl bool   `help:"Mirror capture state on the board status LED" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`
	FeaturesMetrics    bool   `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"features.metrics_enabled" env:"FEATURES_METRICS"`
	ServiceUnit        string `help:"systemd unit controlled by the service API" default:"kioskcam.service" toml:"service.unit" env:"SERVICE_UNIT"`

	// NATS settings
	NATSURL      string `help:"NATS server for camera notifications, empty disables" default:"" toml:"nats.url" env:"NATS_URL"`
	NATSEmbedded bool   `help:"Run an embedded NATS server" default:"false" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NATSPort     int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`
	NATSCamera   string `help:"Camera name used in NATS subjects" default:"kiosk" toml:"nats.camera" env:"NATS_CAMERA"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera     string `help:"Camera logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP       string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingLED        string `help:"LED logging level" default:"info" toml:"logging.led" env:"LOGGING_LED"`
	LoggingNATS       string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
}

func (o *Options) moduleLevels() map[string]string {
	return map[string]string{
		"camera":     o.LoggingCamera,
		"supervisor": o.LoggingSupervisor,
		"api":        o.LoggingAPI,
		"http":       o.LoggingHTTP,
		"led":        o.LoggingLED,
		"nats":       o.LoggingNATS,
	}
}

// parseDuration falls back when the value is empty or malformed.
func parseDuration(value string, fallback time.Duration, logger *slog.Logger) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("Invalid duration, using default", "value", value, "default", fallback, "error", err)
		return fallback
	}
	return d
}

func (o *Options) cameraOptions(logger *slog.Logger) camera.Options {
	defaults := camera.DefaultOptions()
	return camera.Options{
		Device:           o.CameraDevice,
		Width:            o.CameraWidth,
		Height:           o.CameraHeight,
		FPS:              o.CameraFPS,
		BufferCount:      o.CameraBuffers,
		PollTimeout:      parseDuration(o.CameraPollTimeout, defaults.PollTimeout, logger),
		MinFrameInterval: parseDuration(o.CameraMinFrameInterval, defaults.MinFrameInterval, logger),
		ConvertWorkers:   o.CameraConvertWorkers,
	}
}

func (o *Options) supervisorOptions(logger *slog.Logger) supervisor.Options {
	return supervisor.Options{
		RestartInterval: parseDuration(o.SupervisorRestartInterval, 0, logger),
		RestartPause:    parseDuration(o.SupervisorRestartPause, 2*time.Second, logger),
		ReopenDelay:     parseDuration(o.SupervisorReopenDelay, time.Second, logger),
		Hotplug:         o.SupervisorHotplug,
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		root := cli.Root()
		if loadErr := config.LoadConfig(opts, root); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:   opts.LoggingLevel,
			Format:  opts.LoggingFormat,
			Modules: opts.moduleLevels(),
		})
		logger := logging.GetLogger("main")

		eventBus := events.New()
		cam := camera.New(opts.cameraOptions(logger), eventBus, logging.GetLogger("camera"))
		sup := supervisor.New(cam, eventBus, opts.supervisorOptions(logger), systemd.Notifier{}, logging.GetLogger("supervisor"))

		var ledManager *led.Manager
		var ledController led.Controller
		var statusLED string
		if opts.FeaturesLEDControl {
			ledLogger := logging.GetLogger("led")
			ledController, statusLED = led.New(ledLogger)
			ledManager = led.NewManager(ledController, statusLED, eventBus, ledLogger)
		}

		apiOpts := &api.Options{
			AuthUsername:     opts.AuthUsername,
			AuthPassword:     opts.AuthPassword,
			Camera:           cam,
			EventBus:         eventBus,
			RestartPause:     sup.RestartPause(),
			RestartPauseFunc: sup.RestartPause,
			JPEGQuality:      opts.CameraJPEGQuality,
			LEDController:    ledController,
			StatusLED:        statusLED,
		}
		if opts.FeaturesMetrics {
			apiOpts.PrometheusHandler = metrics.HTTPHandler()
		}

		ctx, cancel := context.WithCancel(context.Background())
		svcManager, svcErr := systemd.NewManager(ctx, opts.ServiceUnit, os.Getuid() != 0)
		if svcErr != nil {
			logger.Info("systemd D-Bus not available, service routes disabled", "error", svcErr)
		} else {
			apiOpts.SystemdManager = svcManager
		}

		server := api.NewServer(apiOpts)

		var natsServer *nats.Server
		var publisher *nats.Publisher
		natsURL := opts.NATSURL
		if opts.NATSEmbedded {
			natsServer = nats.NewServer(nats.ServerOptions{Port: opts.NATSPort, Logger: logging.GetLogger("nats")})
			if natsURL == "" {
				natsURL = natsServer.ClientURL()
			}
		}
		if natsURL != "" {
			publisher = nats.NewPublisher(natsURL, opts.NATSCamera, eventBus, logging.GetLogger("nats"))
			publisher.OnRestart(func(m nats.ControlMessage) {
				pause := sup.RestartPause()
				if m.PauseMS > 0 {
					pause = time.Duration(m.PauseMS) * time.Millisecond
				}
				if err := cam.Restart(ctx, pause); err != nil {
					logger.Warn("Remote restart failed", "reason", m.Reason, "error", err)
				}
			})
		}

		watcher := config.NewConfigWatcher(opts.Config, func(path string) (Options, error) {
			reloaded := *opts
			reloaded.Config = path
			err := config.LoadConfig(&reloaded, root)
			return reloaded, err
		}, logging.GetLogger("config"), config.WithErrorHandler[Options](func(err error) {
			logger.Warn("Config reload failed", "error", err)
		}))
		watcher.OnReload(func(reloaded Options) {
			for module, level := range reloaded.moduleLevels() {
				logging.SetModuleLevel(module, level)
			}
			sup.Reconfigure(reloaded.cameraOptions(logger))
			sup.SetOptions(reloaded.supervisorOptions(logger))
		})

		supDone := make(chan struct{})

		hooks.OnStart(func() {
			if ledManager != nil {
				ledManager.Start()
			}
			if natsServer != nil {
				if err := natsServer.Start(); err != nil {
					logger.Error("Failed to start embedded NATS server", "error", err)
				}
			}
			if publisher != nil {
				if err := publisher.Start(); err != nil {
					logger.Error("Failed to start NATS publisher", "url", natsURL, "error", err)
				}
			}
			if err := watcher.Start(ctx); err != nil {
				logger.Warn("Config watcher not started", "path", opts.Config, "error", err)
			}
			go func() {
				defer close(supDone)
				if err := sup.Run(ctx); err != nil {
					logger.Error("Supervisor exited", "error", err)
				}
			}()

			logger.Info("Starting HTTP server", "port", opts.Port)
			if err := server.Start(opts.Port); err != nil {
				logger.Error("Failed to start HTTP server", "error", err)
				cancel()
				<-supDone
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if err := server.Stop(); err != nil {
				logger.Error("Error stopping HTTP server", "error", err)
			}
			if err := watcher.Stop(); err != nil {
				logger.Warn("Error stopping config watcher", "error", err)
			}

			// The supervisor closes the camera on the way out.
			cancel()
			select {
			case <-supDone:
			case <-time.After(5 * time.Second):
				logger.Warn("Supervisor did not stop in time")
			}

			if publisher != nil {
				publisher.Stop()
			}
			if natsServer != nil {
				natsServer.Stop()
			}
			if ledManager != nil {
				ledManager.Stop()
			}
			svcManager.Close()
			if err := eventBus.Close(); err != nil {
				logger.Debug("Event bus close", "error", err)
			}
		})
	})

	root := cli.Root()
	root.Use = "kioskcam"
	root.Short = "Kiosk camera capture daemon"
	root.AddCommand(cmd.CreateDevicesCmd(), cmd.CreateSnapshotCmd(), cmd.CreateRestartCmd())
	root.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}

	cli.Run()
}
