package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/kioskcam/internal/camera"
	"github.com/smazurov/kioskcam/internal/events"
	"github.com/smazurov/kioskcam/internal/framestore"
	"github.com/smazurov/kioskcam/internal/logging"
	"github.com/spf13/cobra"
)

// SnapshotOptions configures a single-frame capture.
type SnapshotOptions struct {
	Device  string
	Out     string
	Width   int
	Height  int
	Skip    int
	Quality int
	Timeout time.Duration
	Verbose bool
}

// CreateSnapshotCmd creates the snapshot command.
func CreateSnapshotCmd() *cobra.Command {
	opts := SnapshotOptions{}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture one frame to a file",
		Long: `Opens the device, starts capture, waits for a decoded frame and writes it as JPEG or PNG ` +
			`(chosen by the --out extension). The daemon must not hold the device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			logging.Initialize(logging.Config{Level: level, Format: "text"})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			data, frame, err := Snapshot(ctx, opts, camera.OpenHardware)
			if err != nil {
				return err
			}
			if err := os.WriteFile(opts.Out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %dx%d frame %d to %s\n", frame.Width, frame.Height, frame.Sequence, opts.Out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Device, "device", "d", camera.DefaultDevice, "Capture device")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "frame.jpg", "Output file (.jpg or .png)")
	cmd.Flags().IntVar(&opts.Width, "width", 800, "Requested width")
	cmd.Flags().IntVar(&opts.Height, "height", 600, "Requested height")
	cmd.Flags().IntVar(&opts.Skip, "skip", 5, "Frames to discard while exposure settles")
	cmd.Flags().IntVarP(&opts.Quality, "quality", "q", framestore.DefaultJPEGQuality, "JPEG quality (1-100)")
	cmd.Flags().DurationVarP(&opts.Timeout, "timeout", "t", 10*time.Second, "Maximum wait for a frame")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Debug logging")
	return cmd
}

// Snapshot captures one frame with the given opener and returns it encoded
// for opts.Out along with the decoded frame.
func Snapshot(ctx context.Context, opts SnapshotOptions, open camera.Opener) ([]byte, *framestore.Frame, error) {
	bus := events.New()
	defer bus.Close()

	frames := make(chan events.FrameAvailableEvent, 1)
	disconnected := make(chan events.DeviceDisconnectedEvent, 1)
	unsubFrames := bus.Subscribe(func(e events.FrameAvailableEvent) {
		select {
		case frames <- e:
		default:
		}
	})
	defer unsubFrames()
	unsubDisconnect := bus.Subscribe(func(e events.DeviceDisconnectedEvent) {
		select {
		case disconnected <- e:
		default:
		}
	})
	defer unsubDisconnect()

	camOpts := camera.DefaultOptions()
	camOpts.Device = opts.Device
	camOpts.Width = opts.Width
	camOpts.Height = opts.Height
	cam := camera.New(camOpts, bus, logging.GetLogger("camera"), camera.WithOpener(open))
	defer cam.Close()

	if err := cam.Open(opts.Device); err != nil {
		return nil, nil, err
	}
	if err := cam.StartCapturing(); err != nil {
		return nil, nil, err
	}

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	var seen int
	for seen <= opts.Skip {
		select {
		case <-frames:
			seen++
		case e := <-disconnected:
			return nil, nil, fmt.Errorf("%w: %s", camera.ErrDisconnected, e.Reason)
		case <-timer.C:
			return nil, nil, fmt.Errorf("no frame from %s within %s", opts.Device, opts.Timeout)
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	cam.StopCapturing()

	frame := cam.CurrentFrame()
	var buf bytes.Buffer
	if err := frame.Encode(&buf, framestore.EncodingForPath(opts.Out), opts.Quality); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), frame, nil
}
