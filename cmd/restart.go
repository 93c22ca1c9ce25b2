package cmd

import (
	"fmt"
	"time"

	"github.com/smazurov/kioskcam/internal/logging"
	"github.com/smazurov/kioskcam/internal/nats"
	"github.com/spf13/cobra"
)

// CreateRestartCmd creates the restart command.
func CreateRestartCmd() *cobra.Command {
	var (
		url    string
		name   string
		reason string
		pause  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Ask a running daemon to restart capture",
		Long: `Publishes a restart command on NATS. The daemon stops capture, waits for the pause ` +
			`and starts again without closing the device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			ctrl, err := nats.NewControlPublisher(url, logging.GetLogger("nats"))
			if err != nil {
				return fmt.Errorf("connect to %s: %w", url, err)
			}
			defer ctrl.Close()

			if err := ctrl.Restart(name, reason, pause); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restart sent to %s\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "nats-url", "nats://127.0.0.1:4222", "NATS server URL")
	cmd.Flags().StringVarP(&name, "camera", "n", "kiosk", "Camera name configured on the daemon")
	cmd.Flags().StringVar(&reason, "reason", "manual", "Reason recorded in the daemon log")
	cmd.Flags().DurationVar(&pause, "pause", 0, "Stop/start pause, 0 for the daemon default")
	return cmd
}
