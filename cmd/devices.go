package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/smazurov/kioskcam/internal/api"
	"github.com/smazurov/kioskcam/internal/api/models"
	"github.com/smazurov/kioskcam/pkg/linuxav/v4l2"
	"github.com/spf13/cobra"
)

type deviceReport struct {
	models.DeviceInfo
	Formats []models.FormatInfo `json:"formats,omitempty"`
}

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var withFormats, asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List video capture devices",
		Long: `Lists V4L2 capture devices. With --formats, also enumerates each device's pixel formats, ` +
			`frame sizes and frame rates. Only YUYV can be decoded by the capture engine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			found, err := v4l2.FindDevices()
			if err != nil {
				return err
			}

			reports := make([]deviceReport, 0, len(found))
			for _, d := range found {
				r := deviceReport{DeviceInfo: models.DeviceInfo{
					DevicePath: d.DevicePath,
					DeviceName: d.DeviceName,
					DeviceID:   d.DeviceID,
					Driver:     d.Driver,
					Caps:       d.Caps,
				}}
				if withFormats {
					r.Formats, err = api.DescribeFormats(d.DevicePath)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", d.DevicePath, err)
					}
				}
				reports = append(reports, r)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			return printDevices(cmd.OutOrStdout(), reports)
		},
	}

	cmd.Flags().BoolVarP(&withFormats, "formats", "f", false, "Enumerate formats, sizes and frame rates")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printDevices(out io.Writer, reports []deviceReport) error {
	if len(reports) == 0 {
		_, err := fmt.Fprintln(out, "No video capture devices found")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tNAME\tDRIVER\tID")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.DevicePath, r.DeviceName, r.Driver, r.DeviceID)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, r := range reports {
		if len(r.Formats) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s:\n", r.DevicePath)
		for _, f := range r.Formats {
			marker := ""
			if f.Capturable {
				marker = " *"
			}
			if f.Emulated {
				marker += " (emulated)"
			}
			fmt.Fprintf(out, "  %s %s%s\n", f.FourCC, f.FormatName, marker)
			for _, res := range f.Resolutions {
				fmt.Fprintf(out, "    %dx%d %s\n", res.Width, res.Height, formatRates(res.Framerates))
			}
		}
	}
	return nil
}

func formatRates(rates []float64) string {
	if len(rates) == 0 {
		return ""
	}
	parts := make([]string, len(rates))
	for i, r := range rates {
		parts[i] = fmt.Sprintf("%g", r)
	}
	return "@ " + strings.Join(parts, ", ") + " fps"
}
