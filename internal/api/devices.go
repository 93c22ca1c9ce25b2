package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/kioskcam/internal/api/models"
	"github.com/smazurov/kioskcam/pkg/linuxav/v4l2"
)

// DeviceFormatsInput selects the device to enumerate.
type DeviceFormatsInput struct {
	DevicePath string `query:"device" required:"true" example:"/dev/video0" doc:"Device node"`
}

// deviceFinder is swapped in tests.
var deviceFinder = v4l2.FindDevices

// DescribeFormats enumerates formats, frame sizes and frame rates of a device.
// Enumeration failures below the format level leave the lists empty.
func DescribeFormats(devicePath string) ([]models.FormatInfo, error) {
	formats, err := v4l2.GetFormats(devicePath)
	if err != nil {
		return nil, err
	}

	result := make([]models.FormatInfo, 0, len(formats))
	for _, f := range formats {
		info := models.FormatInfo{
			FourCC:      v4l2.FormatFourCC(f.PixelFormat),
			FormatName:  f.FormatName,
			Emulated:    f.Emulated,
			Capturable:  f.PixelFormat == v4l2.PixFmtYUYV,
			Resolutions: []models.ResolutionInfo{},
		}
		sizes, err := v4l2.GetResolutions(devicePath, f.PixelFormat)
		if err != nil {
			result = append(result, info)
			continue
		}
		for _, size := range sizes {
			res := models.ResolutionInfo{Width: size.Width, Height: size.Height}
			if rates, err := v4l2.GetFramerates(devicePath, f.PixelFormat, size.Width, size.Height); err == nil {
				for _, r := range rates {
					res.Framerates = append(res.Framerates, r.FPS())
				}
			}
			info.Resolutions = append(info.Resolutions, res)
		}
		result = append(result, info)
	}
	return result, nil
}

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List video capture devices",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.DeviceResponse, error) {
		found, err := deviceFinder()
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to enumerate devices", err)
		}

		devices := make([]models.DeviceInfo, 0, len(found))
		for _, d := range found {
			devices = append(devices, models.DeviceInfo{
				DevicePath: d.DevicePath,
				DeviceName: d.DeviceName,
				DeviceID:   d.DeviceID,
				Driver:     d.Driver,
				Caps:       d.Caps,
			})
		}
		return &models.DeviceResponse{
			Body: models.DeviceData{Devices: devices, Count: len(devices)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-device-formats",
		Method:      http.MethodGet,
		Path:        "/api/devices/formats",
		Summary:     "Device Formats",
		Description: "Pixel formats, frame sizes and frame rates of a device",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *DeviceFormatsInput) (*models.DeviceFormatsResponse, error) {
		formats, err := DescribeFormats(input.DevicePath)
		if err != nil {
			return nil, huma.Error404NotFound("Failed to query device formats", err)
		}
		return &models.DeviceFormatsResponse{
			Body: models.DeviceFormatsData{DevicePath: input.DevicePath, Formats: formats},
		}, nil
	})
}
