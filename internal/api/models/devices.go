package models

// DeviceInfo describes a video capture node.
type DeviceInfo struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Device node"`
	DeviceName string `json:"device_name" example:"USB Camera" doc:"Card name reported by the driver"`
	DeviceID   string `json:"device_id" example:"usb-046d_0825-video-index0" doc:"Stable identifier"`
	Driver     string `json:"driver" example:"uvcvideo" doc:"Kernel driver"`
	Caps       uint32 `json:"caps" example:"69206017" doc:"Effective V4L2 capability bits"`
}

type DeviceData struct {
	Devices []DeviceInfo `json:"devices" doc:"Capture devices"`
	Count   int          `json:"count" example:"1" doc:"Number of devices"`
}

type DeviceResponse struct {
	Body DeviceData
}

// FormatInfo describes one pixel format and the sizes it supports.
type FormatInfo struct {
	FourCC      string           `json:"fourcc" example:"YUYV" doc:"Pixel format code"`
	FormatName  string           `json:"format_name" example:"YUYV 4:2:2" doc:"Driver description"`
	Emulated    bool             `json:"emulated" example:"false" doc:"Converted in software by libv4l"`
	Capturable  bool             `json:"capturable" example:"true" doc:"Whether the capture engine can decode this format"`
	Resolutions []ResolutionInfo `json:"resolutions" doc:"Supported frame sizes"`
}

// ResolutionInfo is a frame size with its frame rates.
type ResolutionInfo struct {
	Width      uint32    `json:"width" example:"800" doc:"Width in pixels"`
	Height     uint32    `json:"height" example:"600" doc:"Height in pixels"`
	Framerates []float64 `json:"framerates,omitempty" doc:"Frame rates in frames per second"`
}

type DeviceFormatsData struct {
	DevicePath string       `json:"device_path" example:"/dev/video0" doc:"Device node"`
	Formats    []FormatInfo `json:"formats" doc:"Supported formats"`
}

type DeviceFormatsResponse struct {
	Body DeviceFormatsData
}
