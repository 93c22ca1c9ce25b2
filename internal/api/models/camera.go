package models

// CameraStatus is the capture engine's state, negotiated format and counters.
type CameraStatus struct {
	State      string `json:"state" example:"streaming" enum:"closed,idle,streaming,disconnected" doc:"Capture state"`
	Capturing  bool   `json:"capturing" example:"true" doc:"Whether the capture worker is running"`
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Current or last device path"`
	Driver     string `json:"driver,omitempty" example:"uvcvideo" doc:"Kernel driver"`
	Card       string `json:"card,omitempty" example:"USB Camera" doc:"Card name"`

	Width        int     `json:"width" example:"800" doc:"Negotiated width"`
	Height       int     `json:"height" example:"600" doc:"Negotiated height"`
	PixelFormat  string  `json:"pixel_format,omitempty" example:"YUYV" doc:"Negotiated pixel format"`
	BytesPerLine int     `json:"bytes_per_line" example:"1600" doc:"Source stride"`
	Field        string  `json:"field,omitempty" example:"progressive" doc:"Field order"`
	FPS          float64 `json:"fps" example:"30" doc:"Negotiated frame rate, 0 when unknown"`
	Buffers      int     `json:"buffers" example:"4" doc:"Mapped driver buffers"`

	FramesDecoded     uint64 `json:"frames_decoded" example:"1042" doc:"Frames converted since start"`
	FramesSkipped     uint64 `json:"frames_skipped" example:"12" doc:"Frames dropped by rate limit or driver errors"`
	ConsecutiveErrors int    `json:"consecutive_errors" example:"0" doc:"Current run of failed waits"`
	Sequence          uint64 `json:"sequence" example:"1042" doc:"Sequence of the latest stored frame"`
	LastFrame         string `json:"last_frame,omitempty" example:"2025-01-27T10:30:00Z" doc:"Time of the latest decoded frame"`
}

type CameraStatusResponse struct {
	Body CameraStatus
}
