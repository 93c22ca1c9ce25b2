package events

// Event type constants for kelindar/event.
const (
	TypeFrameAvailable uint32 = iota + 1
	TypeDeviceDisconnected
	TypeCaptureStateChanged
	TypeCaptureWarning
	TypeDeviceHotplug
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// FrameAvailableEvent is published after a frame has been decoded and stored.
// Rate-limited iterations that skip conversion do not publish it.
type FrameAvailableEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Sequence   uint64 `json:"sequence" example:"1042" doc:"Monotonic decoded frame number"`
	Width      int    `json:"width" example:"800" doc:"Frame width in pixels"`
	Height     int    `json:"height" example:"600" doc:"Frame height in pixels"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Decode timestamp"`
}

// Type returns the event type identifier for FrameAvailableEvent.
func (e FrameAvailableEvent) Type() uint32 { return TypeFrameAvailable }

// DeviceDisconnectedEvent is published once when the capture worker detects
// device loss and halts.
type DeviceDisconnectedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Reason     string `json:"reason" example:"VIDIOC_DQBUF: no such device" doc:"Error that triggered the disconnect"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDisconnectedEvent.
func (e DeviceDisconnectedEvent) Type() uint32 { return TypeDeviceDisconnected }

// CaptureStateChangedEvent reports a camera state transition.
type CaptureStateChangedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	State      string `json:"state" example:"streaming" enum:"closed,idle,streaming,disconnected" doc:"New state"`
	Previous   string `json:"previous" example:"idle" doc:"Previous state"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStateChangedEvent.
func (e CaptureStateChangedEvent) Type() uint32 { return TypeCaptureStateChanged }

// CaptureWarningEvent reports a non-fatal problem, such as a failed start
// after a planned restart.
type CaptureWarningEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Message    string `json:"message" example:"restart failed" doc:"Warning message"`
	Error      string `json:"error,omitempty" doc:"Underlying error"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureWarningEvent.
func (e CaptureWarningEvent) Type() uint32 { return TypeCaptureWarning }

// DeviceHotplugEvent reports a video4linux node being added or removed.
type DeviceHotplugEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Device node"`
	Action     string `json:"action" example:"remove" enum:"add,remove" doc:"Kernel action"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceHotplugEvent.
func (e DeviceHotplugEvent) Type() uint32 { return TypeDeviceHotplug }
