package nats

import (
	"encoding/json"
	"fmt"
)

// Subject prefixes for NATS topics.
const (
	SubjectCameraPrefix  = "kioskcam.camera"
	SubjectControlPrefix = "kioskcam.control"
)

// ActionRestart is the only control action understood by the daemon.
const ActionRestart = "restart"

// SubjectFrame returns the subject for frame-available notifications.
func SubjectFrame(name string) string {
	return fmt.Sprintf("%s.%s.frame", SubjectCameraPrefix, name)
}

// SubjectDisconnected returns the subject for device-loss notifications.
func SubjectDisconnected(name string) string {
	return fmt.Sprintf("%s.%s.disconnected", SubjectCameraPrefix, name)
}

// SubjectState returns the subject for capture state changes.
func SubjectState(name string) string {
	return fmt.Sprintf("%s.%s.state", SubjectCameraPrefix, name)
}

// SubjectWarning returns the subject for capture warnings.
func SubjectWarning(name string) string {
	return fmt.Sprintf("%s.%s.warning", SubjectCameraPrefix, name)
}

// SubjectControlRestart returns the subject for restart commands.
func SubjectControlRestart(name string) string {
	return fmt.Sprintf("%s.%s.restart", SubjectControlPrefix, name)
}

// FrameMessage announces a newly decoded frame. Pixels are not carried;
// consumers fetch them from the HTTP API.
type FrameMessage struct {
	Camera     string `json:"camera"`
	DevicePath string `json:"device_path"`
	Timestamp  string `json:"timestamp"`
	Sequence   uint64 `json:"sequence"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// DisconnectMessage reports device loss.
type DisconnectMessage struct {
	Camera     string `json:"camera"`
	DevicePath string `json:"device_path"`
	Timestamp  string `json:"timestamp"`
	Reason     string `json:"reason"`
}

// StateMessage reports a capture state transition.
type StateMessage struct {
	Camera     string `json:"camera"`
	DevicePath string `json:"device_path"`
	Timestamp  string `json:"timestamp"`
	State      string `json:"state"`
	Previous   string `json:"previous"`
}

// WarningMessage reports a non-fatal capture problem.
type WarningMessage struct {
	Camera     string `json:"camera"`
	DevicePath string `json:"device_path"`
	Timestamp  string `json:"timestamp"`
	Message    string `json:"message"`
	Error      string `json:"error,omitempty"`
}

// ControlMessage is a command sent to the daemon.
type ControlMessage struct {
	Action    string `json:"action"` // restart
	Camera    string `json:"camera,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Reason    string `json:"reason,omitempty"`
	// PauseMS overrides the configured stop/start pause when positive.
	PauseMS int `json:"pause_ms,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ControlMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalControl deserializes a ControlMessage from JSON.
func UnmarshalControl(data []byte) (ControlMessage, error) {
	var m ControlMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
