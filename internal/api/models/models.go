package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go runtime version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
	Modified  bool   `json:"modified" doc:"Built from a tree with uncommitted changes"`
}

type VersionResponse struct {
	Body VersionData
}

// Log models
type LogEntry struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-27T10:30:00.123Z" doc:"Entry timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"camera" doc:"Originating module"`
	Message    string         `json:"message" example:"Capture started" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

type LogListData struct {
	Entries []LogEntry `json:"entries" doc:"Log entries, oldest first"`
	Count   int        `json:"count" example:"100" doc:"Number of entries returned"`
}

type LogListResponse struct {
	Body LogListData
}

type LogLevelData struct {
	Module string `json:"module" example:"camera" doc:"Module name"`
	Level  string `json:"level" example:"debug" doc:"Level applied, empty when reset to the global level"`
}

type LogLevelResponse struct {
	Body LogLevelData
}

// LED models
type LEDCapabilitiesData struct {
	AvailableTypes    []string `json:"available_types" doc:"LED names on this board"`
	AvailablePatterns []string `json:"available_patterns" doc:"Supported patterns"`
	StatusLED         string   `json:"status_led,omitempty" example:"act" doc:"LED that mirrors capture state"`
}

type LEDCapabilitiesResponse struct {
	Body LEDCapabilitiesData
}
