package models

// SystemdServiceStatus contains the status information for the service unit.
type SystemdServiceStatus struct {
	Service     string `json:"service" example:"kioskcam.service" doc:"Unit name"`
	ActiveState string `json:"active_state" example:"active" doc:"Unit active state (active, inactive, failed, etc.)"`
	SubState    string `json:"sub_state" example:"running" doc:"Unit sub-state"`
}

// SystemdServiceStatusResponse wraps SystemdServiceStatus for API responses.
type SystemdServiceStatusResponse struct {
	Body SystemdServiceStatus
}

// SystemdServiceAction contains the result of a service action.
type SystemdServiceAction struct {
	Service string `json:"service" example:"kioskcam.service" doc:"Unit name"`
	Action  string `json:"action" example:"restart" doc:"Action performed"`
	Success bool   `json:"success" example:"true" doc:"Whether the action was queued"`
}

// SystemdServiceActionResponse wraps SystemdServiceAction for API responses.
type SystemdServiceActionResponse struct {
	Body SystemdServiceAction
}
