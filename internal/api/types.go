package api

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status              string `json:"status"`
	Service             string `json:"service"`
	Mode                string `json:"mode"`
	ActiveVoiceSessions int    `json:"activeVoiceSessions"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
