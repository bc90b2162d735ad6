package handlers

// ErrorResponse is the body of every JSON error answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Store    string `json:"store"`
	Sessions int    `json:"sessions"`
	Error    string `json:"error,omitempty"`
}
