// Package http provides the HTTP API for blockmated.
package http

// RegisterRequest is the request body for POST /register_user.
type RegisterRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username,omitempty"`
}

// RegisterResponse is the response body for POST /register_user.
type RegisterResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

// SetGoalsRequest is the request body for POST /set_goals.
type SetGoalsRequest struct {
	TelegramID        int64    `json:"telegram_id"`
	Goals             []string `json:"goals"`
	AllowedUsecases   []string `json:"allowed_usecases"`
	ForbiddenUsecases []string `json:"forbidden_usecases"`
}

// ValidateRequest is the request body for POST /validate.
type ValidateRequest struct {
	TelegramID      int64  `json:"telegram_id"`
	RequestText     string `json:"request_text"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
	ChatID          int64  `json:"chat_id,omitempty"`
}

// ValidateResponse is the response body for POST /validate.
type ValidateResponse struct {
	Decision     string `json:"decision"`
	Message      string `json:"message"`
	Alternative  string `json:"alternative,omitempty"`
	ReminderTime *int   `json:"reminder_time,omitempty"`
}

// MessageResponse is a generic confirmation body.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
