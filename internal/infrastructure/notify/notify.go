// Package notify implements the Notifier port: notifications go to
// the structured log and, when a hub is attached, to websocket
// subscribers as toasts.
package notify

import (
	"github.com/google/uuid"

	"livecast/internal/core/ports"
)

// Toast levels.
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Default display durations per level, in milliseconds.
const (
	DurationSuccessMs = 3000
	DurationInfoMs    = 4000
	DurationWarningMs = 5000
	DurationErrorMs   = 6000
)

// MaxVisible caps how many toasts are retained for late subscribers.
const MaxVisible = 5

// Toast is one user-facing notification.
type Toast struct {
	ID         string `json:"id"`
	Level      string `json:"level"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	DurationMs int    `json:"durationMs"`
}

func defaultDuration(level string) int {
	switch level {
	case LevelSuccess:
		return DurationSuccessMs
	case LevelWarning:
		return DurationWarningMs
	case LevelError:
		return DurationErrorMs
	default:
		return DurationInfoMs
	}
}

func newToast(level, title, message string, opts ...ports.NotifyOption) Toast {
	params := ports.NotifyParams{}
	for _, opt := range opts {
		opt(&params)
	}
	duration := params.DurationMs
	if duration <= 0 {
		duration = defaultDuration(level)
	}
	return Toast{
		ID:         uuid.NewString(),
		Level:      level,
		Title:      title,
		Message:    message,
		DurationMs: duration,
	}
}
