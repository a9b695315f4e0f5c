package notify

import (
	"go.uber.org/zap"

	"livecast/internal/core/ports"
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *zap.SugaredLogger
}

func NewLogNotifier(logger *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Info(title, message string, opts ...ports.NotifyOption) string {
	t := newToast(LevelInfo, title, message, opts...)
	n.logger.Infow("notification", "id", t.ID, "level", t.Level, "title", t.Title, "message", t.Message)
	return t.ID
}

func (n *LogNotifier) Success(title, message string, opts ...ports.NotifyOption) string {
	t := newToast(LevelSuccess, title, message, opts...)
	n.logger.Infow("notification", "id", t.ID, "level", t.Level, "title", t.Title, "message", t.Message)
	return t.ID
}

func (n *LogNotifier) Warning(title, message string, opts ...ports.NotifyOption) string {
	t := newToast(LevelWarning, title, message, opts...)
	n.logger.Warnw("notification", "id", t.ID, "level", t.Level, "title", t.Title, "message", t.Message)
	return t.ID
}

func (n *LogNotifier) Error(title, message string, opts ...ports.NotifyOption) string {
	t := newToast(LevelError, title, message, opts...)
	n.logger.Errorw("notification", "id", t.ID, "level", t.Level, "title", t.Title, "message", t.Message)
	return t.ID
}
