package monitoring

import "livecast/internal/core/ports"

// countingNotifier forwards notifications and counts them by level.
type countingNotifier struct {
	next      ports.Notifier
	collector *Collector
}

// CountNotifications wraps next so every notification increments the
// per-level counter.
func CountNotifications(collector *Collector, next ports.Notifier) ports.Notifier {
	return &countingNotifier{next: next, collector: collector}
}

func (n *countingNotifier) Info(title, message string, opts ...ports.NotifyOption) string {
	n.collector.CountNotification("info")
	return n.next.Info(title, message, opts...)
}

func (n *countingNotifier) Success(title, message string, opts ...ports.NotifyOption) string {
	n.collector.CountNotification("success")
	return n.next.Success(title, message, opts...)
}

func (n *countingNotifier) Warning(title, message string, opts ...ports.NotifyOption) string {
	n.collector.CountNotification("warning")
	return n.next.Warning(title, message, opts...)
}

func (n *countingNotifier) Error(title, message string, opts ...ports.NotifyOption) string {
	n.collector.CountNotification("error")
	return n.next.Error(title, message, opts...)
}
