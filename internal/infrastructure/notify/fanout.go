package notify

import "livecast/internal/core/ports"

// Fanout forwards every notification to all wrapped notifiers. The
// returned id comes from the first one.
type Fanout struct {
	targets []ports.Notifier
}

func NewFanout(targets ...ports.Notifier) *Fanout {
	return &Fanout{targets: targets}
}

func (f *Fanout) Info(title, message string, opts ...ports.NotifyOption) string {
	return f.each(func(n ports.Notifier) string { return n.Info(title, message, opts...) })
}

func (f *Fanout) Success(title, message string, opts ...ports.NotifyOption) string {
	return f.each(func(n ports.Notifier) string { return n.Success(title, message, opts...) })
}

func (f *Fanout) Warning(title, message string, opts ...ports.NotifyOption) string {
	return f.each(func(n ports.Notifier) string { return n.Warning(title, message, opts...) })
}

func (f *Fanout) Error(title, message string, opts ...ports.NotifyOption) string {
	return f.each(func(n ports.Notifier) string { return n.Error(title, message, opts...) })
}

func (f *Fanout) each(send func(ports.Notifier) string) string {
	var first string
	for i, n := range f.targets {
		id := send(n)
		if i == 0 {
			first = id
		}
	}
	return first
}
