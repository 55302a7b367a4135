package optimistic

import "github.com/rs/zerolog"

type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// Notification is a transient, user-facing message about a mutation.
type Notification struct {
	Level   Level
	Message string
	Err     error
}

type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// LogNotifier writes notifications to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(notification Notification) {
	var event *zerolog.Event
	switch notification.Level {
	case LevelError:
		event = n.Logger.Error()
	case LevelWarning:
		event = n.Logger.Warn()
	default:
		event = n.Logger.Info()
	}
	event.
		Err(notification.Err).
		Msg(notification.Message)
}
