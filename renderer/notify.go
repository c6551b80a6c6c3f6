package renderer

import "github.com/achilleasa/mtsblend/log"

type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	}
	return "INFO"
}

// A Notifier surfaces single-line messages to the user.
type Notifier interface {
	Notify(severity Severity, msg string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(severity Severity, msg string)

func (f NotifierFunc) Notify(severity Severity, msg string) {
	f(severity, msg)
}

// LogNotifier writes messages to a logger.
type LogNotifier struct {
	Logger log.Logger
}

func (n LogNotifier) Notify(severity Severity, msg string) {
	switch severity {
	case SeverityError:
		n.Logger.Error(msg)
	case SeverityWarning:
		n.Logger.Warning(msg)
	default:
		n.Logger.Notice(msg)
	}
}
