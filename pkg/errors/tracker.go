package errors

import "context"

// Tracker receives the failures an agent session cannot recover from, plus the
// trail of model and tool steps that led to them. Implementations are Sentry and a
// no-op used when tracking is disabled.
type Tracker interface {
	// CaptureError reports err with its Kind and caller tags. Logger.Errorw forwards here.
	CaptureError(ctx context.Context, err error, tags map[string]string) error

	// CaptureMessage reports a failed session outcome, tagged with session_id and error_kind
	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	// SetAccount tags every later report with the trading account the process acts for
	SetAccount(ctx context.Context, accountID string)

	// AddBreadcrumb records one loop step: category "model" for replies, "tool" for calls
	AddBreadcrumb(ctx context.Context, message string, category string, level Level, data map[string]interface{})

	// Flush blocks until queued reports are delivered or ctx ends
	Flush(ctx context.Context) error
}

// Level is the severity attached to a report or breadcrumb
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

func (l Level) String() string {
	return string(l)
}
