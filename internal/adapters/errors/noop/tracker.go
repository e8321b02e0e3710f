package noop

import (
	"context"

	"hypertrader/pkg/errors"
)

var _ errors.Tracker = Tracker{}

// Tracker drops every report. cmd falls back to it when ERROR_TRACKING_ENABLED is
// false or the Sentry client cannot be built.
type Tracker struct{}

func New() Tracker { return Tracker{} }

func (Tracker) CaptureError(context.Context, error, map[string]string) error { return nil }

func (Tracker) CaptureMessage(context.Context, string, errors.Level, map[string]string) error {
	return nil
}

func (Tracker) SetAccount(context.Context, string) {}

func (Tracker) AddBreadcrumb(context.Context, string, string, errors.Level, map[string]interface{}) {}

func (Tracker) Flush(context.Context) error { return nil }
