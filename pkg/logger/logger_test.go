package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hypertrader/pkg/errors"
)

type capturingTracker struct {
	errs []error
	tags []map[string]string
}

func (c *capturingTracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	c.errs = append(c.errs, err)
	c.tags = append(c.tags, tags)
	return nil
}

func (c *capturingTracker) CaptureMessage(context.Context, string, errors.Level, map[string]string) error {
	return nil
}
func (c *capturingTracker) SetAccount(context.Context, string) {}
func (c *capturingTracker) AddBreadcrumb(context.Context, string, string, errors.Level, map[string]interface{}) {
}
func (c *capturingTracker) Flush(context.Context) error { return nil }

func TestErrorw_ForwardsToTracker(t *testing.T) {
	tracker := &capturingTracker{}
	l := &Logger{SugaredLogger: zap.NewNop().Sugar(), errorTracker: tracker}

	cause := errors.Wrap(errors.ErrModelBackend, "empty reply")
	l.With("session_id", "s1").Errorw("Failed to record tool result", "tool", "get_market_data", "error", cause, "step", 3)

	require.Len(t, tracker.errs, 1)
	assert.True(t, errors.Is(tracker.errs[0], errors.ErrModelBackend))
	assert.Contains(t, tracker.errs[0].Error(), "Failed to record tool result")
	assert.Equal(t, "get_market_data", tracker.tags[0]["tool"])
	assert.Equal(t, "ModelBackendError", tracker.tags[0]["kind"])
	assert.NotContains(t, tracker.tags[0], "step")
}

func TestErrorw_WithoutTracker(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() { l.Errorw("boom", "error", errors.New("x")) })
}
