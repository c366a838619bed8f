package chrome

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// IsSessionInterrupted reports whether err means the browser or tab went away underneath the
// current action, as opposed to the action itself failing.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, chromedp.ErrInvalidContext) || errors.Is(err, chromedp.ErrChannelClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"target closed", "session closed", "websocket: close", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// callerErr prefers the caller's context error, so a cancelled or expired request is
// reported as such rather than as whatever chromedp returned while unwinding.
func callerErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return err
}
