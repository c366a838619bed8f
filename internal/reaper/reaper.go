// Package reaper releases browser resources after a generation call.
package reaper

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"pdfgen/internal/domain"
	"pdfgen/internal/infra/logging"
)

const (
	// DefaultAttempts is the number of kill attempts made by a zero Reaper.
	DefaultAttempts = 5
	// DefaultDelay is the pause before each kill signal.
	DefaultDelay = 200 * time.Millisecond
)

// CloseAllPages closes every open page of b concurrently and returns the first close error.
// All closes are issued even when one of them fails.
func CloseAllPages(ctx context.Context, b domain.Browser) error {
	var g errgroup.Group
	for _, p := range b.Pages() {
		g.Go(func() error {
			return p.Close(ctx)
		})
	}
	return g.Wait()
}

// Reaper force-kills browser processes with bounded retries.
type Reaper struct {
	Attempts int
	Delay    time.Duration
}

// New returns a Reaper; non-positive values fall back to the defaults.
func New(attempts int, delay time.Duration) *Reaper {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Reaper{Attempts: attempts, Delay: delay}
}

// KillProcess sends SIGKILL to proc until it is observed dead or the attempts run out.
// Nothing is sent when proc is nil, has no pid or is already killed. It never fails;
// an exhausted loop is only logged.
func (r *Reaper) KillProcess(proc domain.Process) {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	for i := 0; i < attempts; i++ {
		if done(proc) {
			return
		}
		if r.Delay > 0 {
			time.Sleep(r.Delay)
		}
		if done(proc) {
			return
		}

		logging.Info("Killing browser process", "pid", proc.Pid(), "retries_left", attempts-i)
		if err := proc.Kill(); err != nil {
			logging.Warn("Browser kill failed", "pid", proc.Pid(), "attempt", i+1, "error", err)
			continue
		}
		if proc.Killed() {
			return
		}
	}

	if !done(proc) {
		logging.Error("Browser process survived kill attempts", "pid", proc.Pid(), "attempts", attempts)
	}
}

func done(proc domain.Process) bool {
	return proc == nil || proc.Pid() <= 0 || proc.Killed()
}
