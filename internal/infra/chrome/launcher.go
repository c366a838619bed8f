// Package chrome drives headless Chrome through chromedp. Every Launch starts a separate
// browser process with its own temporary profile; nothing is pooled or shared.
package chrome

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"pdfgen/internal/domain"
	"pdfgen/internal/infra/logging"
)

const (
	// DefaultNavigationTimeout bounds a content load, including the idle wait.
	DefaultNavigationTimeout = 30 * time.Second
	// DefaultIdleWindow is how long the network must stay quiet to count as idle.
	DefaultIdleWindow = 500 * time.Millisecond
)

// Compile-time interface checks
var (
	_ domain.Launcher = (*Launcher)(nil)
	_ domain.Browser  = (*Browser)(nil)
	_ domain.Page     = (*Page)(nil)
)

// DefaultLaunchArgs returns the arguments used when the caller supplies none.
func DefaultLaunchArgs() []string {
	return []string{"--no-sandbox", "--disable-setuid-sandbox"}
}

// ResolveArgs returns custom when it is non-empty and DefaultLaunchArgs otherwise.
// The two sets are never merged.
func ResolveArgs(custom []string) []string {
	if len(custom) > 0 {
		return append([]string(nil), custom...)
	}
	return DefaultLaunchArgs()
}

// Launcher starts Chrome processes.
type Launcher struct {
	// ExecPath overrides the Chrome binary chromedp would look up.
	ExecPath string
	// UserDataDir is the parent of the per-launch profile directories. Empty means os.TempDir.
	UserDataDir string
	// NavigationTimeout applies to SetContent and Navigate on every page of the browser.
	NavigationTimeout time.Duration
	// IdleWindow is the network quiescence window.
	IdleWindow time.Duration
}

// NewLauncher returns a Launcher with the default timeouts.
func NewLauncher(execPath, userDataDir string) *Launcher {
	return &Launcher{
		ExecPath:          execPath,
		UserDataDir:       userDataDir,
		NavigationTimeout: DefaultNavigationTimeout,
		IdleWindow:        DefaultIdleWindow,
	}
}

// Launch starts a browser with args, or DefaultLaunchArgs when args is empty.
// The process outlives ctx; it is released by Browser.Close.
func (l *Launcher) Launch(ctx context.Context, args []string) (domain.Browser, error) {
	args = ResolveArgs(args)

	profileDir, err := createProfileDir(l.UserDataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLaunch, err)
	}

	opts, err := allocatorOptions(l.ExecPath, profileDir, args)
	if err != nil {
		_ = os.RemoveAll(profileDir)
		return nil, fmt.Errorf("%w: %w", domain.ErrLaunch, err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the process. Caller cancellation aborts the start only.
	stop := context.AfterFunc(ctx, browserCancel)
	err = chromedp.Run(browserCtx)
	stopped := stop()
	if err != nil || !stopped {
		browserCancel()
		allocCancel()
		_ = os.RemoveAll(profileDir)
		if err == nil {
			err = ctx.Err()
		}
		logging.Error("Browser launch failed", "exec_path", l.ExecPath, "args", args, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrLaunch, callerErr(ctx, err))
	}

	b := &Browser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		profileDir:  profileDir,
		navTimeout:  orDefault(l.NavigationTimeout, DefaultNavigationTimeout),
		idleWindow:  orDefault(l.IdleWindow, DefaultIdleWindow),
	}
	if c := chromedp.FromContext(browserCtx); c != nil && c.Browser != nil {
		if p := c.Browser.Process(); p != nil {
			b.proc = newProcess(p)
		}
	}
	logging.Info("Browser launched", "pid", b.pid(), "args", args, "profile_dir", profileDir)
	return b, nil
}

// allocatorOptions layers the launch arguments over chromedp's headless defaults.
func allocatorOptions(execPath, profileDir string, args []string) ([]chromedp.ExecAllocatorOption, error) {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.UserDataDir(profileDir))
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	for _, arg := range args {
		name, value, err := parseFlag(arg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts, nil
}

// parseFlag splits "--name=value" into its parts. A flag without a value is a boolean switch.
func parseFlag(arg string) (string, any, error) {
	trimmed := strings.TrimLeft(strings.TrimSpace(arg), "-")
	if trimmed == "" || !strings.HasPrefix(strings.TrimSpace(arg), "-") {
		return "", nil, fmt.Errorf("unsupported launch argument %q", arg)
	}
	name, value, ok := strings.Cut(trimmed, "=")
	if name == "" {
		return "", nil, fmt.Errorf("unsupported launch argument %q", arg)
	}
	if !ok {
		return name, true, nil
	}
	return name, value, nil
}

// createProfileDir creates a fresh Chrome profile directory below base.
func createProfileDir(base string) (string, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("cannot create profile base dir: %w", err)
	}
	dir, err := os.MkdirTemp(base, "pdfgen-chrome-*")
	if err != nil {
		return "", fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	return dir, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
