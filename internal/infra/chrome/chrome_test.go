package chrome

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfgen/internal/domain"
)

func TestResolveArgs(t *testing.T) {
	assert.Equal(t, []string{"--no-sandbox", "--disable-setuid-sandbox"}, ResolveArgs(nil))
	assert.Equal(t, []string{"--no-sandbox", "--disable-setuid-sandbox"}, ResolveArgs([]string{}))

	custom := []string{"--lang=de"}
	got := ResolveArgs(custom)
	assert.Equal(t, []string{"--lang=de"}, got, "custom args must be used verbatim, never merged")

	got[0] = "--changed"
	assert.Equal(t, "--lang=de", custom[0], "caller slice must not be aliased")
}

func TestDefaultLaunchArgs_ReturnsCopy(t *testing.T) {
	a := DefaultLaunchArgs()
	a[0] = "--mutated"
	assert.Equal(t, "--no-sandbox", DefaultLaunchArgs()[0])
}

func TestParseFlag(t *testing.T) {
	tests := []struct {
		arg     string
		name    string
		value   any
		wantErr bool
	}{
		{arg: "--no-sandbox", name: "no-sandbox", value: true},
		{arg: "--window-size=800,600", name: "window-size", value: "800,600"},
		{arg: "-single-dash", name: "single-dash", value: true},
		{arg: "--proxy-server=", name: "proxy-server", value: ""},
		{arg: "https://example.com", wantErr: true},
		{arg: "--", wantErr: true},
		{arg: "--=x", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.arg, func(t *testing.T) {
			name, value, err := parseFlag(tc.arg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.name, name)
			assert.Equal(t, tc.value, value)
		})
	}
}

func TestAllocatorOptions(t *testing.T) {
	opts, err := allocatorOptions("", "/tmp/profile", []string{"--no-sandbox", "--lang=en"})
	require.NoError(t, err)
	// base options + profile dir + two flags
	assert.Len(t, opts, len(chromedp.DefaultExecAllocatorOptions)+3)

	withExec, err := allocatorOptions("/opt/chrome", "/tmp/profile", nil)
	require.NoError(t, err)
	assert.Len(t, withExec, len(chromedp.DefaultExecAllocatorOptions)+2)

	_, err = allocatorOptions("", "/tmp/profile", []string{"positional"})
	require.Error(t, err)
}

func TestCreateProfileDir_DefaultAndCustomBase(t *testing.T) {
	dir1, err := createProfileDir("")
	if err != nil {
		t.Fatalf("createProfileDir default base failed: %v", err)
	}
	defer os.RemoveAll(dir1)
	if _, err := os.Stat(dir1); err != nil {
		t.Fatalf("expected created dir to exist: %v", err)
	}

	customBase := filepath.Join(t.TempDir(), "nested")
	dir2, err := createProfileDir(customBase)
	if err != nil {
		t.Fatalf("createProfileDir custom base failed: %v", err)
	}
	if filepath.Dir(dir2) != customBase {
		t.Fatalf("expected profile dir under custom base %q, got %q", customBase, dir2)
	}
}

func TestCreateProfileDir_InvalidBase(t *testing.T) {
	if _, err := createProfileDir("/dev/null/x"); err == nil {
		t.Fatalf("expected error for invalid base dir")
	}
}

func TestLaunch_MissingBinaryIsLaunchError(t *testing.T) {
	base := t.TempDir()
	l := NewLauncher(filepath.Join(base, "no-such-chrome"), base)

	b, err := l.Launch(context.Background(), nil)
	if !errors.Is(err, domain.ErrLaunch) {
		t.Fatalf("expected ErrLaunch, got %v", err)
	}
	if b != nil {
		t.Fatalf("expected no browser on failure")
	}

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "pdfgen-chrome-") {
			t.Fatalf("expected profile dir to be removed, found %s", e.Name())
		}
	}
}

func TestLaunch_InvalidArgIsLaunchError(t *testing.T) {
	l := NewLauncher("", t.TempDir())
	_, err := l.Launch(context.Background(), []string{"not-a-flag"})
	if !errors.Is(err, domain.ErrLaunch) {
		t.Fatalf("expected ErrLaunch, got %v", err)
	}
}

func TestIdleWatcher_IdleAfterWindow(t *testing.T) {
	w := newIdleWatcher()
	start := time.Now()
	require.NoError(t, w.wait(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestIdleWatcher_WaitsForInflightRequests(t *testing.T) {
	w := newIdleWatcher()
	w.handle(&network.EventRequestWillBeSent{RequestID: "1"})
	w.handle(&network.EventRequestWillBeSent{RequestID: "2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := w.wait(ctx, 10*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while requests are in flight, got %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		w.handle(&network.EventLoadingFinished{RequestID: "1"})
		w.handle(&network.EventLoadingFailed{RequestID: "2"})
	}()
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, w.wait(ctx2, 10*time.Millisecond))
}

func TestIdleWatcher_ResetForgetsPreviousDocument(t *testing.T) {
	w := newIdleWatcher()
	w.handle(&network.EventRequestWillBeSent{RequestID: "stale"})
	w.reset()
	n, _ := w.snapshot()
	assert.Equal(t, 0, n)
}

func TestPrintParams_Defaults(t *testing.T) {
	p, err := printParams(domain.ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8.5, p.PaperWidth)
	assert.Equal(t, 11.0, p.PaperHeight)
	assert.Zero(t, p.MarginTop)
	assert.Zero(t, p.Scale)
	assert.False(t, p.DisplayHeaderFooter)
}

func TestPrintParams_MapsOptions(t *testing.T) {
	p, err := printParams(domain.ExportOptions{
		Format:              "A4",
		Landscape:           true,
		PrintBackground:     true,
		Scale:               0.5,
		Margin:              domain.Margin{Top: "1in", Right: "96px", Bottom: "2.54cm", Left: "25.4mm"},
		PageRanges:          "1-2",
		DisplayHeaderFooter: true,
		FooterTemplate:      "<span class=pageNumber></span>",
	})
	require.NoError(t, err)
	assert.Equal(t, 8.27, p.PaperWidth)
	assert.Equal(t, 11.7, p.PaperHeight)
	assert.True(t, p.Landscape)
	assert.True(t, p.PrintBackground)
	assert.Equal(t, 0.5, p.Scale)
	for _, m := range []float64{p.MarginTop, p.MarginRight, p.MarginBottom, p.MarginLeft} {
		assert.InDelta(t, 1.0, m, 1e-9)
	}
	assert.Equal(t, "1-2", p.PageRanges)
	assert.True(t, p.DisplayHeaderFooter)
	assert.Empty(t, p.HeaderTemplate)
	assert.Equal(t, "<span class=pageNumber></span>", p.FooterTemplate)
}

func TestPrintParams_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts domain.ExportOptions
	}{
		{name: "unknown format", opts: domain.ExportOptions{Format: "B5"}},
		{name: "scale too large", opts: domain.ExportOptions{Scale: 3}},
		{name: "bad margin", opts: domain.ExportOptions{Margin: domain.Margin{Top: "wide"}}},
		{name: "width without height", opts: domain.ExportOptions{Width: "10in"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := printParams(tc.opts)
			require.Error(t, err)
		})
	}
}

func TestProcess_KillAndKilled(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("signal 0 probing is unix only")
	}
	cmd := exec.Command("sleep", "10")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	p := newProcess(cmd.Process)
	assert.Equal(t, cmd.Process.Pid, p.Pid())
	assert.False(t, p.Killed())

	require.NoError(t, p.Kill())
	_ = cmd.Wait()
	assert.True(t, p.Killed())
	assert.NoError(t, p.Kill(), "killing an exited process is not an error")
}

func TestProcess_ExitedIsKilled(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("signal 0 probing is unix only")
	}
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot run helper process: %v", err)
	}
	assert.True(t, newProcess(cmd.Process).Killed())
}

func TestIsSessionInterrupted(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "context canceled", err: context.Canceled, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "target closed", err: errors.New("target closed"), want: true},
		{name: "websocket", err: errors.New("websocket: close 1006"), want: true},
		{name: "normal error", err: errors.New("validation failed"), want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSessionInterrupted(tc.err); got != tc.want {
				t.Fatalf("IsSessionInterrupted(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestCallerErr(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cause := errors.New("chromedp unwound")
	assert.Same(t, cause, callerErr(ctx, cause))

	cancel()
	err := callerErr(ctx, cause)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "chromedp unwound")
}

// findChrome returns a local Chrome binary or skips the test.
func findChrome(t *testing.T) string {
	t.Helper()
	if p := os.Getenv("CHROME_BIN"); p != "" {
		return p
	}
	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no chrome binary available")
	return ""
}

func TestLaunch_RenderContentToPDF(t *testing.T) {
	execPath := findChrome(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	l := NewLauncher(execPath, t.TempDir())
	b, err := l.Launch(ctx, nil)
	require.NoError(t, err)
	defer b.Close(context.Background())

	pg, err := b.NewPage(ctx)
	require.NoError(t, err)
	assert.Len(t, b.Pages(), 1)

	require.NoError(t, pg.SetContent(ctx, "<h1>Hi</h1>"))
	buf, err := pg.PDF(ctx, domain.ExportOptions{PrintBackground: true})
	require.NoError(t, err)
	if !strings.HasPrefix(string(buf), "%PDF-") {
		t.Fatalf("expected PDF output, got %q", buf[:min(len(buf), 16)])
	}

	require.NoError(t, pg.Close(ctx))
	assert.Empty(t, b.Pages())
	require.NoError(t, b.Close(ctx))
	require.NoError(t, b.Close(ctx), "second close is a no-op")
}
