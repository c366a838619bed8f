package chrome

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

// idleWatcher tracks in-flight requests of one tab from CDP network events.
type idleWatcher struct {
	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	changed  chan struct{}
}

func newIdleWatcher() *idleWatcher {
	return &idleWatcher{
		inflight: make(map[network.RequestID]struct{}),
		changed:  make(chan struct{}),
	}
}

// handle is registered with chromedp.ListenTarget and must not block.
func (w *idleWatcher) handle(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		w.update(func() { w.inflight[e.RequestID] = struct{}{} })
	case *network.EventLoadingFinished:
		w.update(func() { delete(w.inflight, e.RequestID) })
	case *network.EventLoadingFailed:
		w.update(func() { delete(w.inflight, e.RequestID) })
	}
}

// reset forgets requests of the previous document.
func (w *idleWatcher) reset() {
	w.update(func() { clear(w.inflight) })
}

func (w *idleWatcher) update(fn func()) {
	w.mu.Lock()
	fn()
	close(w.changed)
	w.changed = make(chan struct{})
	w.mu.Unlock()
}

func (w *idleWatcher) snapshot() (int, <-chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inflight), w.changed
}

// wait returns once no request has been in flight for window, or when ctx ends.
func (w *idleWatcher) wait(ctx context.Context, window time.Duration) error {
	timer := time.NewTimer(window)
	defer timer.Stop()
	for {
		n, changed := w.snapshot()
		if n == 0 {
			timer.Reset(window)
		} else {
			timer.Stop()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		case <-timer.C:
			return nil
		}
	}
}
