// internal/browser/quiesce.go
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// netWatcher tracks in-flight network requests on a tab via CDP events so the
// engine can detect quiescence. Quiescence is a heuristic: some sites never
// reach a clean idle state, so callers treat timeouts as best effort.
type netWatcher struct {
	logger *zap.Logger

	mu       sync.RWMutex
	inflight map[network.RequestID]struct{}
}

func newNetWatcher(logger *zap.Logger) *netWatcher {
	return &netWatcher{
		logger:   logger.Named("netwatch"),
		inflight: make(map[network.RequestID]struct{}),
	}
}

// Start registers the event listener on the tab context and enables the
// network domain. The listener lives as long as the tab does.
func (w *netWatcher) Start(tabCtx context.Context) error {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			w.mu.Lock()
			w.inflight[e.RequestID] = struct{}{}
			w.mu.Unlock()
		case *network.EventLoadingFinished:
			w.drop(e.RequestID)
		case *network.EventLoadingFailed:
			w.drop(e.RequestID)
		}
	})
	return chromedp.Run(tabCtx, network.Enable())
}

func (w *netWatcher) drop(id network.RequestID) {
	w.mu.Lock()
	delete(w.inflight, id)
	w.mu.Unlock()
}

// WaitIdle polls until no request has been in flight for the quiet period.
func (w *netWatcher) WaitIdle(ctx context.Context, quietPeriod time.Duration) error {
	if quietPeriod <= 0 {
		quietPeriod = 500 * time.Millisecond
	}
	ticker := time.NewTicker(quietPeriod / 2)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("WaitIdle aborted.", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			w.mu.RLock()
			inflightCount := len(w.inflight)
			w.mu.RUnlock()

			if inflightCount > 0 {
				lastActivity = time.Now()
				w.logger.Debug("Waiting for network idle...", zap.Int("inflight_requests", inflightCount))
			} else if time.Since(lastActivity) >= quietPeriod {
				return nil
			}
		}
	}
}
