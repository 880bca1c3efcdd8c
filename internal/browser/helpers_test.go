package browser

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/voidhaze7x/genweaver/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDriver is an in-memory PageDriver. Selectors listed in visible resolve
// immediately; everything else times out (WaitVisible blocks for its budget to
// exercise the probe's bounded-time behavior).
type fakeDriver struct {
	mu sync.Mutex

	visible    map[string]bool
	fillErrs   map[string]error
	clickErrs  map[string]error
	attrs      map[string][]string // selector|attr -> values
	navigated  []string
	navErr     error
	attrErr    error
	waitedFor  []string
	filledWith map[string]string
	clicked    []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		visible:    make(map[string]bool),
		fillErrs:   make(map[string]error),
		clickErrs:  make(map[string]error),
		attrs:      make(map[string][]string),
		filledWith: make(map[string]string),
	}
}

func (f *fakeDriver) Navigate(_ context.Context, url string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	return f.navErr
}

// anyVisible reports whether any member of a comma-joined selector union is
// visible, mirroring querySelector's union semantics.
func (f *fakeDriver) anyVisible(selector string) bool {
	for _, part := range strings.Split(selector, ",") {
		if f.visible[strings.TrimSpace(part)] {
			return true
		}
	}
	return false
}

func (f *fakeDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	f.mu.Lock()
	f.waitedFor = append(f.waitedFor, selector)
	ok := f.anyVisible(selector)
	f.mu.Unlock()
	if ok {
		return nil
	}
	// Simulate the per-candidate budget elapsing.
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return context.DeadlineExceeded
}

func (f *fakeDriver) Fill(_ context.Context, selector, text string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fillErrs[selector]; err != nil {
		return err
	}
	f.filledWith[selector] = text
	return nil
}

func (f *fakeDriver) Click(_ context.Context, selector string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.anyVisible(selector) {
		return context.DeadlineExceeded
	}
	if err := f.clickErrs[selector]; err != nil {
		return err
	}
	f.clicked = append(f.clicked, selector)
	return nil
}

func (f *fakeDriver) WaitIdle(context.Context, time.Duration, time.Duration) error { return nil }

func (f *fakeDriver) Sleep(context.Context, time.Duration) error { return nil }

func (f *fakeDriver) AttributeAll(_ context.Context, selector, attr string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attrErr != nil {
		return nil, f.attrErr
	}
	return f.attrs[selector+"|"+attr], nil
}

// stubSelector records the destination it was asked about and hands back a
// fixed strategy.
type stubSelector struct {
	strat Strategy
	last  string
}

func (s *stubSelector) Select(destination string) Strategy {
	s.last = destination
	return s.strat
}

func testConfig() *config.Config {
	return &config.Config{
		Network: config.NetworkConfig{
			NavigationTimeout: time.Second,
			PostLoadWait:      10 * time.Millisecond,
			ProbeTimeout:      20 * time.Millisecond,
			ClickTimeout:      20 * time.Millisecond,
		},
	}
}

func testInteractor(drv PageDriver) *Interactor {
	return NewInteractor(drv, zap.NewNop(), 20*time.Millisecond, 20*time.Millisecond)
}
