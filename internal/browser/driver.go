// internal/browser/driver.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/voidhaze7x/genweaver/internal/config"
)

// PageDriver is the narrow set of page-level operations the automation engine
// needs. The production implementation drives a headless Chrome tab over CDP;
// tests substitute fakes.
type PageDriver interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Fill(ctx context.Context, selector, text string, timeout time.Duration) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	// WaitIdle blocks until no network request has been in flight for the
	// quiet period, or the timeout elapses.
	WaitIdle(ctx context.Context, quiet, timeout time.Duration) error
	Sleep(ctx context.Context, d time.Duration) error
	// AttributeAll returns the non-empty values of the given attribute across
	// all elements matching the selector, in DOM order.
	AttributeAll(ctx context.Context, selector, attr string) ([]string, error)
}

// DriverFactory acquires a page driver plus its release function. The release
// function must be safe to call on every exit path.
type DriverFactory func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (PageDriver, func(), error)

// cdpDriver implements PageDriver on top of a chromedp tab context.
type cdpDriver struct {
	ctx     context.Context
	watcher *netWatcher
	logger  *zap.Logger
}

// NewCDPDriver launches a fresh browser process and opens a single tab with
// the configured viewport. Each invocation owns its own process; isolation
// between concurrent generations is at the OS process boundary.
func NewCDPDriver(ctx context.Context, cfg *config.Config, logger *zap.Logger) (PageDriver, func(), error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, buildAllocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	release := func() {
		tabCancel()
		allocCancel()
	}

	// Creating the target and setting the viewport doubles as the launch
	// responsiveness check.
	launchCtx, cancel := context.WithTimeout(tabCtx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(launchCtx,
		chromedp.EmulateViewport(int64(cfg.Browser.ViewportWidth), int64(cfg.Browser.ViewportHeight)),
	); err != nil {
		release()
		return nil, nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	watcher := newNetWatcher(logger)
	if err := watcher.Start(tabCtx); err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to start network watcher: %w", err)
	}

	return &cdpDriver{ctx: tabCtx, watcher: watcher, logger: logger.Named("driver")}, release, nil
}

// buildAllocatorOptions assembles the browser launch flags: headless mode,
// a realistic User-Agent, and the container-stability flags.
func buildAllocatorOptions(cfg *config.Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		// Several generator sites refuse sessions that advertise automation.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("headless", cfg.Browser.Headless),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", cfg.Browser.Headless),
		chromedp.UserAgent(cfg.Browser.UserAgent),
	)

	// Custom args from config, "--name=value" or "--name".
	for _, arg := range cfg.Browser.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(flagName, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(flagName, true))
		}
	}

	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}

	return opts
}

// queryOpt picks the lookup mode for a selector: XPath expressions are routed
// through the DOM search API, everything else is querySelector.
func queryOpt(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(//") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func (d *cdpDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	// Respect both the tab lifetime and the caller's context.
	runCtx, cancel := combineContext(d.ctx, ctx)
	defer cancel()

	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (d *cdpDriver) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	d.logger.Debug("Navigating", zap.String("url", url))
	if err := d.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (d *cdpDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return d.run(ctx, timeout, chromedp.WaitVisible(selector, queryOpt(selector)))
}

func (d *cdpDriver) Fill(ctx context.Context, selector, text string, timeout time.Duration) error {
	return d.run(ctx, timeout, chromedp.Tasks{
		chromedp.ScrollIntoView(selector, queryOpt(selector)),
		chromedp.WaitVisible(selector, queryOpt(selector)),
		chromedp.Clear(selector, queryOpt(selector)),
		chromedp.SendKeys(selector, text, queryOpt(selector)),
	})
}

func (d *cdpDriver) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return d.run(ctx, timeout, chromedp.Tasks{
		chromedp.ScrollIntoView(selector, queryOpt(selector)),
		chromedp.WaitVisible(selector, queryOpt(selector)),
		chromedp.Click(selector, queryOpt(selector)),
	})
}

func (d *cdpDriver) WaitIdle(ctx context.Context, quiet, timeout time.Duration) error {
	idleCtx, cancel := combineContext(d.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		idleCtx, tcancel = context.WithTimeout(idleCtx, timeout)
		defer tcancel()
	}
	return d.watcher.WaitIdle(idleCtx, quiet)
}

func (d *cdpDriver) Sleep(ctx context.Context, dur time.Duration) error {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return d.ctx.Err()
	}
}

func (d *cdpDriver) AttributeAll(ctx context.Context, selector, attr string) ([]string, error) {
	js := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(el => el.getAttribute(%q) || '').filter(v => v !== '')`,
		selector, attr,
	)
	var values []string
	if err := d.run(ctx, 10*time.Second, chromedp.Evaluate(js, &values)); err != nil {
		return nil, fmt.Errorf("attribute collection for %q failed: %w", selector, err)
	}
	return values, nil
}

// combineContext returns a context canceled when either input is canceled.
func combineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)
	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()
	return combinedCtx, cancel
}
