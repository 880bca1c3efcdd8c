// internal/browser/probe.go
package browser

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Interactor bundles the page driver with the retry/timeout discipline shared
// by every strategy. Third-party generator pages use wildly different markup
// for the same controls, so each interaction works through an ordered
// candidate list rather than a single hardcoded selector.
type Interactor struct {
	drv    PageDriver
	logger *zap.Logger

	// probeBudget bounds each individual candidate lookup.
	probeBudget time.Duration
	// clickBudget bounds each individual click attempt, so one dead candidate
	// cannot stall the whole chain.
	clickBudget time.Duration
}

// NewInteractor wires the action primitives around a driver. Zero budgets fall
// back to the defaults used by the original automation (5s probe, 3s click).
func NewInteractor(drv PageDriver, logger *zap.Logger, probeBudget, clickBudget time.Duration) *Interactor {
	if probeBudget <= 0 {
		probeBudget = 5 * time.Second
	}
	if clickBudget <= 0 {
		clickBudget = 3 * time.Second
	}
	return &Interactor{
		drv:         drv,
		logger:      logger.Named("interactor"),
		probeBudget: probeBudget,
		clickBudget: clickBudget,
	}
}

// Probe tries each candidate selector in list order and returns the first one
// that becomes visible within its individual budget. A miss is a value, not an
// error: callers decide whether "none matched" is fatal. Ties are broken
// purely by list order.
func (it *Interactor) Probe(ctx context.Context, candidates []string, perCandidateBudget time.Duration) (string, bool) {
	if perCandidateBudget <= 0 {
		perCandidateBudget = it.probeBudget
	}
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return "", false
		}
		if err := it.drv.WaitVisible(ctx, candidate, perCandidateBudget); err == nil {
			it.logger.Debug("Probe matched.", zap.String("selector", candidate))
			return candidate, true
		}
	}
	return "", false
}

// FillFirstMatch probes the candidates and fills the first one that accepts
// text. A candidate that resolves but refuses the fill does not abort the
// chain; the next candidate is tried.
func (it *Interactor) FillFirstMatch(ctx context.Context, candidates []string, text string) bool {
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return false
		}
		if err := it.drv.WaitVisible(ctx, candidate, it.probeBudget); err != nil {
			continue
		}
		if err := it.drv.Fill(ctx, candidate, text, it.probeBudget); err != nil {
			it.logger.Debug("Fill attempt failed, trying next candidate.",
				zap.String("selector", candidate), zap.Error(err))
			continue
		}
		it.logger.Debug("Filled input.", zap.String("selector", candidate))
		return true
	}
	return false
}

// ClickFirstMatch clicks the first candidate that accepts a click within the
// short per-candidate budget.
func (it *Interactor) ClickFirstMatch(ctx context.Context, candidates []string) bool {
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return false
		}
		if err := it.drv.Click(ctx, candidate, it.clickBudget); err != nil {
			continue
		}
		it.logger.Debug("Clicked.", zap.String("selector", candidate))
		return true
	}
	return false
}

// AwaitQuiescence waits for network idleness. A timeout here is not a
// failure: some sites keep polling forever while still rendering results, so
// callers proceed to extraction regardless.
func (it *Interactor) AwaitQuiescence(ctx context.Context, quiet, timeout time.Duration) {
	if err := it.drv.WaitIdle(ctx, quiet, timeout); err != nil {
		it.logger.Debug("Quiescence wait ended early; proceeding anyway.", zap.Error(err))
	}
}

// AwaitAnyOf waits until at least one of the evidence selectors appears. CSS
// candidates are joined into a single querySelector union so the page is
// watched for all of them at once; a union cannot mix in XPath, so a list
// containing any XPath candidate falls back to probing the candidates
// individually with the budget split between them. A timeout here IS a hard
// signal: no evidence of output.
func (it *Interactor) AwaitAnyOf(ctx context.Context, candidates []string, timeout time.Duration) bool {
	if len(candidates) == 0 {
		return false
	}
	for _, candidate := range candidates {
		if strings.HasPrefix(candidate, "//") || strings.HasPrefix(candidate, "(//") {
			_, ok := it.Probe(ctx, candidates, timeout/time.Duration(len(candidates)))
			return ok
		}
	}
	union := strings.Join(candidates, ", ")
	if err := it.drv.WaitVisible(ctx, union, timeout); err != nil {
		return false
	}
	return true
}

// Settle pauses before the first output poll. Some sites render a placeholder
// before real output appears.
func (it *Interactor) Settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	_ = it.drv.Sleep(ctx, d)
}

// CollectAttributes exposes ordered attribute harvesting to the strategies.
func (it *Interactor) CollectAttributes(ctx context.Context, selector, attr string) ([]string, error) {
	return it.drv.AttributeAll(ctx, selector, attr)
}
