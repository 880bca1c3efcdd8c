// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voidhaze7x/genweaver/api/schemas"
	"github.com/voidhaze7x/genweaver/internal/config"
)

// Runner owns the browser lifecycle for generation runs: launch, navigate,
// execute the selected strategy, and tear down on every exit path. It is the
// single catch-all boundary; no invocation escapes without a structured
// GenerationOutcome.
type Runner struct {
	cfg       *config.Config
	logger    *zap.Logger
	selector  StrategySelector
	newDriver DriverFactory
}

// NewRunner builds a production runner: chromedp driver, default strategy
// table.
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		logger:    logger.Named("automation"),
		selector:  DefaultSelector(),
		newDriver: NewCDPDriver,
	}
}

// NewRunnerWith builds a runner with an injected selector and driver factory.
func NewRunnerWith(cfg *config.Config, logger *zap.Logger, selector StrategySelector, factory DriverFactory) *Runner {
	return &Runner{
		cfg:       cfg,
		logger:    logger.Named("automation"),
		selector:  selector,
		newDriver: factory,
	}
}

// Run executes one generation attempt. It always returns exactly one outcome
// and never lets a fault propagate past its own boundary; the browser
// resources are released on the success path, the early-failure path, and the
// panic path alike.
func (r *Runner) Run(ctx context.Context, req schemas.GenerationRequest) (outcome schemas.GenerationOutcome) {
	outcome = schemas.GenerationOutcome{
		Status:      schemas.StatusError,
		Prompt:      req.Prompt,
		Destination: req.Destination,
	}

	runID := uuid.New().String()
	log := r.logger.With(zap.String("run_id", runID), zap.String("destination", req.Destination))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Automation run panicked.", zap.Any("panic", rec))
			outcome.Status = schemas.StatusError
			outcome.Output = nil
			outcome.ErrorDetail = fmt.Sprintf("unexpected failure: %v", rec)
		}
	}()

	if err := req.Validate(); err != nil {
		outcome.ErrorDetail = err.Error()
		return outcome
	}

	runCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	// Acquire the browser. One fresh process per invocation; release is
	// unconditional.
	drv, release, err := r.newDriver(runCtx, r.cfg, log)
	if err != nil {
		log.Error("Browser acquisition failed.", zap.Error(err))
		outcome.ErrorDetail = err.Error()
		return outcome
	}
	defer release()

	log.Info("Automation session started.")

	if err := drv.Navigate(runCtx, req.Destination, r.cfg.Network.NavigationTimeout); err != nil {
		log.Warn("Navigation failed.", zap.Error(err))
		outcome.ErrorDetail = err.Error()
		return outcome
	}

	it := NewInteractor(drv, log, r.cfg.Network.ProbeTimeout, r.cfg.Network.ClickTimeout)

	// Best-effort settle after navigation; sites that never go idle still
	// render usable pages.
	it.AwaitQuiescence(runCtx, r.cfg.Network.PostLoadWait, req.Timeout)

	strat := r.selector.Select(req.Destination)
	log.Info("Strategy selected.", zap.String("strategy", strat.Name()))

	refs, err := ExecuteStrategy(runCtx, it, strat, req.Prompt, req.Timeout)
	switch {
	case err == nil:
		// Fall through to classification below.
	case isStrategyFailure(err):
		log.Info("Strategy terminated early.", zap.String("cause", err.Error()))
		outcome.Status = schemas.StatusFailed
		outcome.ErrorDetail = err.Error()
		return outcome
	default:
		log.Warn("Strategy hit an environment fault.", zap.Error(err))
		outcome.ErrorDetail = err.Error()
		return outcome
	}

	output := Normalize(refs)
	if len(output) == 0 {
		// The run executed correctly; nothing displayable fit the filters.
		log.Info("Run completed with no qualifying output.")
		outcome.Status = schemas.StatusNoOutput
		outcome.ErrorDetail = ""
		return outcome
	}

	log.Info("Run succeeded.", zap.Int("artifacts", len(output)))
	outcome.Status = schemas.StatusSuccess
	outcome.Output = output
	outcome.ErrorDetail = ""
	return outcome
}

func isStrategyFailure(err error) bool {
	return errors.Is(err, ErrNoInputField) ||
		errors.Is(err, ErrNoSubmitButton) ||
		errors.Is(err, ErrNoOutputDetected)
}
