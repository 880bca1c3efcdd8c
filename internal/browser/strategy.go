// internal/browser/strategy.go
package browser

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/voidhaze7x/genweaver/api/schemas"
)

// Strategy failure causes. These terminate a run with status "failed"; every
// other error escaping a strategy is classified as an environment error.
var (
	ErrNoInputField     = errors.New("no input field found")
	ErrNoSubmitButton   = errors.New("no submit button found")
	ErrNoOutputDetected = errors.New("no output detected")
)

// Strategy is a per-destination automation policy. A strategy's methods run
// strictly in sequence: fill the prompt, submit, await output evidence,
// extract. Any step that cannot complete short-circuits the remaining states.
type Strategy interface {
	Name() string
	// FillPrompt locates the prompt input among the variant's candidates and
	// fills it with the prompt text.
	FillPrompt(ctx context.Context, it *Interactor, prompt string) bool
	// Submit locates and clicks the variant's submit control.
	Submit(ctx context.Context, it *Interactor) bool
	// AwaitOutput applies the variant's settle delay and then waits for output
	// evidence within the budget.
	AwaitOutput(ctx context.Context, it *Interactor, budget time.Duration) bool
	// Extract harvests and classifies media references from the live DOM.
	Extract(ctx context.Context, it *Interactor) ([]schemas.MediaRef, error)
}

// sitePlan is the shared Strategy implementation. Variants differ only in
// their candidate selector lists, the settle delay before polling for output,
// and the post-extraction locator filter.
type sitePlan struct {
	name               string
	inputCandidates    []string
	submitCandidates   []string
	evidenceCandidates []string
	settleDelay        time.Duration
	accept             acceptFunc
}

func (p *sitePlan) Name() string { return p.name }

func (p *sitePlan) FillPrompt(ctx context.Context, it *Interactor, prompt string) bool {
	return it.FillFirstMatch(ctx, p.inputCandidates, prompt)
}

func (p *sitePlan) Submit(ctx context.Context, it *Interactor) bool {
	return it.ClickFirstMatch(ctx, p.submitCandidates)
}

func (p *sitePlan) AwaitOutput(ctx context.Context, it *Interactor, budget time.Duration) bool {
	it.Settle(ctx, p.settleDelay)
	return it.AwaitAnyOf(ctx, p.evidenceCandidates, budget)
}

func (p *sitePlan) Extract(ctx context.Context, it *Interactor) ([]schemas.MediaRef, error) {
	return extractMedia(ctx, it, p.accept)
}

// ExecuteStrategy drives the strategy state machine against a live page.
// Returns the raw (pre-normalization) media references, or one of the
// strategy failure sentinels.
func ExecuteStrategy(ctx context.Context, it *Interactor, strat Strategy, prompt string, budget time.Duration) ([]schemas.MediaRef, error) {
	if !strat.FillPrompt(ctx, it, prompt) {
		return nil, ErrNoInputField
	}
	if !strat.Submit(ctx, it) {
		return nil, ErrNoSubmitButton
	}
	if !strat.AwaitOutput(ctx, it, budget) {
		return nil, ErrNoOutputDetected
	}
	return strat.Extract(ctx, it)
}

// -- Site variants --

// Button-label lookups use XPath because querySelector has no text matcher.
func buttonWithLabel(label string) string {
	return `//button[contains(., "` + label + `")]`
}

// NewLmarenaStrategy targets lmarena.ai. Generated assets there surface as
// blob:/data: URLs or carry "generated" in the path; everything else on the
// page is chrome.
func NewLmarenaStrategy() Strategy {
	return &sitePlan{
		name: "lmarena",
		inputCandidates: []string{
			"textarea",
			`input[type="text"]`,
		},
		submitCandidates: []string{
			buttonWithLabel("Generate"),
			buttonWithLabel("Submit"),
			buttonWithLabel("Create"),
			`button[type="submit"]`,
		},
		evidenceCandidates: []string{"img", "video", ".result", ".output"},
		settleDelay:        3 * time.Second,
		accept: func(kind schemas.MediaKind, locator string) bool {
			if kind == schemas.MediaVideo {
				return true
			}
			return strings.Contains(locator, "blob:") ||
				strings.Contains(locator, "data:") ||
				strings.Contains(locator, "generated")
		},
	}
}

// NewHuggingFaceStrategy targets Gradio apps on huggingface.co spaces.
func NewHuggingFaceStrategy() Strategy {
	return &sitePlan{
		name: "huggingface",
		inputCandidates: []string{
			".gradio-container textarea",
			"textarea",
			`input[type="text"]`,
		},
		submitCandidates: []string{
			buttonWithLabel("Submit"),
			buttonWithLabel("Generate"),
		},
		evidenceCandidates: []string{".output", ".gallery", "img"},
		settleDelay:        3 * time.Second,
		accept:             acceptAny,
	}
}

// NewReplicateStrategy targets replicate.com model pages. Only assets served
// from replicate's own CDN count as output.
func NewReplicateStrategy() Strategy {
	return &sitePlan{
		name: "replicate",
		inputCandidates: []string{
			"textarea",
			`input[type="text"]`,
		},
		submitCandidates: []string{
			buttonWithLabel("Run"),
			`button[type="submit"]`,
		},
		evidenceCandidates: []string{".output", "img", "video"},
		settleDelay:        3 * time.Second,
		accept: func(_ schemas.MediaKind, locator string) bool {
			return strings.Contains(locator, "replicate")
		},
	}
}

// NewGenericStrategy is the fallback for unknown destinations: maximally broad
// candidate lists and a permissive filter that excludes only inline vector
// icons.
func NewGenericStrategy() Strategy {
	return &sitePlan{
		name: "generic",
		inputCandidates: []string{
			"textarea",
			`input[type="text"]`,
			`[contenteditable="true"]`,
		},
		submitCandidates: []string{
			buttonWithLabel("Generate"),
			buttonWithLabel("Submit"),
			buttonWithLabel("Create"),
			buttonWithLabel("Run"),
			`button[type="submit"]`,
			`//*[contains(@class, "btn")][contains(., "Generate")]`,
		},
		evidenceCandidates: []string{"img", "video"},
		settleDelay:        5 * time.Second,
		accept: func(_ schemas.MediaKind, locator string) bool {
			return !strings.HasPrefix(locator, "data:image/svg")
		},
	}
}

// -- Strategy selection --

// StrategySelector maps a destination address onto a Strategy.
type StrategySelector interface {
	Select(destination string) Strategy
}

type tableEntry struct {
	pattern string
	build   func() Strategy
}

// TableSelector is the static, read-only destination→strategy mapping. The
// longest matching pattern wins; destinations matching nothing fall back to
// the generic strategy.
type TableSelector struct {
	entries  []tableEntry
	fallback func() Strategy
}

// DefaultSelector returns the process-wide strategy table.
func DefaultSelector() *TableSelector {
	return &TableSelector{
		entries: []tableEntry{
			{pattern: "lmarena.ai", build: NewLmarenaStrategy},
			{pattern: "huggingface.co", build: NewHuggingFaceStrategy},
			{pattern: "replicate.com", build: NewReplicateStrategy},
		},
		fallback: NewGenericStrategy,
	}
}

// Select picks the strategy whose pattern is the longest substring match for
// the destination.
func (t *TableSelector) Select(destination string) Strategy {
	var best *tableEntry
	for i := range t.entries {
		entry := &t.entries[i]
		if !strings.Contains(destination, entry.pattern) {
			continue
		}
		if best == nil || len(entry.pattern) > len(best.pattern) {
			best = entry
		}
	}
	if best == nil {
		return t.fallback()
	}
	return best.build()
}
