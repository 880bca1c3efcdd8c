// api/schemas/generation.go
package schemas

import (
	"fmt"
	"time"
)

// GenerationStatus is the terminal classification of one generation attempt.
type GenerationStatus string

const (
	// StatusSuccess means at least one qualifying media reference was extracted.
	StatusSuccess GenerationStatus = "success"
	// StatusNoOutput means the automation ran to completion but nothing
	// displayable survived the extraction filters. Not an error.
	StatusNoOutput GenerationStatus = "no_output"
	// StatusFailed means a required page interaction could not complete
	// (missing input, missing submit control, no output evidence).
	StatusFailed GenerationStatus = "failed"
	// StatusError means an environment fault: navigation failure, browser
	// launch failure, or any unclassified fault caught at the session boundary.
	StatusError GenerationStatus = "error"
)

// MediaKind classifies an extracted artifact by its element tag.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaRef is a classified reference to a generated artifact's location.
// The locator is either a URL or an embedded-data (blob:/data:) reference.
type MediaRef struct {
	Kind    MediaKind `json:"type"`
	Locator string    `json:"url"`
}

// GenerationRequest carries everything the automation engine needs for one
// invocation. It is constructed once per call and never mutated.
type GenerationRequest struct {
	Prompt      string
	Destination string
	Timeout     time.Duration
}

// Validate checks the request against the engine's preconditions.
func (r GenerationRequest) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("prompt must not be empty")
	}
	if r.Destination == "" {
		return fmt.Errorf("destination must not be empty")
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("timeout budget must be positive, got %s", r.Timeout)
	}
	return nil
}

// GenerationOutcome is the sole result type of the automation engine. Every
// invocation collapses into exactly one outcome.
//
// Invariants: Output is non-empty iff Status == success; ErrorDetail is set
// iff Status is failed or error.
type GenerationOutcome struct {
	Status      GenerationStatus `json:"status"`
	Prompt      string           `json:"prompt"`
	Destination string           `json:"site"`
	Output      []MediaRef       `json:"output"`
	ErrorDetail string           `json:"error,omitempty"`
}
