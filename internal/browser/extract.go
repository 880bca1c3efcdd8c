// internal/browser/extract.go
package browser

import (
	"context"
	"fmt"

	"github.com/voidhaze7x/genweaver/api/schemas"
)

// Extraction policy shared by every strategy: generated results are assumed to
// be appended after the page's static chrome, so only the DOM tail of each
// kind is kept. Fragile against layout changes, but no ground-truth marker for
// "generated vs. static" exists on these pages.
const (
	keepImages = 3
	keepVideos = 2

	// maxOutputs is the defensive bound applied by the normalizer.
	maxOutputs = 5
)

// acceptFunc is a variant's post-extraction locator filter.
type acceptFunc func(kind schemas.MediaKind, locator string) bool

func acceptAny(schemas.MediaKind, string) bool { return true }

// extractMedia collects all image and video locators present in the DOM,
// applies the variant's filter, keeps the last N of each kind in DOM order,
// and classifies each survivor by tag. An empty result is not an error.
func extractMedia(ctx context.Context, it *Interactor, accept acceptFunc) ([]schemas.MediaRef, error) {
	if accept == nil {
		accept = acceptAny
	}

	images, err := it.CollectAttributes(ctx, "img", "src")
	if err != nil {
		return nil, fmt.Errorf("image extraction failed: %w", err)
	}
	videos, err := it.CollectAttributes(ctx, "video", "src")
	if err != nil {
		return nil, fmt.Errorf("video extraction failed: %w", err)
	}

	images = keepLast(filterLocators(schemas.MediaImage, images, accept), keepImages)
	videos = keepLast(filterLocators(schemas.MediaVideo, videos, accept), keepVideos)

	refs := make([]schemas.MediaRef, 0, len(images)+len(videos))
	for _, loc := range images {
		refs = append(refs, schemas.MediaRef{Kind: schemas.MediaImage, Locator: loc})
	}
	for _, loc := range videos {
		refs = append(refs, schemas.MediaRef{Kind: schemas.MediaVideo, Locator: loc})
	}
	return refs, nil
}

func filterLocators(kind schemas.MediaKind, locators []string, accept acceptFunc) []string {
	kept := locators[:0:0]
	for _, loc := range locators {
		if accept(kind, loc) {
			kept = append(kept, loc)
		}
	}
	return kept
}

func keepLast(values []string, n int) []string {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// Normalize deduplicates media references by exact locator equality,
// preserving first-seen order, and caps the total output length. Fuzzy
// matching is deliberately not attempted: generated-asset URLs are unique per
// render.
func Normalize(refs []schemas.MediaRef) []schemas.MediaRef {
	seen := make(map[string]struct{}, len(refs))
	out := make([]schemas.MediaRef, 0, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref.Locator]; dup {
			continue
		}
		seen[ref.Locator] = struct{}{}
		out = append(out, ref)
		if len(out) == maxOutputs {
			break
		}
	}
	return out
}
