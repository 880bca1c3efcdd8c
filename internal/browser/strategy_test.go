package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidhaze7x/genweaver/api/schemas"
)

func TestTableSelector_KnownDestinations(t *testing.T) {
	t.Parallel()
	sel := DefaultSelector()

	cases := []struct {
		destination string
		want        string
	}{
		{"https://lmarena.ai", "lmarena"},
		{"https://lmarena.ai/?chat-modality=image", "lmarena"},
		{"https://huggingface.co/spaces/someone/sdxl", "huggingface"},
		{"https://replicate.com/stability-ai/sdxl", "replicate"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sel.Select(tc.destination).Name(), tc.destination)
	}
}

func TestTableSelector_UnknownDestinationFallsBackToGeneric(t *testing.T) {
	t.Parallel()
	sel := DefaultSelector()
	assert.Equal(t, "generic", sel.Select("https://brand-new-generator.example.com").Name())
}

func TestTableSelector_LongestPatternWins(t *testing.T) {
	t.Parallel()
	sel := &TableSelector{
		entries: []tableEntry{
			{pattern: "example.com", build: NewGenericStrategy},
			{pattern: "studio.example.com", build: NewLmarenaStrategy},
		},
		fallback: NewReplicateStrategy,
	}
	assert.Equal(t, "lmarena", sel.Select("https://studio.example.com/app").Name())
	assert.Equal(t, "generic", sel.Select("https://example.com").Name())
}

func TestExecuteStrategy_NoInputField(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver()
	// Page renders, but none of the input candidates ever appear.
	drv.visible[`button[type="submit"]`] = true

	_, err := ExecuteStrategy(context.Background(), testInteractor(drv), NewGenericStrategy(), "p", 50*time.Millisecond)
	require.ErrorIs(t, err, ErrNoInputField)
	assert.Empty(t, drv.clicked, "submit must not run after the input probe misses")
}

func TestExecuteStrategy_NoSubmitButton(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver()
	drv.visible["textarea"] = true

	_, err := ExecuteStrategy(context.Background(), testInteractor(drv), NewGenericStrategy(), "p", 50*time.Millisecond)
	require.ErrorIs(t, err, ErrNoSubmitButton)
	assert.Equal(t, "p", drv.filledWith["textarea"])
}

func TestExecuteStrategy_NoOutputDetected(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver()
	drv.visible["textarea"] = true
	drv.visible[`button[type="submit"]`] = true

	_, err := ExecuteStrategy(context.Background(), testInteractor(drv), NewGenericStrategy(), "p", 30*time.Millisecond)
	require.ErrorIs(t, err, ErrNoOutputDetected)
}

func TestExecuteStrategy_FullSequence(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver()
	drv.visible["textarea"] = true
	drv.visible[`button[type="submit"]`] = true
	drv.visible["img"] = true
	drv.attrs["img|src"] = []string{"blob:generated-1"}

	refs, err := ExecuteStrategy(context.Background(), testInteractor(drv), NewGenericStrategy(), "a red fox", 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, schemas.MediaImage, refs[0].Kind)
	assert.Equal(t, "a red fox", drv.filledWith["textarea"])
	assert.Equal(t, []string{`button[type="submit"]`}, drv.clicked)
}

func TestExecuteStrategy_ExtractionErrorIsNotAStrategyFailure(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver()
	drv.visible["textarea"] = true
	drv.visible[`button[type="submit"]`] = true
	drv.visible["img"] = true
	drv.attrErr = errors.New("target crashed")

	_, err := ExecuteStrategy(context.Background(), testInteractor(drv), NewGenericStrategy(), "p", 50*time.Millisecond)
	require.Error(t, err)
	assert.False(t, isStrategyFailure(err))
}

func TestLmarenaAccept_FiltersStaticImagesKeepsVideos(t *testing.T) {
	t.Parallel()
	plan, ok := NewLmarenaStrategy().(*sitePlan)
	require.True(t, ok)

	assert.True(t, plan.accept(schemas.MediaImage, "blob:https://lmarena.ai/abc"))
	assert.True(t, plan.accept(schemas.MediaImage, "data:image/png;base64,xyz"))
	assert.True(t, plan.accept(schemas.MediaImage, "https://cdn.lmarena.ai/generated/1.png"))
	assert.False(t, plan.accept(schemas.MediaImage, "https://lmarena.ai/logo.png"))
	assert.True(t, plan.accept(schemas.MediaVideo, "https://lmarena.ai/anything.mp4"))
}

func TestReplicateAccept_RequiresReplicateLocator(t *testing.T) {
	t.Parallel()
	plan, ok := NewReplicateStrategy().(*sitePlan)
	require.True(t, ok)

	assert.True(t, plan.accept(schemas.MediaImage, "https://replicate.delivery/pbxt/out.png"))
	assert.False(t, plan.accept(schemas.MediaImage, "https://cdn.other.com/out.png"))
}

func TestGenericAccept_ExcludesInlineSVG(t *testing.T) {
	t.Parallel()
	plan, ok := NewGenericStrategy().(*sitePlan)
	require.True(t, ok)

	assert.False(t, plan.accept(schemas.MediaImage, "data:image/svg+xml;base64,abc"))
	assert.True(t, plan.accept(schemas.MediaImage, "data:image/png;base64,abc"))
	assert.True(t, plan.accept(schemas.MediaImage, "https://any.example.com/x.png"))
}

func TestButtonWithLabel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `//button[contains(., "Generate")]`, buttonWithLabel("Generate"))
}
