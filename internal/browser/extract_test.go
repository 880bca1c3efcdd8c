package browser

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidhaze7x/genweaver/api/schemas"
)

func TestNormalize_DeduplicatesInFirstSeenOrder(t *testing.T) {
	t.Parallel()
	refs := []schemas.MediaRef{
		{Kind: schemas.MediaImage, Locator: "blob:a"},
		{Kind: schemas.MediaImage, Locator: "blob:b"},
		{Kind: schemas.MediaImage, Locator: "blob:a"},
		{Kind: schemas.MediaVideo, Locator: "blob:c"},
		{Kind: schemas.MediaVideo, Locator: "blob:b"},
	}

	got := Normalize(refs)

	want := []schemas.MediaRef{
		{Kind: schemas.MediaImage, Locator: "blob:a"},
		{Kind: schemas.MediaImage, Locator: "blob:b"},
		{Kind: schemas.MediaVideo, Locator: "blob:c"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("normalized sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_CapsTotalLength(t *testing.T) {
	t.Parallel()
	var refs []schemas.MediaRef
	for _, loc := range []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"} {
		refs = append(refs, schemas.MediaRef{Kind: schemas.MediaImage, Locator: loc})
	}

	got := Normalize(refs)

	require.Len(t, got, maxOutputs)
	assert.Equal(t, "u1", got[0].Locator)
	assert.Equal(t, "u5", got[maxOutputs-1].Locator)
}

func TestNormalize_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Normalize(nil))
}

// The filter runs before truncation, so the kept tail contains only accepted
// locators.
func TestExtractMedia_FilterThenKeepLast(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver()
	drv.attrs["img|src"] = []string{
		"/static/logo.png", // rejected by the filter below
		"blob:one", "blob:two", "blob:three", "blob:four",
	}
	drv.attrs["video|src"] = []string{"blob:v1", "blob:v2", "blob:v3"}

	accept := func(_ schemas.MediaKind, loc string) bool {
		return loc != "/static/logo.png"
	}

	got, err := extractMedia(context.Background(), testInteractor(drv), accept)
	require.NoError(t, err)

	want := []schemas.MediaRef{
		{Kind: schemas.MediaImage, Locator: "blob:two"},
		{Kind: schemas.MediaImage, Locator: "blob:three"},
		{Kind: schemas.MediaImage, Locator: "blob:four"},
		{Kind: schemas.MediaVideo, Locator: "blob:v2"},
		{Kind: schemas.MediaVideo, Locator: "blob:v3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("extraction mismatch (-want +got):\n%s", diff)
	}
}

// Repeated extraction over the same static DOM snapshot is deterministic.
func TestExtractMedia_Deterministic(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver()
	drv.attrs["img|src"] = []string{"blob:a", "blob:b"}
	drv.attrs["video|src"] = []string{"blob:v"}

	it := testInteractor(drv)
	first, err := extractMedia(context.Background(), it, acceptAny)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := extractMedia(context.Background(), it, acceptAny)
		require.NoError(t, err)
		if diff := cmp.Diff(Normalize(first), Normalize(again)); diff != "" {
			t.Fatalf("extraction diverged on iteration %d (-first +again):\n%s", i, diff)
		}
	}
}

func TestExtractMedia_NilFilterAcceptsEverything(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver()
	drv.attrs["img|src"] = []string{"data:image/svg+xml;base64,abc"}

	got, err := extractMedia(context.Background(), testInteractor(drv), nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
