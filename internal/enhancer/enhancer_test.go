package enhancer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/voidhaze7x/genweaver/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// net/http keeps idle connections in a background goroutine.
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func ollamaConfig(url string) config.EnhancerConfig {
	return config.EnhancerConfig{
		Provider: ProviderOllama,
		URL:      url,
		Model:    "llama3.2",
		Timeout:  2 * time.Second,
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	t.Parallel()
	_, err := New(config.EnhancerConfig{Provider: "dall-e"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown enhancer provider")
}

func TestNew_GeminiRequiresAPIKey(t *testing.T) {
	t.Parallel()
	_, err := New(config.EnhancerConfig{Provider: ProviderGemini}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestOllamaEnhance_Success(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/generate", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req ollamaGenerateRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.False(t, req.Stream)
		assert.Contains(t, req.Prompt, "a red fox")
		assert.Contains(t, req.Prompt, "Return only the enhanced prompt")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response": "  a majestic red fox in freshly fallen snow, golden hour\n", "done": true}`))
	}))
	defer srv.Close()

	e := NewOllamaEnhancer(ollamaConfig(srv.URL), zap.NewNop())
	got, err := e.Enhance(context.Background(), "a red fox")
	require.NoError(t, err)
	assert.Equal(t, "a majestic red fox in freshly fallen snow, golden hour", got)
}

func TestOllamaEnhance_NonOKStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEnhancer(ollamaConfig(srv.URL), zap.NewNop())
	_, err := e.Enhance(context.Background(), "a red fox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestOllamaEnhance_EmptyResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response": "   ", "done": true}`))
	}))
	defer srv.Close()

	e := NewOllamaEnhancer(ollamaConfig(srv.URL), zap.NewNop())
	_, err := e.Enhance(context.Background(), "a red fox")
	require.Error(t, err)
}

func TestOllamaEnhance_ConnectionRefused(t *testing.T) {
	t.Parallel()
	e := NewOllamaEnhancer(ollamaConfig("http://127.0.0.1:1"), zap.NewNop())
	_, err := e.Enhance(context.Background(), "a red fox")
	require.Error(t, err)
}

type staticEnhancer struct {
	out string
	err error
}

func (s staticEnhancer) Enhance(context.Context, string) (string, error) { return s.out, s.err }

func TestEnhanceOrOriginal(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		e    Enhancer
		want string
	}{
		{"enhanced", staticEnhancer{out: "better prompt"}, "better prompt"},
		{"error falls back", staticEnhancer{err: errors.New("down")}, "original"},
		{"blank falls back", staticEnhancer{out: "  \n"}, "original"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := EnhanceOrOriginal(context.Background(), tc.e, zap.NewNop(), "original")
			assert.Equal(t, tc.want, got)
		})
	}
}
