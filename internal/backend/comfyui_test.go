package backend

import (
	"context"
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
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func testClient(url string) *Client {
	return NewClient(config.BackendConfig{
		URL:           url,
		HealthTimeout: time.Second,
		SubmitTimeout: time.Second,
	}, zap.NewNop())
}

func TestHealth_OK(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/system_stats", r.URL.Path)
		_, _ = w.Write([]byte(`{"system": {"os": "posix"}}`))
	}))
	defer srv.Close()

	require.NoError(t, testClient(srv.URL).Health(context.Background()))
}

func TestHealth_DaemonDown(t *testing.T) {
	t.Parallel()
	err := testClient("http://127.0.0.1:1").Health(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestHealth_NonOKStatusIsUnavailable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "starting up", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := testClient(srv.URL).Health(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestSubmit_QueuesWorkflow(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/prompt", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req submitRequest
		require.NoError(t, json.Unmarshal(body, &req))
		require.Contains(t, req.Prompt, "6")
		assert.Equal(t, "CLIPTextEncode", req.Prompt["6"].ClassType)
		assert.Equal(t, "a red fox", req.Prompt["6"].Inputs["text"])

		_, _ = w.Write([]byte(`{"prompt_id": "abc-123"}`))
	}))
	defer srv.Close()

	id, err := testClient(srv.URL).Submit(context.Background(), TextToImageWorkflow("a red fox", 0, 0, 42))
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)
}

func TestSubmit_RejectedWorkflow(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "invalid node"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Submit(context.Background(), TextToImageWorkflow("p", 0, 0, 1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "status 400")
}

func TestSubmit_Timeout(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(config.BackendConfig{
		URL:           srv.URL,
		SubmitTimeout: 50 * time.Millisecond,
	}, zap.NewNop())

	_, err := c.Submit(context.Background(), TextToImageWorkflow("p", 0, 0, 1))
	require.ErrorIs(t, err, ErrTimeout)
}

func TestSubmit_MissingPromptID(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Submit(context.Background(), TextToImageWorkflow("p", 0, 0, 1))
	require.Error(t, err)
}

func TestTextToVideoWorkflow_DurationBecomesFrameCount(t *testing.T) {
	t.Parallel()
	wf := TextToVideoWorkflow("a fox running", 8, 7)

	latent := wf["5"].Inputs
	assert.Equal(t, "EmptyLatentVideo", wf["5"].ClassType)
	assert.Equal(t, 8*videoFPS, latent["length"])
	assert.Equal(t, "a fox running", wf["6"].Inputs["text"])
	assert.Equal(t, "SaveAnimatedWEBP", wf["9"].ClassType)
	assert.Equal(t, videoFPS, wf["9"].Inputs["fps"])
}

func TestTextToVideoWorkflow_DefaultDuration(t *testing.T) {
	t.Parallel()
	for _, dur := range []int{0, -3} {
		wf := TextToVideoWorkflow("p", dur, 1)
		assert.Equal(t, defaultDuration*videoFPS, wf["5"].Inputs["length"])
	}
}

func TestTextToImageWorkflow_Defaults(t *testing.T) {
	t.Parallel()
	wf := TextToImageWorkflow("p", 0, 0, 7)
	latent := wf["5"].Inputs
	assert.Equal(t, 1024, latent["width"])
	assert.Equal(t, 1024, latent["height"])
	assert.Equal(t, "blurry, low quality, watermark", wf["7"].Inputs["text"])
}
