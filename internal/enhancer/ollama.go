// internal/enhancer/ollama.go
package enhancer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/voidhaze7x/genweaver/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OllamaEnhancer talks to a local Ollama daemon over its generate endpoint.
type OllamaEnhancer struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaEnhancer initializes the client. Zero timeout falls back to 30s.
func NewOllamaEnhancer(cfg config.EnhancerConfig, logger *zap.Logger) *OllamaEnhancer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaEnhancer{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("enhancer.ollama"),
	}
}

// Enhance sends the wrapped prompt to Ollama and returns the model's reply.
func (o *OllamaEnhancer) Enhance(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  o.model,
		Prompt: instruction(prompt),
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var payload ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}
	if strings.TrimSpace(payload.Response) == "" {
		return "", fmt.Errorf("ollama returned an empty response")
	}

	o.logger.Info("Prompt enhancement complete (Ollama)",
		zap.String("model", o.model),
		zap.Duration("duration", time.Since(start)),
	)
	return strings.TrimSpace(payload.Response), nil
}
