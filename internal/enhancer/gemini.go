// internal/enhancer/gemini.go
package enhancer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/voidhaze7x/genweaver/internal/config"
)

// GeminiEnhancer rewrites prompts through the Gemini API.
type GeminiEnhancer struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiEnhancer initializes the client. The API key is mandatory; there is
// no anonymous tier.
func NewGeminiEnhancer(cfg config.EnhancerConfig, logger *zap.Logger) (*GeminiEnhancer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiEnhancer{
		client: client,
		model:  model,
		logger: logger.Named("enhancer.gemini"),
	}, nil
}

// Enhance sends the wrapped prompt to Gemini and returns the model's reply.
func (g *GeminiEnhancer) Enhance(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(instruction(prompt)), nil)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}

	g.logger.Info("Prompt enhancement complete (Gemini)",
		zap.String("model", g.model),
		zap.Duration("duration", time.Since(start)),
	)
	return text, nil
}
