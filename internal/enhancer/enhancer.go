// internal/enhancer/enhancer.go
package enhancer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/voidhaze7x/genweaver/internal/config"
)

// Enhancer rewrites a user prompt into a richer one before it is handed to a
// generator. Implementations must be safe for concurrent use.
type Enhancer interface {
	Enhance(ctx context.Context, prompt string) (string, error)
}

// Supported provider names.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// instruction wraps the user prompt for the enhancement model. The model is
// told to answer with the enhanced prompt only; anything chattier would leak
// into the generation request verbatim.
func instruction(prompt string) string {
	return "Enhance this prompt for AI image/video generation. " +
		"Make it more detailed and descriptive: " + prompt +
		". Return only the enhanced prompt, no explanations."
}

// New builds an Enhancer for the configured provider.
func New(cfg config.EnhancerConfig, logger *zap.Logger) (Enhancer, error) {
	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaEnhancer(cfg, logger), nil
	case ProviderGemini:
		return NewGeminiEnhancer(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown enhancer provider: '%s'. Supported: [%s, %s]",
			cfg.Provider, ProviderOllama, ProviderGemini)
	}
}

// EnhanceOrOriginal runs the enhancer and falls back to the original prompt on
// any failure. Enhancement is an optimization, never a gate: a generation
// request must not die because the enhancement backend is down.
func EnhanceOrOriginal(ctx context.Context, e Enhancer, logger *zap.Logger, prompt string) string {
	enhanced, err := e.Enhance(ctx, prompt)
	if err != nil {
		logger.Warn("Prompt enhancement failed, using original prompt.", zap.Error(err))
		return prompt
	}
	enhanced = strings.TrimSpace(enhanced)
	if enhanced == "" {
		return prompt
	}
	return enhanced
}
