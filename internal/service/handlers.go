// internal/service/handlers.go
package service

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/voidhaze7x/genweaver/api/schemas"
	"github.com/voidhaze7x/genweaver/internal/enhancer"
)

// Generator names accepted by the generate endpoints.
const (
	GeneratorComfyUI = "comfyui"
	GeneratorWeb     = "web"
)

type enhanceRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

type enhanceResponse struct {
	OriginalPrompt string `json:"original_prompt"`
	EnhancedPrompt string `json:"enhanced_prompt"`
}

type generateRequest struct {
	Prompt    string `json:"prompt" binding:"required"`
	Generator string `json:"generator"`
	Site      string `json:"site"`
	// Enhance runs the prompt through the enhancer before generating.
	// Defaults to true; absent means enabled.
	Enhance *bool `json:"enhance"`
	// DurationSec is the requested clip length for video generation, seconds.
	DurationSec int `json:"duration"`
	// TimeoutSec overrides the configured generation budget, in seconds.
	TimeoutSec int `json:"timeout"`
}

func (r generateRequest) enhanceWanted() bool {
	return r.Enhance == nil || *r.Enhance
}

type queuedResponse struct {
	Status   string `json:"status"`
	PromptID string `json:"prompt_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "genweaver",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"GET /stats",
			"POST /enhance-prompt",
			"POST /generate-image",
			"POST /generate-video",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	backendState := "unconfigured"
	if s.backend != nil {
		backendState = "available"
		if err := s.backend.Health(c.Request.Context()); err != nil {
			backendState = "unavailable"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"comfyui":   backendState,
		"uptime":    time.Since(s.startTime).String(),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.usage.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("Stats query failed.", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load usage statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleEnhancePrompt(c *gin.Context) {
	var req enhanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "prompt is required"})
		return
	}

	enhanced := req.Prompt
	if s.enhancer != nil {
		enhanced = enhancer.EnhanceOrOriginal(c.Request.Context(), s.enhancer, s.logger, req.Prompt)
	}
	s.count(c, schemas.CounterPromptEnhancements)

	c.JSON(http.StatusOK, enhanceResponse{
		OriginalPrompt: req.Prompt,
		EnhancedPrompt: enhanced,
	})
}

func (s *Server) handleGenerateImage(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "prompt is required"})
		return
	}
	// Usage is counted per accepted request, not per successful generation.
	s.count(c, schemas.CounterImageGenerations)

	switch req.Generator {
	case "", GeneratorComfyUI:
		s.generateViaComfyUI(c, req, mediaImage)
	case GeneratorWeb:
		s.generateViaWeb(c, req)
	default:
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: "unknown generator: must be 'comfyui' or 'web'",
		})
	}
}

func (s *Server) handleGenerateVideo(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "prompt is required"})
		return
	}
	s.count(c, schemas.CounterVideoGenerations)

	switch req.Generator {
	case "", GeneratorComfyUI:
		s.generateViaComfyUI(c, req, mediaVideo)
	case GeneratorWeb:
		s.generateViaWeb(c, req)
	default:
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: "unknown generator: must be 'comfyui' or 'web'",
		})
	}
}

type backendMedia int

const (
	mediaImage backendMedia = iota
	mediaVideo
)

func (s *Server) generateViaComfyUI(c *gin.Context, req generateRequest, media backendMedia) {
	if s.backend == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "no comfyui backend configured"})
		return
	}
	if err := s.backend.Health(c.Request.Context()); err != nil {
		s.logger.Warn("ComfyUI health check failed.", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "comfyui backend unavailable"})
		return
	}

	prompt := s.effectivePrompt(c, req)

	var promptID string
	var err error
	if media == mediaVideo {
		promptID, err = s.backend.SubmitVideo(c.Request.Context(), prompt, req.DurationSec)
	} else {
		promptID, err = s.backend.SubmitImage(c.Request.Context(), prompt)
	}
	if err != nil {
		s.logger.Error("ComfyUI submission failed.", zap.Error(err))
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, queuedResponse{Status: "queued", PromptID: promptID})
}

func (s *Server) generateViaWeb(c *gin.Context, req generateRequest) {
	if s.generator == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "no web generator configured"})
		return
	}
	if !s.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, errorResponse{Error: "generation rate limit exceeded, retry later"})
		return
	}

	site := req.Site
	if site == "" {
		site = s.cfg.Generator.DefaultSite
	}
	timeout := s.cfg.Generator.Timeout
	if req.TimeoutSec > 0 {
		timeout = time.Duration(req.TimeoutSec) * time.Second
	}

	outcome := s.generator.Run(c.Request.Context(), schemas.GenerationRequest{
		Prompt:      s.effectivePrompt(c, req),
		Destination: site,
		Timeout:     timeout,
	})

	// The outcome is the response body regardless of status; HTTP 200 means
	// the engine ran, not that generation succeeded.
	c.JSON(http.StatusOK, outcome)
}

// effectivePrompt applies best-effort enhancement unless the request opted
// out.
func (s *Server) effectivePrompt(c *gin.Context, req generateRequest) string {
	if !req.enhanceWanted() || s.enhancer == nil {
		return req.Prompt
	}
	return enhancer.EnhanceOrOriginal(c.Request.Context(), s.enhancer, s.logger, req.Prompt)
}

// count bumps a usage counter without letting store trouble affect the
// request.
func (s *Server) count(c *gin.Context, counter string) {
	if err := s.usage.Increment(c.Request.Context(), counter); err != nil {
		s.logger.Warn("Usage counter increment failed.",
			zap.String("counter", counter), zap.Error(err))
	}
}
