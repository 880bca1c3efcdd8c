// internal/service/server.go

// Package service exposes the generation engine over HTTP: prompt
// enhancement, first-party (ComfyUI) generation, and web automation against
// third-party generator sites.
package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/voidhaze7x/genweaver/api/schemas"
	"github.com/voidhaze7x/genweaver/internal/config"
	"github.com/voidhaze7x/genweaver/internal/enhancer"
	"github.com/voidhaze7x/genweaver/internal/store"
)

// Version is the service version reported by the info endpoint.
const Version = "0.2.0"

// Generator runs one browser automation attempt. Satisfied by
// browser.Runner.
type Generator interface {
	Run(ctx context.Context, req schemas.GenerationRequest) schemas.GenerationOutcome
}

// ComfyBackend is the first-party backend surface the handlers need.
// Implemented by wrapping backend.Client.
type ComfyBackend interface {
	Health(ctx context.Context) error
	SubmitImage(ctx context.Context, prompt string) (string, error)
	SubmitVideo(ctx context.Context, prompt string, durationSec int) (string, error)
}

// Server wires the HTTP surface around the engine components.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	engine     *gin.Engine
	httpServer *http.Server

	generator Generator
	enhancer  enhancer.Enhancer
	backend   ComfyBackend
	usage     store.UsageStore

	// limiter throttles browser-automation generations. Each run holds a whole
	// Chrome process; unbounded concurrency would exhaust the host.
	limiter *rate.Limiter

	startTime time.Time
}

// Deps carries the constructed engine components into the server.
type Deps struct {
	Generator Generator
	Enhancer  enhancer.Enhancer
	Backend   ComfyBackend
	Usage     store.UsageStore
}

// NewServer builds the HTTP server. It does not start listening.
func NewServer(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowOrigins) == 1 && cfg.Server.AllowOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	engine.Use(cors.New(corsConfig))

	perMinute := cfg.Generator.RatePerMinute
	if perMinute <= 0 {
		perMinute = 6
	}
	burst := cfg.Generator.Burst
	if burst <= 0 {
		burst = 1
	}

	usage := deps.Usage
	if usage == nil {
		usage = store.NoopStore{}
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger.Named("service"),
		engine:    engine,
		generator: deps.Generator,
		enhancer:  deps.Enhancer,
		backend:   deps.Backend,
		usage:     usage,
		limiter:   rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		startTime: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: engine,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/", s.handleInfo)
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/stats", s.handleStats)
	s.engine.POST("/enhance-prompt", s.handleEnhancePrompt)
	s.engine.POST("/generate-image", s.handleGenerateImage)
	s.engine.POST("/generate-video", s.handleGenerateVideo)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start blocks until the listener fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening.", zap.String("addr", s.cfg.Server.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("HTTP server shutting down.")
	return s.httpServer.Shutdown(ctx)
}
