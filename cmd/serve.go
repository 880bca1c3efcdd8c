// cmd/serve.go
package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/voidhaze7x/genweaver/internal/backend"
	"github.com/voidhaze7x/genweaver/internal/browser"
	"github.com/voidhaze7x/genweaver/internal/enhancer"
	"github.com/voidhaze7x/genweaver/internal/observability"
	"github.com/voidhaze7x/genweaver/internal/service"
	"github.com/voidhaze7x/genweaver/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP generation service.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	usage, cleanup, err := buildUsageStore(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	enh, err := enhancer.New(cfg.Enhancer, logger)
	if err != nil {
		// The service degrades to pass-through enhancement rather than refusing
		// to start.
		logger.Warn("Enhancer unavailable, prompt enhancement disabled.", zap.Error(err))
		enh = nil
	}

	srv := service.NewServer(cfg, logger, service.Deps{
		Generator: browser.NewRunner(cfg, logger),
		Enhancer:  enh,
		Backend:   comfyAdapter{backend.NewClient(cfg.Backend, logger)},
		Usage:     usage,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("service terminated: %w", err)
	}
	logger.Info("Service stopped.")
	return nil
}

// buildUsageStore connects the counter store, or degrades to a no-op when no
// DSN is configured or the database is unreachable.
func buildUsageStore(ctx context.Context, logger *zap.Logger) (store.UsageStore, func(), error) {
	if cfg.Database.DSN == "" {
		logger.Info("No database configured; usage counters disabled.")
		return store.NoopStore{}, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		logger.Warn("Database unreachable; usage counters disabled.", zap.Error(err))
		return store.NoopStore{}, func() {}, nil
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// comfyAdapter narrows backend.Client to the service surface.
type comfyAdapter struct {
	client *backend.Client
}

func (a comfyAdapter) Health(ctx context.Context) error {
	return a.client.Health(ctx)
}

func (a comfyAdapter) SubmitImage(ctx context.Context, prompt string) (string, error) {
	wf := backend.TextToImageWorkflow(prompt, 0, 0, randomSeed())
	return a.client.Submit(ctx, wf)
}

func (a comfyAdapter) SubmitVideo(ctx context.Context, prompt string, durationSec int) (string, error) {
	wf := backend.TextToVideoWorkflow(prompt, durationSec, randomSeed())
	return a.client.Submit(ctx, wf)
}

func randomSeed() int64 {
	return rand.Int64()
}
