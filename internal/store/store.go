// internal/store/store.go

// Package store persists API usage counters in PostgreSQL. Counters are an
// operational nicety, not a correctness requirement: the service runs fine
// without a database, in which case every store operation is a no-op.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/voidhaze7x/genweaver/api/schemas"
)

// DBPool abstracts pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UsageStore is the counter repository interface consumed by the service
// layer.
type UsageStore interface {
	Increment(ctx context.Context, counter string) error
	Stats(ctx context.Context) (*schemas.UsageStats, error)
}

// Store is the PostgreSQL UsageStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS api_usage (
    endpoint  TEXT PRIMARY KEY,
    count     BIGINT NOT NULL DEFAULT 0,
    last_used TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS daily_stats (
    date                TEXT NOT NULL,
    endpoint            TEXT NOT NULL,
    count               BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (date, endpoint)
);`

// EnsureSchema creates the counter tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create usage schema: %w", err)
	}
	return nil
}

// Increment bumps the all-time counter and today's rollup for one endpoint.
func (s *Store) Increment(ctx context.Context, counter string) error {
	now := time.Now().UTC()

	const usageSQL = `
        INSERT INTO api_usage (endpoint, count, last_used)
        VALUES ($1, 1, $2)
        ON CONFLICT (endpoint) DO UPDATE SET
            count = api_usage.count + 1,
            last_used = EXCLUDED.last_used;`
	if _, err := s.pool.Exec(ctx, usageSQL, counter, now); err != nil {
		return fmt.Errorf("failed to increment usage counter %q: %w", counter, err)
	}

	const dailySQL = `
        INSERT INTO daily_stats (date, endpoint, count)
        VALUES ($1, $2, 1)
        ON CONFLICT (date, endpoint) DO UPDATE SET
            count = daily_stats.count + 1;`
	if _, err := s.pool.Exec(ctx, dailySQL, now.Format("2006-01-02"), counter); err != nil {
		return fmt.Errorf("failed to increment daily counter %q: %w", counter, err)
	}
	return nil
}

// Stats aggregates the all-time counters, today's rollup, and the last seven
// days of daily rollups.
func (s *Store) Stats(ctx context.Context) (*schemas.UsageStats, error) {
	now := time.Now().UTC()
	stats := &schemas.UsageStats{
		Endpoints: make(map[string]schemas.EndpointUsage),
		Today:     schemas.DailyUsage{Date: now.Format("2006-01-02")},
		Timestamp: now,
	}

	rows, err := s.pool.Query(ctx, `SELECT endpoint, count, last_used FROM api_usage ORDER BY endpoint;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage counters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var endpoint string
		var usage schemas.EndpointUsage
		if err := rows.Scan(&endpoint, &usage.Count, &usage.LastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		stats.Endpoints[endpoint] = usage
		stats.TotalAllTime += usage.Count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during usage row iteration: %w", err)
	}

	since := now.AddDate(0, 0, -6).Format("2006-01-02")
	dailyRows, err := s.pool.Query(ctx,
		`SELECT date, endpoint, count FROM daily_stats WHERE date >= $1 ORDER BY date DESC;`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily counters: %w", err)
	}
	defer dailyRows.Close()

	byDate := make(map[string]*schemas.DailyUsage)
	var order []string
	for dailyRows.Next() {
		var date, endpoint string
		var count int64
		if err := dailyRows.Scan(&date, &endpoint, &count); err != nil {
			return nil, fmt.Errorf("failed to scan daily row: %w", err)
		}
		day, ok := byDate[date]
		if !ok {
			day = &schemas.DailyUsage{Date: date}
			byDate[date] = day
			order = append(order, date)
		}
		day.TotalRequests += count
		switch endpoint {
		case schemas.CounterImageGenerations:
			day.ImageGenerations += count
		case schemas.CounterVideoGenerations:
			day.VideoGenerations += count
		case schemas.CounterPromptEnhancements:
			day.PromptEnhancements += count
		}
	}
	if err := dailyRows.Err(); err != nil {
		return nil, fmt.Errorf("error during daily row iteration: %w", err)
	}

	for _, date := range order {
		stats.LastSevenDay = append(stats.LastSevenDay, *byDate[date])
	}
	if day, ok := byDate[stats.Today.Date]; ok {
		stats.Today = *day
	}
	return stats, nil
}

// NoopStore satisfies UsageStore when no database is configured.
type NoopStore struct{}

func (NoopStore) Increment(context.Context, string) error { return nil }

func (NoopStore) Stats(context.Context) (*schemas.UsageStats, error) {
	return &schemas.UsageStats{
		Endpoints: map[string]schemas.EndpointUsage{},
		Today:     schemas.DailyUsage{Date: time.Now().UTC().Format("2006-01-02")},
		Timestamp: time.Now().UTC(),
	}, nil
}
