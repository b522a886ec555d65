package scoreboarddb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const connectMaxElapsed = 30 * time.Second

func newConnectBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectMaxElapsed
	return bo
}

// pingWithRetry retries ping with exponential backoff until it succeeds,
// ctx ends, or the retry budget runs out.
func pingWithRetry(ctx context.Context, logger *slog.Logger, target string, ping func(context.Context) error) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := ping(ctx)
		if err != nil {
			logger.WarnContext(ctx, "Archive store not reachable yet",
				"target", target,
				"attempt", attempt,
				"error", err,
			)
		}
		return err
	}, backoff.WithContext(newConnectBackoff(), ctx))
}

// OpenPostgres connects to dsn and waits until the server answers.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*bun.DB, error) {
	pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(pgdb, pgdialect.New())
	if err := pingWithRetry(ctx, logger, "postgres", db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// OpenRedis connects to redisURL and waits until the server answers.
func OpenRedis(ctx context.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := pingWithRetry(ctx, logger, "redis", ping); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
