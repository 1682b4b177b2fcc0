// Package db is the Postgres implementation of the engine's external
// collaborators: the license roster, review-task sink, verification
// records, job progress, source catalog, and passive enrollments.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"license-watch-go/config"
)

type DB struct {
	pool *sql.DB
}

func New(cfg *config.Config) (*DB, error) {
	dsn := cfg.DatabaseURL
	// Internal Postgres deployments typically don't terminate SSL;
	// make sure sslmode is explicit either way.
	if !strings.Contains(dsn, "sslmode=") {
		if strings.Contains(dsn, "?") {
			dsn += "&sslmode=disable"
		} else {
			dsn += "?sslmode=disable"
		}
	}

	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open failed: %w", err)
	}

	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(5)
	pool.SetConnMaxLifetime(30 * time.Minute)

	// Retry the first ping; the service may start before Postgres is
	// ready to accept connections.
	var pingErr error
	for attempt := 1; attempt <= 5; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pingErr = pool.PingContext(ctx)
		cancel()
		if pingErr == nil {
			break
		}
		log.Warn().Int("attempt", attempt).Err(pingErr).Msg("db ping failed")
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
	if pingErr != nil {
		return nil, fmt.Errorf("db: ping failed after 5 attempts: %w", pingErr)
	}

	log.Info().Msg("database connected")
	return &DB{pool: pool}, nil
}

func (d *DB) Close() error {
	return d.pool.Close()
}
