package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// EnsureSchema creates the engine's tables if they don't exist. The
// surrounding dashboard owns migrations for its own tables; these are
// only the ones this core reads and writes.
func (d *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS licenses (
			id BIGSERIAL PRIMARY KEY,
			holder_name TEXT NOT NULL DEFAULT '',
			license_number TEXT NOT NULL,
			jurisdiction TEXT NOT NULL,
			credential_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			expires_at DATE,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			last_checked_at TIMESTAMPTZ,
			last_verified_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS passive_enrollments (
			license_id BIGINT PRIMARY KEY REFERENCES licenses(id),
			active BOOLEAN NOT NULL DEFAULT TRUE,
			enrolled_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS verification_sources (
			id BIGSERIAL PRIMARY KEY,
			jurisdiction TEXT NOT NULL,
			category TEXT NOT NULL,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS review_tasks (
			id BIGSERIAL PRIMARY KEY,
			license_id BIGINT NOT NULL REFERENCES licenses(id),
			source_id BIGINT REFERENCES verification_sources(id),
			priority INT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			due_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_review_tasks_pending
			ON review_tasks (license_id) WHERE status = 'pending'`,
		`CREATE TABLE IF NOT EXISTS verifications (
			id BIGSERIAL PRIMARY KEY,
			license_id BIGINT NOT NULL REFERENCES licenses(id),
			job_id UUID,
			method TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			result_status TEXT NOT NULL DEFAULT '',
			expiration_date DATE,
			unencumbered BOOLEAN,
			failure_kind TEXT NOT NULL DEFAULT '',
			failure_detail TEXT NOT NULL DEFAULT '',
			raw_fields JSONB,
			verified_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS verification_jobs (
			id UUID PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'pending',
			total_licenses INT NOT NULL DEFAULT 0,
			processed INT NOT NULL DEFAULT 0,
			auto_verified INT NOT NULL DEFAULT 0,
			tasks_created INT NOT NULL DEFAULT 0,
			error_count INT NOT NULL DEFAULT 0,
			error_details JSONB NOT NULL DEFAULT '[]',
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)`,
	}

	for _, stmt := range stmts {
		if _, err := d.pool.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db: ensure schema: %w", err)
		}
	}
	log.Info().Msg("schema ensured")
	return nil
}
