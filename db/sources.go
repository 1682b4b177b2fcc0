package db

import (
	"context"
	"database/sql"
	"errors"
)

// ActiveSourceID returns the active verification source for a
// (jurisdiction, category) pair, if one is catalogued. Zero or one per
// pair; a missing source just means the task carries no source link.
func (d *DB) ActiveSourceID(ctx context.Context, jurisdiction, category string) (int64, bool, error) {
	var id int64
	err := d.pool.QueryRowContext(ctx,
		`SELECT id FROM verification_sources
		 WHERE jurisdiction = $1 AND category = $2 AND active
		 LIMIT 1`, jurisdiction, category).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
