package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"license-watch-go/scrapers"
)

// Roster license statuses this core cares about. "flagged" and
// "needs_manual" raise review-task priority.
const (
	LicenseActive      = "active"
	LicenseFlagged     = "flagged"
	LicenseNeedsManual = "needs_manual"
)

// License is one roster row, read-only from this core's perspective.
type License struct {
	ID             int64
	HolderName     string
	LicenseNumber  string
	Jurisdiction   string
	CredentialType scrapers.CredentialType
	Status         string
	ExpiresAt      *time.Time
}

// CountActiveLicenses returns the number of non-archived licenses; the
// batch orchestrator persists it as the job's total at start.
func (d *DB) CountActiveLicenses(ctx context.Context) (int, error) {
	var n int
	err := d.pool.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM licenses WHERE NOT archived`).Scan(&n)
	return n, err
}

// ListActiveLicenses returns one fixed-size page of non-archived
// licenses with id > afterID, ordered by id. Keyset pagination keeps the
// sweep stable and resumable while rows churn underneath it.
func (d *DB) ListActiveLicenses(ctx context.Context, afterID int64, limit int) ([]License, error) {
	rows, err := d.pool.QueryContext(ctx,
		`SELECT id, holder_name, license_number, jurisdiction, credential_type, status, expires_at
		 FROM licenses
		 WHERE NOT archived AND id > $1
		 ORDER BY id
		 LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []License
	for rows.Next() {
		var lic License
		var cred string
		if err := rows.Scan(&lic.ID, &lic.HolderName, &lic.LicenseNumber,
			&lic.Jurisdiction, &cred, &lic.Status, &lic.ExpiresAt); err != nil {
			return nil, err
		}
		lic.CredentialType = scrapers.CredentialType(cred)
		out = append(out, lic)
	}
	return out, rows.Err()
}

// TouchLastChecked stamps the roster row after any automated check.
func (d *DB) TouchLastChecked(ctx context.Context, licenseID int64) error {
	_, err := d.pool.ExecContext(ctx,
		`UPDATE licenses SET last_checked_at = NOW() WHERE id = $1`, licenseID)
	return err
}

// TouchLastVerified stamps the roster row after a conclusive automated
// verification.
func (d *DB) TouchLastVerified(ctx context.Context, licenseID int64) error {
	_, err := d.pool.ExecContext(ctx,
		`UPDATE licenses SET last_verified_at = NOW(), last_checked_at = NOW() WHERE id = $1`, licenseID)
	return err
}

// IsPassivelyEnrolled reports whether the license is actively enrolled
// in a passive notification service (the source pushes status changes to
// us, so active polling is unnecessary).
func (d *DB) IsPassivelyEnrolled(ctx context.Context, licenseID int64) (bool, error) {
	var active bool
	err := d.pool.QueryRowContext(ctx,
		`SELECT active FROM passive_enrollments WHERE license_id = $1`, licenseID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return active, nil
}
