package db

import (
	"context"
	"encoding/json"
	"fmt"

	"license-watch-go/scrapers"
)

// Verification methods recorded per attempt.
const (
	MethodScrape  = "scrape"  // adapter-driven lookup
	MethodPassive = "passive" // placeholder; the source will notify us
)

// RecordResult persists one canonical lookup outcome, success or typed
// failure; every request leaves exactly one record.
func (d *DB) RecordResult(ctx context.Context, licenseID int64, jobID string, res scrapers.Result) error {
	raw, err := json.Marshal(res.RawFields)
	if err != nil {
		return fmt.Errorf("db: marshal raw fields: %w", err)
	}
	var expiration any
	if res.ExpirationDate != "" {
		expiration = res.ExpirationDate
	}
	var job any
	if jobID != "" {
		job = jobID
	}
	_, err = d.pool.ExecContext(ctx,
		`INSERT INTO verifications
		 (license_id, job_id, method, success, result_status, expiration_date,
		  unencumbered, failure_kind, failure_detail, raw_fields)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		licenseID, job, MethodScrape, res.Success, string(res.Status), expiration,
		res.Unencumbered, string(res.FailureKind), res.FailureDetail, raw)
	return err
}

// RecordPassivePlaceholder notes that the license is covered by passive
// enrollment this sweep; no lookup was attempted because the source will
// notify us of any change.
func (d *DB) RecordPassivePlaceholder(ctx context.Context, licenseID int64, jobID string) error {
	var job any
	if jobID != "" {
		job = jobID
	}
	_, err := d.pool.ExecContext(ctx,
		`INSERT INTO verifications (license_id, job_id, method, success, result_status)
		 VALUES ($1, $2, $3, TRUE, 'pending_notification')`,
		licenseID, job, MethodPassive)
	return err
}
