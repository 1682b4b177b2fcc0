package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"license-watch-go/db"
)

func daysOut(now time.Time, days int) *time.Time {
	t := now.Add(time.Duration(days) * 24 * time.Hour)
	return &t
}

func TestPriorityScore(t *testing.T) {
	now := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    string
		expiresAt *time.Time
		want      int
	}{
		{"no expiration, active", db.LicenseActive, nil, 0},
		{"far out, active", db.LicenseActive, daysOut(now, 200), 0},
		{"91 days, no band", db.LicenseActive, daysOut(now, 91), 0},
		{"90 days", db.LicenseActive, daysOut(now, 90), 1},
		{"61 days", db.LicenseActive, daysOut(now, 61), 1},
		{"60 days", db.LicenseActive, daysOut(now, 60), 3},
		{"31 days", db.LicenseActive, daysOut(now, 31), 3},
		{"30 days", db.LicenseActive, daysOut(now, 30), 5},
		{"tomorrow", db.LicenseActive, daysOut(now, 1), 5},
		{"already expired", db.LicenseActive, daysOut(now, -10), 5},
		{"flagged, no expiration", db.LicenseFlagged, nil, 5},
		{"needs manual, no expiration", db.LicenseNeedsManual, nil, 3},
		{"flagged and imminent", db.LicenseFlagged, daysOut(now, 5), 10},
		{"flagged and 60 days", db.LicenseFlagged, daysOut(now, 45), 8},
		{"needs manual and imminent", db.LicenseNeedsManual, daysOut(now, 10), 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityScore(tt.status, tt.expiresAt, now))
		})
	}
}

func TestPriorityScoreCapped(t *testing.T) {
	now := time.Now().UTC()
	expired := now.Add(-24 * time.Hour)
	score := PriorityScore(db.LicenseFlagged, &expired, now)
	assert.Equal(t, maxPriority, score)
}

// Closer expirations never score lower than farther ones.
func TestPriorityScoreMonotonicInUrgency(t *testing.T) {
	now := time.Now().UTC()
	prev := maxPriority + 1
	for days := -5; days <= 120; days += 5 {
		exp := now.Add(time.Duration(days) * 24 * time.Hour)
		score := PriorityScore(db.LicenseActive, &exp, now)
		assert.LessOrEqual(t, score, prev, "score at %d days", days)
		prev = score
	}
}

func TestDueDate(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now.AddDate(0, 0, 14), DueDate(now))
}
