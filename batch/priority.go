package batch

import (
	"time"

	"license-watch-go/db"
)

// reviewWindow is how long a human gets to work a task. Fixed at 14 days
// regardless of priority; priority orders the queue, the window does not.
const reviewWindow = 14 * 24 * time.Hour

const maxPriority = 10

// PriorityScore derives a 0-10 task priority from days-to-expiration and
// the roster status. At most one expiration band applies. An already
// expired license counts as the tightest band.
func PriorityScore(status string, expiresAt *time.Time, now time.Time) int {
	score := 0
	if expiresAt != nil {
		days := int(expiresAt.Sub(now).Hours() / 24)
		switch {
		case days <= 30:
			score += 5
		case days <= 60:
			score += 3
		case days <= 90:
			score += 1
		}
	}
	switch status {
	case db.LicenseFlagged:
		score += 5
	case db.LicenseNeedsManual:
		score += 3
	}
	if score > maxPriority {
		score = maxPriority
	}
	return score
}

// DueDate returns the task deadline for a task created now.
func DueDate(now time.Time) time.Time {
	return now.Add(reviewWindow)
}
