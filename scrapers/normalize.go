package scrapers

import (
	"strings"
	"time"
)

// ISODate is the canonical date layout for ExpirationDate.
const ISODate = "2006-01-02"

// statusKeywords are tried in order; the first group with a substring hit
// wins. Inactive/expired/suspended/revoked come before active because
// "inactive" contains "active" as a substring.
var statusKeywords = []struct {
	status Status
	words  []string
}{
	{StatusInactive, []string{"inactive", "lapsed"}},
	{StatusExpired, []string{"expired"}},
	{StatusSuspended, []string{"suspended"}},
	{StatusRevoked, []string{"revoked", "cancelled", "canceled"}},
	{StatusActive, []string{"active", "current", "valid"}},
}

// NormalizeStatus maps a free-text status fragment to a canonical Status.
// Anything unrecognized yields StatusUnknown, never an error.
func NormalizeStatus(raw string) Status {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return StatusUnknown
	}
	for _, group := range statusKeywords {
		for _, w := range group.words {
			if strings.Contains(lower, w) {
				return group.status
			}
		}
	}
	return StatusUnknown
}

// dateLayouts covers the formats board sites actually render:
// US month/day/year, ISO, and spelled-out month.
var dateLayouts = []string{
	"1/2/2006",
	"01/02/2006",
	"1-2-2006",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
}

// ParseDate attempts to parse a free-text date fragment. On failure it
// reports false rather than guessing; callers must treat that as
// "not established", not as "no expiration".
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// disciplineKeywords deliberately over-flag: a false positive routes to
// human review, a false negative hides a real compliance risk.
var disciplineKeywords = []string{
	"discipline",
	"sanction",
	"restriction",
	"probation",
	"board order",
	"accusation",
}

// HasDisciplineSignal reports whether the full page text carries any
// encumbrance keyword.
func HasDisciplineSignal(pageText string) bool {
	lower := strings.ToLower(pageText)
	for _, w := range disciplineKeywords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
