package scrapers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Status
	}{
		{"plain active", "Active", StatusActive},
		{"active with noise", "ACTIVE - IN GOOD STANDING", StatusActive},
		{"current counts as active", "Current", StatusActive},
		{"valid counts as active", "Valid through renewal", StatusActive},
		{"inactive beats active substring", "Inactive", StatusInactive},
		{"lapsed is inactive", "Lapsed", StatusInactive},
		{"expired", "EXPIRED 01/2024", StatusExpired},
		{"suspended", "License Suspended", StatusSuspended},
		{"revoked", "Revoked by board order", StatusRevoked},
		{"cancelled is revoked", "Cancelled", StatusRevoked},
		{"canceled us spelling", "Canceled", StatusRevoked},
		{"unrecognized", "Pending Review", StatusUnknown},
		{"empty", "", StatusUnknown},
		{"whitespace only", "   ", StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStatus(tt.raw))
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"6/30/2026", "2026-06-30", true},
		{"06/30/2026", "2026-06-30", true},
		{"6-30-2026", "2026-06-30", true},
		{"2026-06-30", "2026-06-30", true},
		{"June 30, 2026", "2026-06-30", true},
		{"Jun 30, 2026", "2026-06-30", true},
		{"June 30 2026", "2026-06-30", true},
		{"  1/2/2027  ", "2027-01-02", true},
		{"not a date", "", false},
		{"", "", false},
		{"30/06/2026", "", false}, // day-first is rejected, not guessed
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseDate(tt.raw)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got.Format(ISODate))
			}
		})
	}
}

func TestParseDateRoundTripsISO(t *testing.T) {
	orig := time.Date(2027, time.March, 15, 0, 0, 0, 0, time.UTC)
	got, ok := ParseDate(orig.Format(ISODate))
	require.True(t, ok)
	assert.True(t, got.Equal(orig))
}

func TestHasDisciplineSignal(t *testing.T) {
	assert.True(t, HasDisciplineSignal("Public Record Actions: DISCIPLINE imposed 2023"))
	assert.True(t, HasDisciplineSignal("license on probation until review"))
	assert.True(t, HasDisciplineSignal("subject to a Board Order"))
	assert.False(t, HasDisciplineSignal("License Status: Active\nExpiration: 6/30/2026"))
	assert.False(t, HasDisciplineSignal(""))
}
