package scrapers

import (
	"context"
	"time"
)

// CredentialType identifies the credential family a license belongs to.
type CredentialType string

const (
	CredentialRN         CredentialType = "RN"
	CredentialLPN        CredentialType = "LPN"
	CredentialAPRN       CredentialType = "APRN"
	CredentialCNA        CredentialType = "CNA"
	CredentialPhysician  CredentialType = "MD"
	CredentialPT         CredentialType = "PT"
	CredentialPharmacist CredentialType = "RPH"
)

// SourceCategory maps a credential type to the board category that
// verifies it. Unknown credentials fall into the generic category so a
// manual task can still be routed somewhere.
func (c CredentialType) SourceCategory() string {
	switch c {
	case CredentialRN, CredentialLPN, CredentialAPRN, CredentialCNA:
		return "nursing"
	case CredentialPhysician:
		return "medical"
	case CredentialPT:
		return "physical_therapy"
	case CredentialPharmacist:
		return "pharmacy"
	default:
		return "general"
	}
}

// Status is the canonical, jurisdiction-independent license status.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusRevoked   Status = "revoked"
	StatusUnknown   Status = "unknown"
)

// FailureKind classifies why a lookup did not produce a usable result.
// The kinds drive different remediation: no_scraper and
// unsupported_credential are operational gaps, scraper_error means
// selector maintenance, not_found is an authoritative negative,
// parse_error means extraction-pattern maintenance.
type FailureKind string

const (
	FailureNoScraper             FailureKind = "no_scraper"
	FailureUnsupportedCredential FailureKind = "unsupported_credential"
	FailureScraperError          FailureKind = "scraper_error"
	FailureNotFound              FailureKind = "not_found"
	FailureParseError            FailureKind = "parse_error"
	FailureVerification          FailureKind = "verification_failed"
)

// LookupRequest is the immutable input to one verification attempt.
type LookupRequest struct {
	LicenseNumber  string
	FirstName      string
	LastName       string
	Jurisdiction   string
	CredentialType CredentialType
}

// Field is one extracted label/value pair. RawFields preserves the order
// in which extraction found them.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Result is the canonical outcome of one lookup attempt. Every request
// yields exactly one Result: success with normalized data, or a typed
// failure. Never mutated after creation.
type Result struct {
	Success        bool        `json:"success"`
	LicenseNumber  string      `json:"license_number,omitempty"`
	HolderName     string      `json:"holder_name,omitempty"`
	Status         Status      `json:"status,omitempty"`
	ExpirationDate string      `json:"expiration_date,omitempty"` // ISO yyyy-mm-dd, empty when not established
	Unencumbered   bool        `json:"unencumbered"`              // meaningful only when Success
	RawFields      []Field     `json:"raw_fields,omitempty"`
	FailureKind    FailureKind `json:"failure_kind,omitempty"`
	FailureDetail  string      `json:"failure_detail,omitempty"`
}

// Failure builds a typed failure result.
func Failure(kind FailureKind, detail string) Result {
	return Result{Success: false, FailureKind: kind, FailureDetail: detail}
}

// RawField returns the value of an extracted field by key.
func (r Result) RawField(key string) (string, bool) {
	for _, f := range r.RawFields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Verifier is the contract every jurisdiction adapter implements.
// Verify returns a Result for every input; it never returns a Go error.
type Verifier interface {
	Jurisdiction() string
	Supports(ct CredentialType) bool
	Timeout() time.Duration
	LookupURL() string
	Verify(ctx context.Context, req LookupRequest) Result
}
