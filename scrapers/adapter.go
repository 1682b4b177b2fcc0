package scrapers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"license-watch-go/browser"
)

const defaultTimeout = 90 * time.Second

// defaultNoResultPhrases are matched case-insensitively against the full
// rendered page text to distinguish an authoritative "not found" from an
// extraction failure. Boards add their own wording via BoardConfig.
var defaultNoResultPhrases = []string{
	"no results",
	"no records found",
	"no matching records",
	"no license records",
	"no licensee",
	"0 records",
	"returned no",
	"could not be found",
	"did not match",
}

// Hooks are the per-jurisdiction override points for the rare board that
// needs bespoke steps beyond the shared flow.
type Hooks struct {
	// PreSearch runs after navigation and before field location, e.g.
	// to pick a profession from a dropdown or inject a solved
	// Turnstile token.
	PreSearch func(ctx context.Context, sess *browser.Session) error
}

// BoardConfig parameterizes one jurisdiction's lookup site. Static,
// loaded at registry construction, immutable for the process lifetime.
type BoardConfig struct {
	Jurisdiction    string
	BoardName       string
	LookupURL       string
	Credentials     []CredentialType
	Timeout         time.Duration
	LicenseField    []browser.Strategy
	LastNameField   []browser.Strategy
	SubmitControl   []browser.Strategy
	NoResultPhrases []string
	Hooks           Hooks
}

// BoardAdapter drives a headless browser against one board's lookup site.
// All boards share this flow; only the config differs.
type BoardAdapter struct {
	cfg      BoardConfig
	sessions *browser.Manager
}

// NewBoardAdapter builds an adapter over the shared browser manager.
func NewBoardAdapter(sessions *browser.Manager, cfg BoardConfig) *BoardAdapter {
	return &BoardAdapter{cfg: cfg, sessions: sessions}
}

// Jurisdiction returns the two-letter jurisdiction code.
func (a *BoardAdapter) Jurisdiction() string { return a.cfg.Jurisdiction }

// LookupURL returns the board's public lookup page.
func (a *BoardAdapter) LookupURL() string { return a.cfg.LookupURL }

// Timeout returns the configured per-lookup deadline.
func (a *BoardAdapter) Timeout() time.Duration {
	if a.cfg.Timeout > 0 {
		return a.cfg.Timeout
	}
	return defaultTimeout
}

// Supports reports whether the board verifies the given credential type.
func (a *BoardAdapter) Supports(ct CredentialType) bool {
	for _, c := range a.cfg.Credentials {
		if c == ct {
			return true
		}
	}
	return false
}

// Verify runs one lookup: fresh session, navigate, locate and fill,
// submit, no-results check, extract, normalize. It always returns a
// Result; the session is always released.
func (a *BoardAdapter) Verify(ctx context.Context, req LookupRequest) Result {
	if !a.Supports(req.CredentialType) {
		return Failure(FailureUnsupportedCredential,
			fmt.Sprintf("%s (%s) does not verify %s credentials", a.cfg.Jurisdiction, a.cfg.BoardName, req.CredentialType))
	}

	lg := log.With().Str("jurisdiction", a.cfg.Jurisdiction).Str("license", req.LicenseNumber).Logger()

	sess, err := a.sessions.NewSession(a.Timeout())
	if err != nil {
		return Failure(FailureScraperError, fmt.Sprintf("open session: %v", err))
	}
	defer sess.Close()

	if err := sess.Navigate(a.cfg.LookupURL); err != nil {
		return Failure(FailureScraperError, fmt.Sprintf("navigate: %v", err))
	}

	if a.cfg.Hooks.PreSearch != nil {
		if err := a.cfg.Hooks.PreSearch(ctx, sess); err != nil {
			return Failure(FailureScraperError, fmt.Sprintf("pre-search hook: %v", err))
		}
	}

	licField, found, err := browser.Locate(sess, a.cfg.LicenseField)
	if err != nil {
		return Failure(FailureScraperError, fmt.Sprintf("locate license field: %v", err))
	}
	if !found {
		lg.Warn().Str("url", a.cfg.LookupURL).Msg("license number field not found; selectors need maintenance")
		return Failure(FailureScraperError, "license number field not found")
	}

	if err := sess.Clear(licField.Selector); err != nil {
		return Failure(FailureScraperError, fmt.Sprintf("clear license field: %v", err))
	}
	if err := sess.Type(licField.Selector, req.LicenseNumber); err != nil {
		return Failure(FailureScraperError, fmt.Sprintf("type license number: %v", err))
	}

	// Last name is optional: a missing field must not fail the lookup.
	if req.LastName != "" && len(a.cfg.LastNameField) > 0 {
		if nameField, ok, err := browser.Locate(sess, a.cfg.LastNameField); err == nil && ok {
			if err := sess.Clear(nameField.Selector); err == nil {
				_ = sess.Type(nameField.Selector, req.LastName)
			}
		}
	}

	if submit, ok, err := browser.Locate(sess, a.cfg.SubmitControl); err == nil && ok {
		if err := sess.Click(submit.Selector); err != nil {
			return Failure(FailureScraperError, fmt.Sprintf("click submit: %v", err))
		}
	} else {
		if err := sess.SubmitKey(licField.Selector); err != nil {
			return Failure(FailureScraperError, fmt.Sprintf("submit keystroke: %v", err))
		}
	}

	if err := sess.Settle(); err != nil {
		return Failure(FailureScraperError, fmt.Sprintf("wait for results: %v", err))
	}

	pageText, err := sess.VisibleText()
	if err != nil {
		return Failure(FailureScraperError, fmt.Sprintf("read page text: %v", err))
	}
	if phrase, hit := matchesNoResults(pageText, a.cfg.NoResultPhrases); hit {
		lg.Debug().Str("phrase", phrase).Msg("board reported no match")
		return Failure(FailureNotFound, fmt.Sprintf("board reported no match (%q)", phrase))
	}

	html, err := sess.HTML()
	if err != nil {
		return Failure(FailureScraperError, fmt.Sprintf("read page html: %v", err))
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Failure(FailureParseError, fmt.Sprintf("parse html: %v", err))
	}

	fields := ExtractFields(doc)
	if fields.Len() == 0 {
		lg.Warn().Msg("results page yielded no extractable fields")
		return Failure(FailureParseError, "results page yielded no extractable fields")
	}

	return assembleResult(req, fields, pageText)
}

// matchesNoResults scans page text for an explicit negative phrase.
func matchesNoResults(pageText string, extra []string) (string, bool) {
	lower := strings.ToLower(pageText)
	for _, phrase := range defaultNoResultPhrases {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	for _, phrase := range extra {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return phrase, true
		}
	}
	return "", false
}

// Alias key sets for the canonical result fields. Structured layers emit
// snake_case keys straight from page labels, so each canonical field has
// a few plausible spellings.
var (
	statusKeys     = []string{"status", "license_status", "current_status"}
	expirationKeys = []string{"expiration_date", "expiration", "expires", "expiry_date", "exp_date"}
	nameKeys       = []string{"full_name", "name", "licensee_name", "licensee"}
	numberKeys     = []string{"license_number", "license_num", "license_no", "certificate_number", "registration_number"}
)

// assembleResult normalizes extracted fields into the canonical shape.
func assembleResult(req LookupRequest, fields *Fields, pageText string) Result {
	res := Result{
		Success:       true,
		LicenseNumber: req.LicenseNumber,
		RawFields:     fields.Pairs(),
	}
	if v, ok := fields.First(numberKeys...); ok {
		res.LicenseNumber = v
	}
	if v, ok := fields.First(nameKeys...); ok {
		res.HolderName = v
	}
	raw, _ := fields.First(statusKeys...)
	res.Status = NormalizeStatus(raw)
	if v, ok := fields.First(expirationKeys...); ok {
		if t, parsed := ParseDate(v); parsed {
			res.ExpirationDate = t.Format(ISODate)
		}
	}
	res.Unencumbered = !HasDisciplineSignal(pageText)
	return res
}
