package scrapers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/rs/zerolog/log"

	"license-watch-go/tlsclient"
)

const nursysSearchURL = "https://www.nursys.com/api/quickconfirm/search"

// nursysRecord matches one licensure row from the QuickConfirm API.
type nursysRecord struct {
	Name            string `json:"name"`
	LicenseNumber   string `json:"licenseNumber"`
	LicenseType     string `json:"licenseType"`
	Jurisdiction    string `json:"jurisdiction"`
	Status          string `json:"status"`
	ExpirationDate  string `json:"expirationDate"`
	DisciplineFound bool   `json:"disciplineFound"`
}

// nursysError matches the QuickConfirm error JSON.
type nursysError struct {
	Message string `json:"message"`
}

// NursysAdapter queries the Nursys QuickConfirm data bank for
// jurisdictions that participate in e-Notify, instead of driving their
// board site in a browser. Nursing credentials only.
type NursysAdapter struct {
	jurisdiction string
	sessions     tlsclient.SessionFactory
	timeout      time.Duration
}

// NewNursysAdapter builds the HTTP adapter for one jurisdiction.
func NewNursysAdapter(sessions tlsclient.SessionFactory, jurisdiction string) *NursysAdapter {
	return &NursysAdapter{
		jurisdiction: strings.ToUpper(jurisdiction),
		sessions:     sessions,
		timeout:      45 * time.Second,
	}
}

// Jurisdiction returns the two-letter jurisdiction code.
func (a *NursysAdapter) Jurisdiction() string { return a.jurisdiction }

// LookupURL returns the public QuickConfirm search page.
func (a *NursysAdapter) LookupURL() string {
	return "https://www.nursys.com/LQC/LQCSearch.aspx"
}

// Timeout returns the per-lookup deadline.
func (a *NursysAdapter) Timeout() time.Duration { return a.timeout }

// Supports reports whether the credential is covered by Nursys.
func (a *NursysAdapter) Supports(ct CredentialType) bool {
	switch ct {
	case CredentialRN, CredentialLPN, CredentialAPRN:
		return true
	}
	return false
}

// Verify queries QuickConfirm and maps the response into the canonical
// shape. Same contract as the browser adapters: one Result per call,
// never a Go error.
func (a *NursysAdapter) Verify(ctx context.Context, req LookupRequest) Result {
	if !a.Supports(req.CredentialType) {
		return Failure(FailureUnsupportedCredential,
			fmt.Sprintf("nursys does not verify %s credentials", req.CredentialType))
	}

	session, err := a.sessions()
	if err != nil {
		return Failure(FailureScraperError, fmt.Sprintf("nursys session: %v", err))
	}

	params := url.Values{
		"jurisdiction":  {a.jurisdiction},
		"licenseNumber": {strings.TrimSpace(req.LicenseNumber)},
		"licenseType":   {string(req.CredentialType)},
	}
	if req.LastName != "" {
		params.Set("lastName", strings.TrimSpace(req.LastName))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, nursysSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return Failure(FailureScraperError, fmt.Sprintf("nursys request: %v", err))
	}
	httpReq.Header = http.Header{
		"Accept":            {"application/json"},
		"Origin":            {"https://www.nursys.com"},
		"Referer":           {"https://www.nursys.com/LQC/LQCSearch.aspx"},
		"Accept-Language":   {"en-US,en;q=0.9"},
		http.HeaderOrderKey: {"Accept", "Origin", "Referer", "Accept-Language"},
	}

	resp, err := session.Do(httpReq)
	if err != nil {
		return Failure(FailureScraperError, fmt.Sprintf("nursys request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Failure(FailureScraperError, fmt.Sprintf("nursys read body: %v", err))
	}
	if resp.StatusCode != 200 {
		return Failure(FailureScraperError, fmt.Sprintf("nursys HTTP %d", resp.StatusCode))
	}

	var apiErr nursysError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		return Failure(FailureScraperError, "nursys: "+apiErr.Message)
	}

	var records []nursysRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return Failure(FailureParseError, fmt.Sprintf("nursys decode: %v", err))
	}
	if len(records) == 0 {
		return Failure(FailureNotFound, "nursys reported no matching license")
	}

	rec := pickNursysRecord(records, req.LicenseNumber)
	log.Debug().Str("jurisdiction", a.jurisdiction).Str("license", rec.LicenseNumber).Msg("nursys match")

	res := Result{
		Success:       true,
		LicenseNumber: rec.LicenseNumber,
		HolderName:    rec.Name,
		Status:        NormalizeStatus(rec.Status),
		Unencumbered:  !rec.DisciplineFound,
		RawFields: []Field{
			{Key: "status", Value: rec.Status},
			{Key: "license_type", Value: rec.LicenseType},
			{Key: "expiration_date", Value: rec.ExpirationDate},
		},
	}
	if t, ok := ParseDate(rec.ExpirationDate); ok {
		res.ExpirationDate = t.Format(ISODate)
	}
	return res
}

// pickNursysRecord prefers the row whose license number matches the
// request exactly; QuickConfirm can return multistate privilege rows
// alongside the home-state license.
func pickNursysRecord(records []nursysRecord, licenseNumber string) nursysRecord {
	want := strings.TrimSpace(strings.ToUpper(licenseNumber))
	for _, r := range records {
		if strings.TrimSpace(strings.ToUpper(r.LicenseNumber)) == want {
			return r
		}
	}
	return records[0]
}
