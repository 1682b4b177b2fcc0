package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"license-watch-go/scrapers"
)

type verifyRequest struct {
	LicenseNumber  string `json:"license_number"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Jurisdiction   string `json:"jurisdiction"`
	CredentialType string `json:"credential_type"`
}

// handleVerify is the "verify now" caller: one LookupRequest in, one
// canonical result out, never a 500 for a lookup-level failure.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.LicenseNumber = strings.TrimSpace(req.LicenseNumber)
	req.Jurisdiction = strings.TrimSpace(req.Jurisdiction)
	if req.LicenseNumber == "" || req.Jurisdiction == "" {
		writeError(w, http.StatusBadRequest, "license_number and jurisdiction are required")
		return
	}

	result := s.registry.VerifyLicense(r.Context(), scrapers.LookupRequest{
		LicenseNumber:  req.LicenseNumber,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Jurisdiction:   req.Jurisdiction,
		CredentialType: scrapers.CredentialType(strings.ToUpper(strings.TrimSpace(req.CredentialType))),
	})
	writeJSON(w, http.StatusOK, result)
}

// handleJurisdictions surfaces the implemented-coverage signal.
func (s *Server) handleJurisdictions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"supported": s.registry.Supported(),
	})
}
