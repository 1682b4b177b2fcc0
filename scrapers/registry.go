package scrapers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"license-watch-go/browser"
	"license-watch-go/scrapers/captcha"
	"license-watch-go/tlsclient"
)

// Registry routes (jurisdiction, credential type) pairs to adapters and
// wraps every invocation in a uniform failure envelope. It is the sole
// public verification surface: VerifyLicense always returns a Result and
// never lets an adapter panic escape.
type Registry struct {
	adapters map[string]Verifier
	limiters map[string]*rate.Limiter
	rateRPM  int
}

// NewRegistry builds the adapter set: one configurable browser adapter
// per board table entry plus the Nursys HTTP adapter for e-Notify
// jurisdictions. ratePerMinute bounds lookups per jurisdiction so board
// sites are not hammered into bot-blocking us.
func NewRegistry(sessions *browser.Manager, tlsSessions tlsclient.SessionFactory, solver *captcha.CapSolver, ratePerMinute int) *Registry {
	r := &Registry{
		adapters: make(map[string]Verifier),
		limiters: make(map[string]*rate.Limiter),
		rateRPM:  ratePerMinute,
	}
	for _, cfg := range BoardConfigs(solver) {
		r.Register(NewBoardAdapter(sessions, cfg))
	}
	for code := range NursysJurisdictions {
		r.Register(NewNursysAdapter(tlsSessions, code))
	}
	return r
}

// Register adds an adapter, replacing any existing one for the same
// jurisdiction.
func (r *Registry) Register(v Verifier) {
	code := strings.ToUpper(v.Jurisdiction())
	r.adapters[code] = v
	if r.rateRPM > 0 {
		r.limiters[code] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.rateRPM)), 1)
	}
}

// Supported returns the implemented jurisdiction codes, sorted. The set
// is a small explicit subset of the possible ones; surfacing it is an
// operational coverage signal.
func (r *Registry) Supported() []string {
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Supports reports whether a jurisdiction has a registered adapter.
func (r *Registry) Supports(jurisdiction string) bool {
	_, ok := r.adapters[strings.ToUpper(strings.TrimSpace(jurisdiction))]
	return ok
}

// TimeoutFor returns the adapter's configured timeout, or the shared
// default for unknown jurisdictions. The batch orchestrator derives its
// per-license deadline from this.
func (r *Registry) TimeoutFor(jurisdiction string) time.Duration {
	if ad, ok := r.adapters[strings.ToUpper(strings.TrimSpace(jurisdiction))]; ok {
		return ad.Timeout()
	}
	return defaultTimeout
}

// VerifyLicense is the interactive single-lookup entry point: exactly one
// Result per request, typed failure for every unhappy path.
func (r *Registry) VerifyLicense(ctx context.Context, req LookupRequest) (res Result) {
	code := strings.ToUpper(strings.TrimSpace(req.Jurisdiction))

	ad, ok := r.adapters[code]
	if !ok {
		return Failure(FailureNoScraper,
			fmt.Sprintf("no scraper implemented for %q; supported jurisdictions: %s", code, strings.Join(r.Supported(), ", ")))
	}
	if !ad.Supports(req.CredentialType) {
		return Failure(FailureUnsupportedCredential,
			fmt.Sprintf("%s does not verify %s credentials", code, req.CredentialType))
	}

	if lim := r.limiters[code]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return Failure(FailureScraperError, fmt.Sprintf("rate limiter wait: %v", err))
		}
	}

	// Browser automation must never throw past the dispatcher.
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("jurisdiction", code).Interface("panic", p).Msg("adapter panicked")
			res = Failure(FailureVerification, fmt.Sprintf("adapter panic: %v", p))
		}
	}()

	started := time.Now()
	res = ad.Verify(ctx, req)
	if !res.Success && res.FailureKind == "" {
		// An adapter slipped an untyped failure through; keep the
		// taxonomy closed.
		res.FailureKind = FailureVerification
	}

	evt := log.Info()
	if !res.Success {
		evt = log.Warn().Str("failure_kind", string(res.FailureKind))
	}
	evt.Str("jurisdiction", code).
		Str("license", req.LicenseNumber).
		Bool("success", res.Success).
		Dur("elapsed", time.Since(started)).
		Msg("lookup finished")
	return res
}
