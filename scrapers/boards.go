package scrapers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"license-watch-go/browser"
	"license-watch-go/scrapers/captcha"
)

// nursingCreds is the credential set most state nursing boards verify.
// CNA registries are usually run by a separate health-department aide
// registry, so boards that exclude CNA reject it as
// unsupported_credential instead of attempting a doomed lookup.
var nursingCreds = []CredentialType{CredentialRN, CredentialLPN, CredentialAPRN}

// NursysJurisdictions are the e-Notify participants served by the Nursys
// QuickConfirm data bank instead of a per-board browser adapter.
var NursysJurisdictions = map[string]bool{
	"AZ": true, "CO": true, "IA": true, "ID": true, "KY": true,
	"MD": true, "MT": true, "ND": true, "NE": true, "NH": true,
	"NM": true, "SC": true, "SD": true, "TN": true, "UT": true,
	"VA": true, "WI": true, "WV": true, "WY": true,
}

// txTurnstileSiteKey is the fallback when the rendered page carries no
// data-sitekey attribute; TX rotates the key occasionally, so the live
// page value wins when present.
const txTurnstileSiteKey = "0x4AAAAAAADnPIDRbXep0Dq6"

// BoardConfigs returns the per-jurisdiction adapter configuration table.
// The solver is optional; boards behind a CAPTCHA degrade to
// scraper_error when it is absent, which routes them to manual review.
func BoardConfigs(solver *captcha.CapSolver) []BoardConfig {
	return []BoardConfig{
		{
			Jurisdiction: "CA",
			BoardName:    "California Board of Registered Nursing",
			LookupURL:    "https://search.dca.ca.gov/",
			Credentials:  nursingCreds,
			Timeout:      120 * time.Second,
			LicenseField: []browser.Strategy{
				browser.Attr(`licenseNumber|license_number`),
				browser.Placeholder(`license`),
				browser.TypeFallback("text"),
			},
			LastNameField: []browser.Strategy{
				browser.Attr(`lastName|last_name`),
				browser.Placeholder(`last\s*name`),
			},
			SubmitControl: []browser.Strategy{
				browser.Attr(`srchSubmitHome|search`),
				browser.TypeFallback("submit"),
			},
			NoResultPhrases: []string{"please correct the following"},
			Hooks: Hooks{
				// DCA hosts every board behind one search page; the
				// profession dropdown must be set before the license
				// field means anything.
				PreSearch: func(ctx context.Context, sess *browser.Session) error {
					return sess.Eval(`(() => {
						const sel = document.querySelector('select#boardCode, select[name="boardCode"]');
						if (!sel) return;
						for (const opt of sel.options) {
							if (/registered nursing/i.test(opt.text)) { sel.value = opt.value; break; }
						}
						sel.dispatchEvent(new Event('change', { bubbles: true }));
					})()`)
				},
			},
		},
		{
			Jurisdiction: "TX",
			BoardName:    "Texas Board of Nursing",
			LookupURL:    "https://www.bon.texas.gov/licensure_verification.asp",
			Credentials:  nursingCreds,
			LicenseField: []browser.Strategy{
				browser.Attr(`license[-_]?(number|no)|licnbr`),
				browser.Placeholder(`license`),
				browser.TypeFallback("text"),
			},
			LastNameField: []browser.Strategy{
				browser.Attr(`last[-_]?name|lname`),
				browser.Placeholder(`last\s*name`),
			},
			SubmitControl: []browser.Strategy{
				browser.Attr(`search|submit|verify`),
				browser.TypeFallback("submit"),
			},
			Hooks: Hooks{
				PreSearch: turnstileHook(solver, "https://www.bon.texas.gov/licensure_verification.asp", txTurnstileSiteKey),
			},
		},
		{
			Jurisdiction: "FL",
			BoardName:    "Florida Department of Health MQA",
			LookupURL:    "https://mqa-internet.doh.state.fl.us/MQASearchServices/HealthCareProviders",
			Credentials:  append([]CredentialType{CredentialCNA, CredentialPhysician}, nursingCreds...),
			LicenseField: []browser.Strategy{
				browser.Attr(`LicenseNumber|licnum`),
				browser.Placeholder(`license\s*number`),
				browser.TypeFallback("text"),
			},
			LastNameField: []browser.Strategy{
				browser.Attr(`LastName`),
				browser.Placeholder(`last\s*name`),
			},
			SubmitControl: []browser.Strategy{
				browser.Attr(`btnSearch|search`),
				browser.TypeFallback("submit"),
			},
			NoResultPhrases: []string{"your search returned no profiles"},
		},
		{
			Jurisdiction: "OH",
			BoardName:    "Ohio eLicense",
			LookupURL:    "https://elicense.ohio.gov/oh_verifylicense",
			Credentials:  append([]CredentialType{CredentialPharmacist}, nursingCreds...),
			Timeout:      120 * time.Second, // Salesforce front end, slow to hydrate
			LicenseField: []browser.Strategy{
				browser.Attr(`licenseNumber|license-number`),
				browser.Placeholder(`license\s*number`),
				browser.TypeFallback("text"),
			},
			LastNameField: []browser.Strategy{
				browser.Placeholder(`last\s*name`),
				browser.Attr(`lastName`),
			},
			SubmitControl: []browser.Strategy{
				browser.Attr(`search`),
				browser.TypeFallback("submit"),
			},
		},
		{
			Jurisdiction: "PA",
			BoardName:    "Pennsylvania Licensing System",
			LookupURL:    "https://www.pals.pa.gov/#/page/search",
			Credentials:  nursingCreds,
			LicenseField: []browser.Strategy{
				browser.Placeholder(`license\s*number`),
				browser.Attr(`licenseNumber`),
				browser.TypeFallback("text"),
			},
			LastNameField: []browser.Strategy{
				browser.Placeholder(`last\s*name`),
				browser.Attr(`lastName`),
			},
			SubmitControl: []browser.Strategy{
				browser.Attr(`search`),
				browser.TypeFallback("submit"),
			},
		},
		{
			Jurisdiction: "NY",
			BoardName:    "NYS Office of the Professions",
			LookupURL:    "https://www.op.nysed.gov/verification-search",
			Credentials:  append([]CredentialType{CredentialPhysician, CredentialPT}, nursingCreds...),
			LicenseField: []browser.Strategy{
				browser.Attr(`license[-_]?(number|no)`),
				browser.Placeholder(`license`),
				browser.TypeFallback("text"),
			},
			LastNameField: []browser.Strategy{
				browser.Attr(`last[-_]?name`),
				browser.Placeholder(`last\s*name`),
			},
			SubmitControl: []browser.Strategy{
				browser.Attr(`search|submit`),
				browser.TypeFallback("submit"),
			},
		},
		{
			Jurisdiction: "MI",
			BoardName:    "Michigan MiPLUS",
			LookupURL:    "https://aca-prod.accela.com/MILARA/GeneralProperty/PropertyLookUp.aspx",
			Credentials:  append([]CredentialType{CredentialPT}, nursingCreds...),
			LicenseField: []browser.Strategy{
				browser.Attr(`LicenseNumber|txtLicense`),
				browser.Placeholder(`license`),
				browser.TypeFallback("text"),
			},
			LastNameField: []browser.Strategy{
				browser.Attr(`LastName|txtLastName`),
			},
			SubmitControl: []browser.Strategy{
				browser.Attr(`btnSearch|search`),
				browser.TypeFallback("submit"),
			},
		},
		{
			Jurisdiction: "NC",
			BoardName:    "North Carolina Board of Nursing",
			LookupURL:    "https://portal.ncbon.com/LicenseVerification/search.aspx",
			Credentials:  nursingCreds,
			LicenseField: []browser.Strategy{
				browser.Attr(`txtLicNum|license`),
				browser.Placeholder(`license`),
				browser.TypeFallback("text"),
			},
			LastNameField: []browser.Strategy{
				browser.Attr(`txtLastName|lastname`),
			},
			SubmitControl: []browser.Strategy{
				browser.Attr(`btnSearch|search`),
				browser.TypeFallback("submit"),
			},
		},
	}
}

// turnstileHook returns a PreSearch hook that solves a Cloudflare
// Turnstile challenge and injects the token into the page. The site key
// is read from the rendered widget so a rotated key degrades to a
// scraper_error instead of silently solving against a stale one. With no
// solver configured the hook fails the lookup as a scraper_error, which
// falls through to manual review.
func turnstileHook(solver *captcha.CapSolver, pageURL, fallbackKey string) func(context.Context, *browser.Session) error {
	return func(ctx context.Context, sess *browser.Session) error {
		if solver == nil {
			return fmt.Errorf("board requires CAPTCHA solving and CAPSOLVER_API_KEY is not configured")
		}

		siteKey := fallbackKey
		if html, err := sess.HTML(); err == nil {
			if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
				siteKey = turnstileSiteKey(doc, fallbackKey)
			}
		}

		token, err := solver.SolveTurnstile(ctx, pageURL, siteKey)
		if err != nil {
			return fmt.Errorf("solve turnstile: %w", err)
		}
		return sess.Eval(fmt.Sprintf(`(() => {
			const input = document.querySelector('[name="cf-turnstile-response"]');
			if (input) input.value = %q;
		})()`, token))
	}
}

// turnstileSiteKey prefers the widget's data-sitekey over the fallback.
func turnstileSiteKey(doc *goquery.Document, fallback string) string {
	if v, ok := doc.Find("[data-sitekey]").First().Attr("data-sitekey"); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return fallback
}
