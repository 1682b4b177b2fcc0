package scrapers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnstileSiteKeyPrefersPageValue(t *testing.T) {
	doc := mustDoc(t, `
		<form>
			<div class="cf-turnstile" data-sitekey=" 0x4BBBROTATEDKEY "></div>
		</form>`)
	assert.Equal(t, "0x4BBBROTATEDKEY", turnstileSiteKey(doc, txTurnstileSiteKey))
}

func TestTurnstileSiteKeyFallsBack(t *testing.T) {
	assert.Equal(t, txTurnstileSiteKey,
		turnstileSiteKey(mustDoc(t, `<form><input name="license"></form>`), txTurnstileSiteKey))
	assert.Equal(t, txTurnstileSiteKey,
		turnstileSiteKey(mustDoc(t, `<div class="cf-turnstile" data-sitekey="  "></div>`), txTurnstileSiteKey),
		"blank attribute does not count")
}

func TestTurnstileHookRequiresSolver(t *testing.T) {
	hook := turnstileHook(nil, "https://example.gov", txTurnstileSiteKey)
	err := hook(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAPSOLVER_API_KEY")
}

func TestBoardConfigsHaveCompleteStrategies(t *testing.T) {
	for _, cfg := range BoardConfigs(nil) {
		assert.NotEmpty(t, cfg.Jurisdiction)
		assert.NotEmpty(t, cfg.LookupURL, cfg.Jurisdiction)
		assert.NotEmpty(t, cfg.Credentials, cfg.Jurisdiction)
		assert.NotEmpty(t, cfg.LicenseField, cfg.Jurisdiction)
		assert.NotEmpty(t, cfg.SubmitControl, cfg.Jurisdiction)
	}
}
