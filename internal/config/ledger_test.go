package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLedgerConfigIsValid(t *testing.T) {
	cfg := DefaultLedgerConfig()
	assert.NoError(t, validateLedgerConfig(cfg))
	assert.Equal(t, int64(2), cfg.Satsang.RatePerMinute)
	assert.Equal(t, int64(2), cfg.Satsang.MinimumCharge)
	assert.Equal(t, 50, cfg.History.DefaultLimit)
	assert.Equal(t, 1000, cfg.History.MaxLimit)
}

func TestValidateLedgerConfigRejectsBadValues(t *testing.T) {
	cases := map[string]func(*LedgerConfig){
		"zero rate":        func(c *LedgerConfig) { c.Satsang.RatePerMinute = 0 },
		"negative minimum": func(c *LedgerConfig) { c.Satsang.MinimumCharge = -1 },
		"default above max": func(c *LedgerConfig) {
			c.History.DefaultLimit = 2000
		},
		"no cas attempts": func(c *LedgerConfig) { c.Balance.MaxCASAttempts = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultLedgerConfig()
			mutate(&cfg)
			assert.Error(t, validateLedgerConfig(cfg))
		})
	}
}

func TestLoadDerivesIssuerFromProject(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "rraasi-test")
	t.Setenv("AUTH_ISSUER", "")
	t.Setenv("AUTH_ADMIN_UIDS", "a, b,,c")

	cfg := Load()
	assert.Equal(t, "https://securetoken.google.com/rraasi-test", cfg.Auth.Issuer)
	assert.Equal(t, "rraasi-test", cfg.Auth.Audience)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Auth.AdminUIDs)
}

func TestLoadNeverDisablesAuthInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("AUTH_DISABLED", "true")

	cfg := Load()
	assert.False(t, cfg.Auth.Disabled)
}
