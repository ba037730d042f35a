// internal/config/config_test.go

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Load()
	cfg.Email = "me@example.com"
	cfg.Password = "secret"
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 20, cfg.PageSize)
	assert.Equal(t, time.Second, cfg.MinFetchDuration)
	assert.Equal(t, 3*time.Second, cfg.TypingTimeout)
	assert.Equal(t, 3*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, "arrival", cfg.OrderPolicy)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PAGE_SIZE", "50")
	t.Setenv("MIN_FETCH_DURATION", "250ms")
	t.Setenv("ORDER_POLICY", "timestamp")

	cfg := Load()
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 250*time.Millisecond, cfg.MinFetchDuration)
	assert.Equal(t, "timestamp", cfg.OrderPolicy)
}

func TestLoadBadDurationFallsBackToDefault(t *testing.T) {
	t.Setenv("TYPING_TIMEOUT", "soon")
	cfg := Load()
	assert.Equal(t, 3*time.Second, cfg.TypingTimeout)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing credentials", func(c *Config) { c.Email = "" }},
		{"http ws url", func(c *Config) { c.WSURL = "http://localhost:8080/ws" }},
		{"page size zero", func(c *Config) { c.PageSize = 0 }},
		{"page size huge", func(c *Config) { c.PageSize = 500 }},
		{"unknown order policy", func(c *Config) { c.OrderPolicy = "random" }},
		{"tiny typing timeout", func(c *Config) { c.TypingTimeout = 100 * time.Millisecond }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
