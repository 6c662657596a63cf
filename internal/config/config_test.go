package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.APIBaseURL)
	assert.Equal(t, 60*time.Second, cfg.StreamIdleTimeout)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 24*time.Hour, cfg.NATSMaxAge)
	assert.EqualValues(t, 256<<20, cfg.NATSMaxStore)
	assert.EqualValues(t, 32<<20, cfg.NATSMaxMemory)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BOARDMATE_API_URL", "http://example.test/api")
	t.Setenv("STREAM_IDLE_TIMEOUT", "5s")
	t.Setenv("BOARDMATE_ACCESS_TOKEN", "tok")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://example.test/api", cfg.APIBaseURL)
	assert.Equal(t, 5*time.Second, cfg.StreamIdleTimeout)
	assert.Equal(t, "tok", cfg.AccessToken)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("STREAM_IDLE_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}
