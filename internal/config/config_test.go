package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
	assert.Equal(t, 60, cfg.RateLimit.Free)
	assert.Equal(t, "concat", cfg.Signature.Scheme)
	assert.Equal(t, 5*time.Minute, cfg.Signature.Tolerance())
	assert.Equal(t, 3, cfg.Forwarding.MaxAttempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, cfg.Forwarding.Backoff())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOOKGATE_SERVER_PORT", "9099")
	t.Setenv("HOOKGATE_SIGNATURE_SCHEME", "hmac")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9099", cfg.Server.Port)
	assert.Equal(t, "hmac", cfg.Signature.Scheme)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		RateLimit:  RateLimitConfig{Backend: "redis", WindowSeconds: 60},
		Signature:  SignatureConfig{Scheme: "concat"},
		Forwarding: ForwardingConfig{MaxAttempts: 3, TimeoutSeconds: 10},
	}
	assert.Error(t, cfg.Validate(), "redis backend without addr")

	cfg.Redis.Addr = "localhost:6379"
	assert.NoError(t, cfg.Validate())

	cfg.Signature.Scheme = "md5"
	assert.Error(t, cfg.Validate())
}
