package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WS_AUTH_SECRET", "")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("WS_INTERNAL_SECRET", "")
	t.Setenv("WS_PORT", "")
	t.Setenv("WS_HOST", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "dev-ws-auth-secret", cfg.Gateway.AuthSecret)
	require.Equal(t, cfg.Gateway.AuthSecret, cfg.Gateway.InternalSecret)
	require.Equal(t, 3011, cfg.Gateway.Port)
	require.Equal(t, "ws://127.0.0.1:3011/ws", cfg.Gateway.PublicURL)
	require.Equal(t, 1200*time.Millisecond, cfg.Gateway.PublishTimeout)
	require.Equal(t, 24*time.Hour, cfg.Gateway.TokenTTL)
	require.NoError(t, cfg.Validate())
}

func TestLoadSecretFallbackChain(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WS_AUTH_SECRET", "")
	t.Setenv("SESSION_SECRET", "session-secret-value")
	t.Setenv("WS_INTERNAL_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "session-secret-value", cfg.Gateway.AuthSecret)
	require.Equal(t, "session-secret-value", cfg.Gateway.InternalSecret)
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.yaml")
	content := `
WS_PORT: 4000
WS_AUTH_SECRET: "file-secret-123"
WS_PUBLISH_TIMEOUT: 2s
RATE_LIMIT_MESSAGES_PER_MINUTE: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WS_PORT", "4100")
	t.Setenv("WS_AUTH_SECRET", "")
	t.Setenv("WS_PUBLISH_TIMEOUT", "")
	t.Setenv("RATE_LIMIT_MESSAGES_PER_MINUTE", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 4100, cfg.Gateway.Port)
	require.Equal(t, "file-secret-123", cfg.Gateway.AuthSecret)
	require.Equal(t, 2*time.Second, cfg.Gateway.PublishTimeout)
	require.Equal(t, 5, cfg.RateLimit.MessagesPerMinute)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)
}

func TestValidateRejectsWeakSecrets(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WS_AUTH_SECRET", "short")
	t.Setenv("WS_INTERNAL_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Error(t, cfg.Validate())
}

func TestValidateAPIRequiresJWTSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WS_AUTH_SECRET", "")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Error(t, cfg.ValidateAPI())

	cfg.API.JWTSecret = "jwt-secret-value"
	require.NoError(t, cfg.ValidateAPI())
}

func TestValidateRejectsNonPositivePingInterval(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WS_AUTH_SECRET", "")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("WS_INTERNAL_SECRET", "")

	for _, v := range []string{"0", "-5s"} {
		t.Setenv("WS_PING_INTERVAL", v)
		cfg, err := Load()
		require.NoError(t, err)
		require.ErrorContains(t, cfg.Validate(), "WS_PING_INTERVAL must be positive", v)
	}
}

func TestLoadSeedUsers(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SEED_USERS", " alice:Alice Smith, bob ,:nobody,,carol: ")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []SeedUser{
		{ID: "alice", Name: "Alice Smith"},
		{ID: "bob", Name: "User"},
		{ID: "carol", Name: "User"},
	}, cfg.API.SeedUsers)

	t.Setenv("SEED_USERS", "")
	cfg, err = Load()
	require.NoError(t, err)
	require.Empty(t, cfg.API.SeedUsers)
}
