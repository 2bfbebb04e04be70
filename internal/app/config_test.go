package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kthomas256/veriauth/internal/auth"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "https://auth.example.com", cfg.Server.BaseURL)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)
	require.Equal(t, "veriauth", cfg.Database.Postgres.Database)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "veriauth-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 12*time.Hour, cfg.Auth.JWT.SessionTTL)
	require.Equal(t, 10*time.Minute, cfg.Auth.JWT.ResetTTL)
	require.Equal(t, 3*time.Minute, cfg.Auth.Verification.OTPTTL)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, "noreply@example.com", cfg.Email.SMTP.From)
	require.False(t, cfg.Email.SMTP.UseTLS)
	require.Equal(t, 30*time.Second, cfg.Email.SMTP.Timeout)

	require.False(t, cfg.Monitoring.Prometheus.Enabled)
	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@every 30m", cfg.Maintenance.Schedule)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWT.SessionTTL)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.ResetTTL)
	require.Equal(t, 5*time.Minute, cfg.Auth.Verification.OTPTTL)
	require.False(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, 587, cfg.Email.SMTP.Port)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "@hourly", cfg.Maintenance.Schedule)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("VERIAUTH_SERVER_PORT", "7070")
	t.Setenv("VERIAUTH_AUTH_JWT_SECRET", "env-secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
}

func TestJWTServiceConfigDefaults(t *testing.T) {
	var cfg AuthConfig
	cfg.JWT.Secret = "secret"

	jwtCfg := cfg.JWTServiceConfig()
	require.Equal(t, auth.DefaultSessionTokenTTL, jwtCfg.SessionTTL)
	require.Equal(t, auth.DefaultResetTokenTTL, jwtCfg.ResetTTL)
	require.Equal(t, "secret", jwtCfg.Secret)
}

func TestConfigureLogging(t *testing.T) {
	require.NoError(t, ConfigureLogging("debug"))
	require.NoError(t, ConfigureLogging(""))
}
