package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("LIBRARY_HTTP_PORT", "8081")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := NewConfig(WithLogLevel(zapcore.DebugLevel), WithMigrate(false))

	require.Equal(t, "8081", cfg.Server.Port)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, time.Minute, cfg.Server.WriteTimeout)
	require.Equal(t, zapcore.DebugLevel, cfg.Log.LogLevel)
	require.False(t, cfg.Database.Migrate)
	require.Equal(t, "secret", cfg.Auth.Secret)
	require.Equal(t, "@every 1m", cfg.GaugeSchedule)
	require.Equal(t, "disk", cfg.Storage.Backend)
	require.False(t, cfg.Kafka.Enabled())
	require.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)

	require.Same(t, cfg, NewConfig(), "config is read once")
}

func TestConfig_SecretsNotPrinted(t *testing.T) {
	var cfg Config
	cfg.Auth.Secret = "jwt-secret"
	cfg.Database.Password = "db-password"
	cfg.Storage.S3AccessKey = "s3-access"
	cfg.Storage.S3SecretKey = "s3-secret"

	out, err := json.Marshal(cfg)
	require.NoError(t, err)
	for _, secret := range []string{"jwt-secret", "db-password", "s3-access", "s3-secret"} {
		require.NotContains(t, string(out), secret)
	}
}
