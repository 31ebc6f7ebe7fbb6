package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("KAFKA_BROKERS", "kafka:9092, kafka2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8000", cfg.Server.Port)
	require.Equal(t, 24*time.Hour, cfg.Verification.TokenTTL)
	require.Equal(t, "dev_secret_key", cfg.JWT.Secret)
	require.Equal(t, []string{"kafka:9092", "kafka2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, "America/Sao_Paulo", cfg.Location().String())
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
}
