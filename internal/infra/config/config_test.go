package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 30, cfg.SendRateLimit)
	assert.Equal(t, time.Minute, cfg.SendRateWindow)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.Empty(t, cfg.DatabaseURL)
	assert.True(t, cfg.IsDev())
}

func TestLoadReadsDotenvWithoutOverridingEnvironment(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.env")
	require.NoError(t, os.WriteFile(file, []byte("HTTP_ADDR=:9999\nKAFKA_BROKERS=k1:9092, k2:9092\n"), 0o600))
	t.Setenv("APP_ENV", "dev")
	t.Setenv("HTTP_ADDR", ":7000")
	t.Setenv("KAFKA_BROKERS", "")
	os.Unsetenv("KAFKA_BROKERS")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"SEND_RATE_WINDOW": "soon",
		"SEARCH_LIMIT":     "many",
		"S3_USE_SSL":       "maybe",
		"RETRY_BACKOFF":    "1s,x",
		"SEND_RATE_LIMIT":  "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("APP_ENV", "dev")
			t.Setenv(key, value)
			_, err := Load(missingEnvFile(t))
			assert.Error(t, err)
		})
	}
}

func TestProductionRequiresJWTSecret(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("AUTH_JWT_SECRET", "")
	_, err := Load(missingEnvFile(t))
	assert.ErrorContains(t, err, "AUTH_JWT_SECRET")
}
