package config_test

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/car-rental/internal/config"
	"github.com/ukydev/car-rental/internal/lifecycle"
)

var keys = []string{
	"PORT", "MONGO_URI", "MONGO_DB", "JWT_SECRET", "JWT_EXPIRY", "LOG_LEVEL",
	"MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_TOPIC_PREFIX", "STATUS_POLICY",
	"STORE_TIMEOUT", "AUTH_RATE_LIMIT", "CODE_TTL", "TRUST_PROXY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()

	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "rental", cfg.MongoDB)
	require.Equal(t, log.InfoLevel, cfg.LogLevel)
	require.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	require.Equal(t, 5*time.Second, cfg.StoreTimeout)
	require.Equal(t, 15*time.Minute, cfg.CodeTTL)
	require.Equal(t, 10, cfg.AuthRateLimit)
	require.Equal(t, lifecycle.PolicyForward, cfg.StatusPolicy)
	require.Equal(t, "rental", cfg.MQTTTopicPrefix)
	require.Empty(t, cfg.MQTTBroker)
	require.False(t, cfg.TrustProxy)
}

func TestLoad_overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("MONGO_DB", "rental_test")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_EXPIRY", "1h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("STATUS_POLICY", "open")
	t.Setenv("STORE_TIMEOUT", "2s")
	t.Setenv("AUTH_RATE_LIMIT", "3")
	t.Setenv("CODE_TTL", "5m")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := config.Load()

	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "mongodb://db:27017", cfg.MongoURI)
	require.Equal(t, "rental_test", cfg.MongoDB)
	require.Equal(t, "s3cret", cfg.JWTSecret)
	require.Equal(t, time.Hour, cfg.JWTExpiry)
	require.Equal(t, log.DebugLevel, cfg.LogLevel)
	require.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	require.Equal(t, lifecycle.PolicyOpen, cfg.StatusPolicy)
	require.Equal(t, 2*time.Second, cfg.StoreTimeout)
	require.Equal(t, 3, cfg.AuthRateLimit)
	require.Equal(t, 5*time.Minute, cfg.CodeTTL)
	require.True(t, cfg.TrustProxy)
}

// TestLoad_invalid verifies that every unparseable variable is named in the error.
func TestLoad_invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("STATUS_POLICY", "backwards")
	t.Setenv("STORE_TIMEOUT", "soon")
	t.Setenv("AUTH_RATE_LIMIT", "-1")
	t.Setenv("TRUST_PROXY", "sometimes")

	_, err := config.Load()

	require.Error(t, err)
	for _, k := range []string{"LOG_LEVEL", "STATUS_POLICY", "STORE_TIMEOUT", "AUTH_RATE_LIMIT", "TRUST_PROXY"} {
		require.ErrorContains(t, err, k)
	}
}
