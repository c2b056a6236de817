// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/car-rental/internal/lifecycle"
)

// Config holds every setting the API server reads at startup.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// MongoURI is the MongoDB connection string. Empty means the driver default.
	MongoURI string

	// MongoDB is the database name. Defaults to "rental".
	MongoDB string

	// JWTSecret signs access tokens.
	JWTSecret string

	// JWTExpiry is the access token lifetime. Defaults to 24h.
	JWTExpiry time.Duration

	// LogLevel is a logrus level name. Defaults to "info".
	LogLevel log.Level

	// MQTTBroker is the broker URL for lifecycle events. Empty disables events.
	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string

	// StatusPolicy decides which status transitions updates may make.
	StatusPolicy lifecycle.TransitionPolicy

	// StoreTimeout bounds the store work of a single request. Defaults to 5s.
	StoreTimeout time.Duration

	// AuthRateLimit is the number of auth requests allowed per client IP per minute.
	AuthRateLimit int

	// CodeTTL is how long verification and reset codes stay valid.
	CodeTTL time.Duration

	// TrustProxy makes the server take the client address from forwarding
	// headers. Enable only behind a proxy that overwrites them.
	TrustProxy bool
}

// Load reads a .env file when one exists, then the environment. The error
// lists every variable whose value could not be parsed.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDB:         getEnv("MONGO_DB", "rental"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		MQTTBroker:      os.Getenv("MQTT_BROKER"),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "car-rental-api"),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "rental"),
	}

	var invalid []string

	level, err := log.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		invalid = append(invalid, "LOG_LEVEL")
	}
	cfg.LogLevel = level

	policy, err := lifecycle.ParseTransitionPolicy(os.Getenv("STATUS_POLICY"))
	if err != nil {
		invalid = append(invalid, "STATUS_POLICY")
	}
	cfg.StatusPolicy = policy

	cfg.JWTExpiry = getDuration("JWT_EXPIRY", 24*time.Hour, &invalid)
	cfg.StoreTimeout = getDuration("STORE_TIMEOUT", 5*time.Second, &invalid)
	cfg.CodeTTL = getDuration("CODE_TTL", 15*time.Minute, &invalid)

	cfg.AuthRateLimit = 10
	if v := os.Getenv("AUTH_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			invalid = append(invalid, "AUTH_RATE_LIMIT")
		} else {
			cfg.AuthRateLimit = n
		}
	}

	if v := os.Getenv("TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, "TRUST_PROXY")
		}
		cfg.TrustProxy = b
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// getEnv returns the value of key, or fallback if it is unset or empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration, invalid *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*invalid = append(*invalid, key)
		return fallback
	}
	return d
}
