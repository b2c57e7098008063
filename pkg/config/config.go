// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the umbrella configuration object returned by Load and passed
// to the components that need it.
type Config struct {
	Server ServerConfig
	Auth   AuthConfig
	Redis  RedisConfig
}

// ServerConfig holds HTTP and WebSocket tuning knobs.
type ServerConfig struct {
	Port string

	// WriteTimeout bounds a single WebSocket send.
	WriteTimeout time.Duration

	// TurnTimeout bounds one full pipeline turn. On expiry the client
	// receives an error message and the turn ends; the connection stays up.
	TurnTimeout time.Duration

	GracefulShutdownTimeout time.Duration
}

// AuthConfig holds bearer-token verification settings.
type AuthConfig struct {
	// SigningSecret is the shared HS256 secret the identity service signs
	// tokens with. Required.
	SigningSecret string
	Issuer        string
	Audience      string
	// Leeway tolerates small clock skew when checking exp/nbf.
	Leeway time.Duration
}

// RedisConfig configures the optional Redis-backed session registry for
// multi-replica deployments. When Addr is empty the in-process registry
// is used.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// LeaseTTL is how long a session lease lives without renewal.
	LeaseTTL time.Duration
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	authSecret := os.Getenv("AUTH_SIGNING_SECRET")
	if authSecret == "" {
		return nil, fmt.Errorf("AUTH_SIGNING_SECRET is required")
	}

	writeTimeout, err := durationEnv("WS_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	turnTimeout, err := durationEnv("TURN_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := durationEnv("GRACEFUL_SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	leaseTTL, err := durationEnv("REDIS_LEASE_TTL", 60*time.Second)
	if err != nil {
		return nil, err
	}
	leeway, err := durationEnv("AUTH_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, err
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		redisDB, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:                    getEnvOrDefault("HTTP_PORT", "8080"),
			WriteTimeout:            writeTimeout,
			TurnTimeout:             turnTimeout,
			GracefulShutdownTimeout: shutdownTimeout,
		},
		Auth: AuthConfig{
			SigningSecret: authSecret,
			Issuer:        getEnvOrDefault("AUTH_ISSUER", "lumina-identity"),
			Audience:      getEnvOrDefault("AUTH_AUDIENCE", "lumina"),
			Leeway:        leeway,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			LeaseTTL: leaseTTL,
		},
	}, nil
}

func durationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
