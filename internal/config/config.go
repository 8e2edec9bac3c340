package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultDevOrigin is the browser client's local development server.
const DefaultDevOrigin = "http://localhost:5173"

// Config holds the service settings resolved from the environment.
type Config struct {
	Port            string
	AllowedOrigins  []string
	DBPath          string
	StatsDisabled   bool
	LogLevel        string
	LogFormat       string
	GinMode         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the configuration from environment variables, falling back to defaults
// when a variable is unset or cannot be parsed.
func Load() Config {
	return Config{
		Port:            getEnv("PORT", "8000"),
		AllowedOrigins:  getEnvOrigins("CORS_ALLOWED_ORIGINS", []string{DefaultDevOrigin}),
		DBPath:          getEnv("RISK_DB_PATH", "data/risk-decision.db"),
		StatsDisabled:   getEnvBool("STATS_DISABLED", false),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		GinMode:         getEnv("GIN_MODE", "release"),
		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		logrus.WithField("key", key).WithField("value", v).Warn("invalid boolean, using default")
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logrus.WithField("key", key).WithField("value", v).Warn("invalid duration, using default")
		return fallback
	}
	return d
}

// getEnvOrigins parses a comma-separated origin list. "*" yields an empty list, which
// the router treats as allow-all.
func getEnvOrigins(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if v == "*" {
		return []string{}
	}
	var origins []string
	for _, part := range strings.Split(v, ",") {
		if origin := strings.TrimRight(strings.TrimSpace(part), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return fallback
	}
	return origins
}
