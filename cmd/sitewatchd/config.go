package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the sitewatchd service.
type Config struct {
	// Database
	DBPath string

	// HTTP server
	Host            string
	Port            int
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Scanning
	ProbeConcurrency int
	FetchConcurrency int
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		DBPath:           "sitewatch.db",
		Host:             "0.0.0.0",
		Port:             8080,
		AllowedOrigins:   []string{"*"},
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     60 * time.Second,
		ShutdownTimeout:  10 * time.Second,
		ProbeConcurrency: 50,
		FetchConcurrency: 10,
	}
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if v := os.Getenv("SITEWATCH_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SITEWATCH_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("SITEWATCH_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Port = n
		}
	}
	if v := os.Getenv("SITEWATCH_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, origin := range strings.Split(v, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) > 0 {
			cfg.AllowedOrigins = origins
		}
	}
	if v := os.Getenv("SITEWATCH_PROBE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ProbeConcurrency = n
		}
	}
	if v := os.Getenv("SITEWATCH_FETCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FetchConcurrency = n
		}
	}

	return cfg
}
