// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Auth    AuthConfig
	Machine MachineConfig
	Storage StorageConfig
	Rate    RateConfig
}

type ServerConfig struct {
	Port     int
	CertFile string
	KeyFile  string
	LogLevel string
}

type AuthConfig struct {
	APIKey string
}

type MachineConfig struct {
	ID string
}

type StorageConfig struct {
	DataDir string
}

type RateConfig struct {
	Window time.Duration
	Max    int
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:     3000,
			LogLevel: "info",
		},
		Machine: MachineConfig{
			ID: "unknown",
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		// 100 requests per 15 minutes per client.
		Rate: RateConfig{
			Window: 15 * time.Minute,
			Max:    100,
		},
	}
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present (it never overrides variables that
// are already set). ARGOS_API_KEY is required; everything else has defaults.
func Load() (Config, error) {
	// Missing .env is fine; env vars alone are a complete configuration.
	_ = godotenv.Load()
	return loadFromEnv(os.Getenv)
}

func loadFromEnv(getenv func(string) string) (Config, error) {
	cfg := defaults()

	if v := getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 {
			return Config{}, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Server.Port = p
	}
	if v := getenv("ARGOS_TLS_CERT"); v != "" {
		cfg.Server.CertFile = v
	}
	if v := getenv("ARGOS_TLS_KEY"); v != "" {
		cfg.Server.KeyFile = v
	}
	if v := getenv("ARGOS_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := getenv("MACHINE_ID"); v != "" {
		cfg.Machine.ID = v
	}
	if v := getenv("DB_PATH"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := getenv("ARGOS_RATE_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid ARGOS_RATE_WINDOW %q", v)
		}
		cfg.Rate.Window = d
	}
	if v := getenv("ARGOS_RATE_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid ARGOS_RATE_MAX %q", v)
		}
		cfg.Rate.Max = n
	}

	cfg.Auth.APIKey = getenv("ARGOS_API_KEY")
	if cfg.Auth.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: ARGOS_API_KEY")
	}

	// TLS needs both halves of the pair.
	if (cfg.Server.CertFile == "") != (cfg.Server.KeyFile == "") {
		return Config{}, fmt.Errorf("ARGOS_TLS_CERT and ARGOS_TLS_KEY must be set together")
	}

	return cfg, nil
}
