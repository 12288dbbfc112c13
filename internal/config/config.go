// Package config loads infra-level configuration for the ambient
// forwardctl binary: store/queue backend selection, worker pool sizes, log
// mode. It has no opinion on ensemble-wide simulation configuration
// (templates, job catalog entries, substitution defaults) — that remains
// behind the sharedctx interfaces and is never parsed here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

func envString(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envDuration(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// WorkerPool sizes one of the two bounded pools (PREPARING, LOADING).
type WorkerPool struct {
	Concurrency int `yaml:"concurrency"`
}

// Config is the ambient binary's startup configuration, loaded from an
// optional YAML file and overridable by environment variables — env wins
// when both are set, matching the envutil default-with-override idiom
// used throughout the teacher's ambient stack.
type Config struct {
	LogMode string `yaml:"log_mode"`

	StoreBackend string `yaml:"store_backend"` // "postgres" | "memory"
	StoreDSN     string `yaml:"store_dsn"`

	QueueBackend string `yaml:"queue_backend"` // "postgres" | "redis" | "memory"
	QueueDSN     string `yaml:"queue_dsn"`

	Preparing WorkerPool `yaml:"preparing"`
	Loading   WorkerPool `yaml:"loading"`

	PollInterval time.Duration `yaml:"poll_interval"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		LogMode:      "dev",
		StoreBackend: "memory",
		QueueBackend: "memory",
		Preparing:    WorkerPool{Concurrency: 2},
		Loading:      WorkerPool{Concurrency: 8},
		PollInterval: 2 * time.Second,
	}
}

// Load reads path (if non-empty and present) as YAML over the defaults,
// then applies environment variable overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		}
	}

	cfg.LogMode = envString("FORWARDCTL_LOG_MODE", cfg.LogMode)
	cfg.StoreBackend = envString("FORWARDCTL_STORE_BACKEND", cfg.StoreBackend)
	cfg.StoreDSN = envString("FORWARDCTL_STORE_DSN", cfg.StoreDSN)
	cfg.QueueBackend = envString("FORWARDCTL_QUEUE_BACKEND", cfg.QueueBackend)
	cfg.QueueDSN = envString("FORWARDCTL_QUEUE_DSN", cfg.QueueDSN)
	cfg.Preparing.Concurrency = envInt("FORWARDCTL_PREPARING_CONCURRENCY", cfg.Preparing.Concurrency)
	cfg.Loading.Concurrency = envInt("FORWARDCTL_LOADING_CONCURRENCY", cfg.Loading.Concurrency)
	cfg.PollInterval = envDuration("FORWARDCTL_POLL_INTERVAL", cfg.PollInterval)

	return cfg, nil
}
