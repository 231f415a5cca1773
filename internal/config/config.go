// Package config loads the relay's YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds everything the relay daemon needs to run.
type Config struct {
	// ListenAddr is the local address the relay serves on.
	ListenAddr string `yaml:"listen_addr"`

	// BackendURL is the bike-share backend the relay fronts.
	BackendURL string `yaml:"backend_url"`

	// DBPath is the sqlite file holding queues, settings, and cache.
	DBPath string `yaml:"db_path"`

	// CacheName is the active static-cache generation. Bumping it evicts
	// every previously cached asset on the next startup.
	CacheName string `yaml:"cache_name"`

	// Precache lists backend paths fetched into the cache at startup.
	Precache []string `yaml:"precache"`

	// SyncInterval is how often the background drain runs.
	SyncInterval Duration `yaml:"sync_interval"`

	// RequestTimeout bounds each backend request.
	RequestTimeout Duration `yaml:"request_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr:     "127.0.0.1:8090",
		BackendURL:     "http://localhost:8000",
		DBPath:         "bikerelay.db",
		CacheName:      "bike-app-v1",
		Precache:       []string{"/", "/app.js", "/styles.css", "/manifest.json"},
		SyncInterval:   Duration(30 * time.Second),
		RequestTimeout: Duration(10 * time.Second),
	}
}

// Load reads path and overlays it on the defaults. An empty path returns
// the defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.CacheName == "" {
		return fmt.Errorf("cache_name must not be empty")
	}
	if c.SyncInterval.Std() <= 0 {
		return fmt.Errorf("sync_interval must be positive")
	}
	if c.RequestTimeout.Std() <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	return nil
}
