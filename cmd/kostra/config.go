package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/kostra/pkg/klass"
)

type config struct {
	BaseURL       string        `yaml:"base_url"`
	Language      string        `yaml:"language"`
	IncludeFuture bool          `yaml:"include_future"`
	Timeout       time.Duration `yaml:"timeout"`
	SnapshotDir   string        `yaml:"snapshot_dir"`
	LogLevel      string        `yaml:"log_level"`
	// Extras are the default extra classification variables. Unset means
	// ask on the console.
	Extras []string `yaml:"extras"`
	// KlassIDs maps extra classification columns to registry ids for
	// validation.
	KlassIDs  map[string]int `yaml:"klass_ids"`
	EditLogDB string         `yaml:"editlog_db"`
}

func defaultConfig() config {
	return config{
		BaseURL:     klass.DefaultBaseURL,
		Language:    "nb",
		Timeout:     30 * time.Second,
		SnapshotDir: "snapshots",
		LogLevel:    "info",
	}
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("log_level %q: %w", s, err)
	}
	return l, nil
}
