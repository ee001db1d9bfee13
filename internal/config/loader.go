package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".orgweave"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// EnvPrefix namespaces environment overrides.
	EnvPrefix = "ORGWEAVE"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("ORGWEAVE_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("ORGWEAVE_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	return os.UserHomeDir()
}

// Load reads the config file (when present) and applies environment
// overrides. A missing file yields the defaults.
func Load() (Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return cfg, fmt.Errorf("resolve config path: %w", err)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Defaults plus env are enough to run.
	default:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	for _, section := range []any{&cfg.Paths, &cfg.Provider, &cfg.Engine, &cfg.Scheduler, &cfg.Kafka, &cfg.Notify.Email, &cfg.Notify.Slack} {
		if err := envconfig.Process(EnvPrefix, section); err != nil {
			return cfg, fmt.Errorf("apply env overrides: %w", err)
		}
	}

	if cfg.Paths.DBPath == "" {
		home, err := resolveHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("resolve home: %w", err)
		}
		cfg.Paths.DBPath = filepath.Join(home, ConfigDir, "orgweave.db")
	}
	return cfg, nil
}
