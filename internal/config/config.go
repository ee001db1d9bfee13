// Package config provides configuration types and loading for orgweave.
package config

import (
	"github.com/OrgWeave/OrgWeave/internal/bus"
	"github.com/OrgWeave/OrgWeave/internal/engine"
	"github.com/OrgWeave/OrgWeave/internal/notify"
	"github.com/OrgWeave/OrgWeave/internal/provider"
	"github.com/OrgWeave/OrgWeave/internal/scheduler"
)

// Config is the root configuration struct.
type Config struct {
	Paths     PathsConfig      `json:"paths"`
	Provider  provider.Config  `json:"provider"`
	Engine    engine.Config    `json:"engine"`
	Scheduler scheduler.Config `json:"scheduler"`
	Kafka     bus.KafkaConfig  `json:"kafka"`
	Notify    notify.Config    `json:"notify"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	Home   string `json:"home" envconfig:"HOME_DIR"`
	DBPath string `json:"dbPath" envconfig:"DB_PATH"`
}

// Default returns a config with every section at its defaults.
func Default() Config {
	return Config{
		Provider:  provider.DefaultConfig(),
		Engine:    engine.DefaultConfig(),
		Scheduler: scheduler.DefaultConfig(),
	}
}
