package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/vk/devfn/internal/watcher"
)

// DefaultPort is the dev server port used when none is given.
const DefaultPort = 3000

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Dir is where the search for devfn.hcl starts, and the function root
	// when no config file exists.
	Dir string

	Port         int
	LogFormat    string
	LogLevel     string
	PollInterval time.Duration
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Dir == "" {
		return nil, errors.New("Dir is a required configuration field and cannot be empty")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.PollInterval < 0 {
		return nil, fmt.Errorf("invalid poll interval %s", cfg.PollInterval)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = watcher.DefaultPollInterval
	}
	return &cfg, nil
}
