package app

import (
	"errors"
	"time"
)

const (
	DefaultWorkerCount    = 4
	DefaultCompileTimeout = 10 * time.Second
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	StrategiesPath string // .strat/.hcl files seeded into the store at startup
	DSN            string // postgres; the in-memory store is used when empty

	WorkerCount    int
	QueueSize      int
	CompileTimeout time.Duration // per backend attempt
	ScratchDir     string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates cfg and fills in derived defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkerCount < 1 {
		return nil, errors.New("WorkerCount must be at least 1")
	}
	if cfg.QueueSize < 0 {
		return nil, errors.New("QueueSize cannot be negative")
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = cfg.WorkerCount * 4
	}
	if cfg.CompileTimeout <= 0 {
		return nil, errors.New("CompileTimeout must be positive")
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, errors.New("HealthcheckPort must be between 0 and 65535")
	}

	return &cfg, nil
}
