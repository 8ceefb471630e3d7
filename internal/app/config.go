package app

import (
	"errors"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	WorkflowPath string // hcl file or directory
	OutDir       string
	Overrides    map[string]string

	APIKey  string
	EnvFile string

	Workers     int
	FailFast    bool
	CallTimeout time.Duration

	ServePort       int
	HealthcheckPort int
	LogFormat       string
	LogLevel        string
}

// NewConfig validates a Config. A workflow path is required unless the app
// is started in server mode, where workflows arrive over the socket.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkflowPath == "" && cfg.ServePort <= 0 {
		return nil, errors.New("a workflow path is required unless -serve is set")
	}

	return &cfg, nil
}
