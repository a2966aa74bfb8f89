// Package config loads the service configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config is the full service configuration. Every field has an explicit
// default; nothing is read outside the environment.
type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		Workers            int     `env:"OPT_WORKERS" envDefault:"4"`
		MaxRestarts        int     `env:"OPT_MAX_RESTARTS" envDefault:"100"`
		MaxOuterIterations int     `env:"OPT_MAX_OUTER_ITERATIONS" envDefault:"200"`
		EpsilonInner       float64 `env:"OPT_EPSILON_INNER" envDefault:"1e-10"`
		EpsilonOuter       float64 `env:"OPT_EPSILON_OUTER" envDefault:"1e-6"`
		TrustRadius        float64 `env:"OPT_TRUST_RADIUS" envDefault:"2.0"`
	}
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}
