// Copyright 2025 The LAMA Jockey Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the jockeyd daemon configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lama-robotics/jockey/internal/simjockey"
)

// EnvPrefix is the prefix of environment variables overriding configuration keys,
// for example JOCKEYD_SIM_STEPS.
const EnvPrefix = "JOCKEYD"

// Config is the root configuration of the daemon.
type Config struct {
	// Listen is the address of the gRPC endpoint.
	Listen string `mapstructure:"listen"`
	// MetricsListen is the address of the Prometheus /metrics endpoint. Empty disables it.
	MetricsListen string `mapstructure:"metrics_listen"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
	// LogFormat is text or json.
	LogFormat string `mapstructure:"log_format"`

	Sim SimConfig `mapstructure:"sim"`
}

// SimConfig configures the simulated jockey served by the daemon.
type SimConfig struct {
	Steps     int           `mapstructure:"steps"`
	StepDelay time.Duration `mapstructure:"step_delay"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Listen:        "127.0.0.1:50051",
		MetricsListen: "127.0.0.1:9090",
		LogLevel:      "info",
		LogFormat:     "text",
		Sim: SimConfig{
			Steps:     5,
			StepDelay: 200 * time.Millisecond,
		},
	}
}

// SetDefaults registers the defaults with the provided viper instance.
func SetDefaults(v *viper.Viper) {
	defaults := Default()
	v.SetDefault("listen", defaults.Listen)
	v.SetDefault("metrics_listen", defaults.MetricsListen)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_format", defaults.LogFormat)
	v.SetDefault("sim.steps", defaults.Sim.Steps)
	v.SetDefault("sim.step_delay", defaults.Sim.StepDelay)
}

// New creates a viper instance with the defaults and environment overrides registered.
// If path is not empty the configuration file is read from it.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if c.Sim.Steps < 0 {
		errs = append(errs, fmt.Errorf("sim.steps must not be negative, got %d", c.Sim.Steps))
	}
	if c.Sim.StepDelay < 0 {
		errs = append(errs, fmt.Errorf("sim.step_delay must not be negative, got %v", c.Sim.StepDelay))
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return level, nil
}

// SimJockey returns the configuration of the simulated jockey.
func (c *Config) SimJockey() simjockey.Config {
	return simjockey.Config{Steps: c.Sim.Steps, StepDelay: c.Sim.StepDelay}
}
