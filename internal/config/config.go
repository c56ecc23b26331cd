// Copyright 2026 Blink Labs Software
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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "warden.config"

const DefaultShutdownTimeout = "30s"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	DatabasePath     string   `yaml:"databasePath"                    split_words:"true"`
	Authority        string   `yaml:"authority"`
	ActiveGuardians  []string `yaml:"activeGuardians"                 split_words:"true"`
	StandbyGuardians []string `yaml:"standbyGuardians"                split_words:"true"`
	RecoveryKinds    []string `yaml:"recoveryKinds"                   split_words:"true"`
	CommitteeSize    int      `yaml:"committeeSize"                   split_words:"true"`
	Threshold        int      `yaml:"threshold"`
	RecoveryWindow   string   `yaml:"recoveryWindow"                  split_words:"true"`
	VetoWindow       string   `yaml:"vetoWindow"                      split_words:"true"`
	CommitDelay      string   `yaml:"commitDelay"                     split_words:"true"`
	CommitWindow     string   `yaml:"commitWindow"                    split_words:"true"`
	ApiListenAddress string   `yaml:"apiListenAddress"                split_words:"true"`
	MetricsPort      uint     `yaml:"metricsPort"                     split_words:"true"`
	ShutdownTimeout  string   `yaml:"shutdownTimeout"                 split_words:"true"`
	Tracing          bool     `yaml:"tracing"`
	TracingStdout    bool     `yaml:"tracingStdout"                   split_words:"true"`
}

var globalConfig = &Config{
	DatabasePath:     ".warden",
	ApiListenAddress: "",
	MetricsPort:      12798,
	ShutdownTimeout:  DefaultShutdownTimeout,
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.warden/warden.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".warden", "warden.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/warden/warden.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/warden/warden.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	err := envconfig.Process("warden", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}
	if err := globalConfig.validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func (c *Config) validate() error {
	if c.Authority == "" {
		return errors.New("no governance authority configured")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"recoveryWindow", c.RecoveryWindow},
		{"vetoWindow", c.VetoWindow},
		{"commitDelay", c.CommitDelay},
		{"commitWindow", c.CommitWindow},
		{"shutdownTimeout", c.ShutdownTimeout},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid %s: %w", field.name, err)
		}
	}
	return nil
}

// Duration parses a duration config field, returning zero for empty. The
// field must already have passed validation.
func Duration(value string) time.Duration {
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
