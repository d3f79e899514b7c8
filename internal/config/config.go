// Copyright 2025 Blink Labs Software
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
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/z-vasconcelos/flightsurety/database"
	"github.com/z-vasconcelos/flightsurety/surety"
	"github.com/z-vasconcelos/flightsurety/types"
)

type ctxKey string

const configContextKey ctxKey = "flightsurety.config"

const (
	DefaultShutdownTimeout = "30s"
	EnvPrefix              = "flightsurety"
)

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

type tempConfig struct {
	Config *Config `yaml:"config,omitempty"`
}

// Config is the on-disk and environment configuration of a node. Amounts are
// decimal strings so that they survive YAML and environment round trips
// without float rounding.
type Config struct {
	DatabasePath        string `yaml:"databasePath"        split_words:"true"`
	BlobPlugin          string `yaml:"blobPlugin"          split_words:"true"`
	MetadataPlugin      string `yaml:"metadataPlugin"      split_words:"true"`
	MetadataDsn         string `yaml:"metadataDsn"         split_words:"true"`
	BindAddr            string `yaml:"bindAddr"            split_words:"true"`
	Owner               string `yaml:"owner"`
	FoundingAirline     string `yaml:"foundingAirline"     split_words:"true"`
	FoundingAirlineName string `yaml:"foundingAirlineName" split_words:"true"`
	RegistrationFee     string `yaml:"registrationFee"     split_words:"true"`
	MinFunding          string `yaml:"minFunding"          split_words:"true"`
	MaxPremium          string `yaml:"maxPremium"          split_words:"true"`
	CreditMultiplier    string `yaml:"creditMultiplier"    split_words:"true"`
	ReporterStatus      string `yaml:"reporterStatus"      split_words:"true"`
	ShutdownTimeout     string `yaml:"shutdownTimeout"     split_words:"true"`
	ApiPort             uint   `yaml:"apiPort"             split_words:"true"`
	MetricsPort         uint   `yaml:"metricsPort"         split_words:"true"`
	Quorum              int    `yaml:"quorum"`
	IndexDomain         int    `yaml:"indexDomain"         split_words:"true"`
	IndexesPerOracle    int    `yaml:"indexesPerOracle"    split_words:"true"`
	BootstrapSize       int    `yaml:"bootstrapSize"       split_words:"true"`
	// ReporterCount is the size of the simulated oracle fleet, 0 disables it
	ReporterCount       int  `yaml:"reporterCount"       split_words:"true"`
	ReporterWorkers     int  `yaml:"reporterWorkers"     split_words:"true"`
	FundedParticipation bool `yaml:"fundedParticipation" split_words:"true"`
	Tracing             bool `yaml:"tracing"`
	TracingStdout       bool `yaml:"tracingStdout"       split_words:"true"`
}

// DefaultConfig returns the configuration used when neither a file nor the
// environment says otherwise
func DefaultConfig() *Config {
	policy := surety.DefaultPolicy()
	return &Config{
		DatabasePath:     ".flightsurety",
		BlobPlugin:       database.DefaultBlobPlugin,
		MetadataPlugin:   database.DefaultMetadataPlugin,
		BindAddr:         "0.0.0.0",
		Owner:            "0xowner",
		RegistrationFee:  policy.RegistrationFee.String(),
		MinFunding:       policy.MinFunding.String(),
		MaxPremium:       policy.MaxPremium.String(),
		CreditMultiplier: policy.CreditMultiplier.String(),
		ShutdownTimeout:  DefaultShutdownTimeout,
		ApiPort:          3000,
		MetricsPort:      12798,
		Quorum:           policy.Quorum,
		IndexDomain:      policy.IndexDomain,
		IndexesPerOracle: policy.IndexesPerOracle,
		BootstrapSize:    policy.BootstrapSize,
		ReporterCount:    20,
		ReporterWorkers:  4,
	}
}

// LoadConfig builds a config from the defaults, the YAML file (if any) and
// the FLIGHTSURETY_* environment, in that order
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".flightsurety", "flightsurety.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/flightsurety/flightsurety.yaml"
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
		var tempCfg tempConfig
		if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		if tempCfg.Config != nil {
			// Overlay the config section onto the defaults
			configBytes, err := yaml.Marshal(tempCfg.Config)
			if err != nil {
				return nil, fmt.Errorf("error re-marshalling config: %w", err)
			}
			if err := yaml.Unmarshal(configBytes, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config section: %w", err)
			}
		} else if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every value that can be checked without opening anything
func (c *Config) Validate() error {
	var errs []error
	if _, err := types.ParseAddress(c.Owner); err != nil {
		errs = append(errs, fmt.Errorf("invalid owner: %w", err))
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ReporterFixedStatus(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if c.ReporterCount < 0 {
		errs = append(errs, fmt.Errorf("invalid reporterCount: %d", c.ReporterCount))
	}
	if c.ReporterCount > 0 && c.ReporterCount < c.Quorum {
		errs = append(
			errs,
			fmt.Errorf(
				"reporterCount %d is below quorum %d, no status could ever finalize",
				c.ReporterCount,
				c.Quorum,
			),
		)
	}
	return errors.Join(errs...)
}

// Policy returns the system rules described by the config
func (c *Config) Policy() (surety.Policy, error) {
	ret := surety.Policy{
		BootstrapSize:       c.BootstrapSize,
		FundedParticipation: c.FundedParticipation,
		IndexDomain:         c.IndexDomain,
		IndexesPerOracle:    c.IndexesPerOracle,
		Quorum:              c.Quorum,
	}
	amounts := []struct {
		name  string
		value string
		dest  *decimal.Decimal
	}{
		{"registrationFee", c.RegistrationFee, &ret.RegistrationFee},
		{"minFunding", c.MinFunding, &ret.MinFunding},
		{"maxPremium", c.MaxPremium, &ret.MaxPremium},
		{"creditMultiplier", c.CreditMultiplier, &ret.CreditMultiplier},
	}
	for _, a := range amounts {
		d, err := decimal.NewFromString(a.value)
		if err != nil {
			return surety.Policy{}, fmt.Errorf("invalid %s %q: %w", a.name, a.value, err)
		}
		if !d.IsPositive() {
			return surety.Policy{}, fmt.Errorf("invalid %s %q: must be positive", a.name, a.value)
		}
		*a.dest = d
	}
	if c.Quorum < 1 {
		return surety.Policy{}, fmt.Errorf("invalid quorum: %d", c.Quorum)
	}
	if c.BootstrapSize < 1 {
		return surety.Policy{}, fmt.Errorf("invalid bootstrapSize: %d", c.BootstrapSize)
	}
	if c.IndexDomain < 1 || c.IndexDomain > 256 {
		return surety.Policy{}, fmt.Errorf("invalid indexDomain: %d", c.IndexDomain)
	}
	if c.IndexesPerOracle < 1 {
		return surety.Policy{}, fmt.Errorf("invalid indexesPerOracle: %d", c.IndexesPerOracle)
	}
	return ret, nil
}

// ReporterFixedStatus returns the status the simulated fleet always
// reports, or StatusUnknown when it should pick at random
func (c *Config) ReporterFixedStatus() (types.FlightStatus, error) {
	if c.ReporterStatus == "" || c.ReporterStatus == "random" {
		return types.StatusUnknown, nil
	}
	status, err := types.ParseFlightStatus(c.ReporterStatus)
	if err != nil {
		return types.StatusUnknown, fmt.Errorf("invalid reporterStatus: %w", err)
	}
	if !status.Reportable() {
		return types.StatusUnknown, fmt.Errorf(
			"invalid reporterStatus %q: not reportable",
			c.ReporterStatus,
		)
	}
	return status, nil
}

func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdownTimeout %q: %w", c.ShutdownTimeout, err)
	}
	return d, nil
}
