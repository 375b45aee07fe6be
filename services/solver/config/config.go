// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the solver configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/AleutianAI/AleutianSolver/services/solver/threat"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level solver configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after Load.
type Config struct {
	// ThreatHandler configures every resource threat decision point.
	ThreatHandler ThreatHandlerConfig `json:"threat_handler" yaml:"threat_handler"`

	// Search bounds the backtracking driver.
	Search SearchConfig `json:"search" yaml:"search"`

	// Logging configures pkg/logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Observability toggles tracing and metrics.
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`

	// Journal configures the decision journal.
	Journal JournalConfig `json:"journal" yaml:"journal"`
}

// ThreatHandlerConfig mirrors the threat handler attribute record. Empty
// fields take the handler's defaults.
type ThreatHandlerConfig struct {
	Filter     string `json:"filter" yaml:"filter" validate:"omitempty,oneof=none predecessorNot successor both"`
	Order      string `json:"order" yaml:"order"`
	Constraint string `json:"constraint" yaml:"constraint" validate:"omitempty,oneof=precedesOnly precedesFirst concurrentOnly concurrentFirst"`
	Iterate    string `json:"iterate" yaml:"iterate" validate:"omitempty,oneof=pairFirst constraintFirst"`
	Dedup      string `json:"dedup" yaml:"dedup" validate:"omitempty,oneof=ordering none"`
}

// SearchConfig bounds the driver.
type SearchConfig struct {
	// MaxSteps caps Execute calls per run. Zero disables the cap.
	MaxSteps int `json:"max_steps" yaml:"max_steps" validate:"gte=0"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level   string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	JSON    bool   `json:"json" yaml:"json"`
	Service string `json:"service" yaml:"service" validate:"required"`
	LogDir  string `json:"log_dir" yaml:"log_dir"`
}

// ObservabilityConfig toggles tracing and metrics.
type ObservabilityConfig struct {
	TracingEnabled bool `json:"tracing_enabled" yaml:"tracing_enabled"`
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`
}

// JournalConfig configures the decision journal.
type JournalConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Path     string `json:"path" yaml:"path" validate:"required_if=Enabled true InMemory false"`
	InMemory bool   `json:"in_memory" yaml:"in_memory"`
}

var configValidate = validator.New()

// Default returns the default configuration.
func Default() Config {
	return Config{
		Search: SearchConfig{MaxSteps: 10000},
		Logging: LoggingConfig{
			Level:   "info",
			Service: "threatsolve",
		},
		Observability: ObservabilityConfig{MetricsEnabled: true},
	}
}

// Load loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - path: YAML or JSON file. Empty or missing means defaults.
//
// Outputs:
//   - Config: The merged configuration.
//   - error: Non-nil if the file is unreadable, unparsable or invalid.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	loadEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("SOLVER_FILTER"); v != "" {
		cfg.ThreatHandler.Filter = v
	}
	if v := os.Getenv("SOLVER_ORDER"); v != "" {
		cfg.ThreatHandler.Order = v
	}
	if v := os.Getenv("SOLVER_CONSTRAINT"); v != "" {
		cfg.ThreatHandler.Constraint = v
	}
	if v := os.Getenv("SOLVER_ITERATE"); v != "" {
		cfg.ThreatHandler.Iterate = v
	}
	if v := os.Getenv("SOLVER_MAX_STEPS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxSteps = i
		}
	}
	if v := os.Getenv("SOLVER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SOLVER_TRACING_ENABLED"); v != "" {
		cfg.Observability.TracingEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SOLVER_JOURNAL_PATH"); v != "" {
		cfg.Journal.Enabled = true
		cfg.Journal.Path = v
	}
}

// Validate checks struct tags and parses the threat handler section.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return err
	}
	if _, err := threat.ParseOptions(c.ThreatAttributes()); err != nil {
		return err
	}
	return nil
}

// ThreatAttributes renders the threat handler section as the attribute
// record consumed by threat.New. Empty fields are omitted.
func (c Config) ThreatAttributes() threat.Attributes {
	attrs := threat.Attributes{}
	set := func(key, value string) {
		if value != "" {
			attrs[key] = value
		}
	}
	set(threat.OptionFilter, c.ThreatHandler.Filter)
	set(threat.OptionOrder, c.ThreatHandler.Order)
	set(threat.OptionConstraint, c.ThreatHandler.Constraint)
	set(threat.OptionIterate, c.ThreatHandler.Iterate)
	set(threat.OptionDedup, c.ThreatHandler.Dedup)
	return attrs
}
