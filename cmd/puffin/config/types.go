// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// PuffinConfig is the user-facing configuration, stored at
// ~/.puffin/puffin.yaml. Fields carry validator tags; Validate must
// pass before the config is used.
type PuffinConfig struct {
	// Logging: destination and verbosity for structured logs
	Logging LoggingConfig `yaml:"logging"`

	// Compression: archive writing defaults
	Compression CompressionConfig `yaml:"compression"`

	// Timeouts: per-operation deadlines, parseable by time.ParseDuration
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"` // e.g. "info"
	Dir   string `yaml:"dir"`                                          // e.g. "~/.puffin/logs", empty disables file logging
}

type CompressionConfig struct {
	// Level maps to DEFLATE levels: 0 picks the library default,
	// 1 is fastest, 9 is best compression.
	Level int `yaml:"level" validate:"gte=0,lte=9"`
}

type TimeoutConfig struct {
	Compress string `yaml:"compress" validate:"required,duration"` // e.g. "30m"
	Extract  string `yaml:"extract" validate:"required,duration"`  // e.g. "30m"
	Scan     string `yaml:"scan" validate:"required,duration"`     // e.g. "5m"
}

// configValidate is the validator instance for config types.
// Initialized in init() with custom validators.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()

	if err := configValidate.RegisterValidation("duration", validateDuration); err != nil {
		panic(fmt.Sprintf("failed to register duration validator: %v", err))
	}
}

// Custom validator requiring a positive time.ParseDuration string.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// Validate checks the config against its struct tags.
func (c *PuffinConfig) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Duration parses a timeout field that has already passed Validate.
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// CompressTimeout returns the configured compress deadline.
func (c *PuffinConfig) CompressTimeout() time.Duration {
	return parseDuration(c.Timeouts.Compress, 30*time.Minute)
}

// ExtractTimeout returns the configured extract deadline.
func (c *PuffinConfig) ExtractTimeout() time.Duration {
	return parseDuration(c.Timeouts.Extract, 30*time.Minute)
}

// ScanTimeout returns the configured scan deadline.
func (c *PuffinConfig) ScanTimeout() time.Duration {
	return parseDuration(c.Timeouts.Scan, 5*time.Minute)
}

func DefaultConfig() PuffinConfig {
	return PuffinConfig{
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.puffin/logs",
		},
		Compression: CompressionConfig{
			Level: 0,
		},
		Timeouts: TimeoutConfig{
			Compress: "30m",
			Extract:  "30m",
			Scan:     "5m",
		},
	}
}
