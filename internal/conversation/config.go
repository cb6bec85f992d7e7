// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"fmt"
	"strings"
)

// Default generation parameters.
const (
	DefaultModel       = "llama3.2"
	DefaultTemperature = 0.7
	DefaultMaxOutput   = 2048

	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// GenerationConfig holds the parameters for every completion request in a
// session. It is a value type; use WithOverrides to derive a new one.
type GenerationConfig struct {
	Model       string
	Temperature float64
	MaxOutput   int
}

// DefaultGenerationConfig returns llama3.2 at temperature 0.7 with a
// 2048 token budget.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxOutput:   DefaultMaxOutput,
	}
}

// Validate checks the model name, temperature range and output budget.
func (c GenerationConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model must not be empty"))
	}
	if c.Temperature < MinTemperature || c.Temperature > MaxTemperature {
		errs = append(errs, fmt.Errorf("temperature %.2f out of range [%.1f, %.1f]", c.Temperature, MinTemperature, MaxTemperature))
	}
	if c.MaxOutput <= 0 {
		errs = append(errs, fmt.Errorf("max output must be positive, got %d", c.MaxOutput))
	}
	return errors.Join(errs...)
}

// Overrides lists optional replacements for a GenerationConfig. Nil fields
// keep the current value.
type Overrides struct {
	Model       *string
	Temperature *float64
	MaxOutput   *int
}

// WithOverrides returns a copy of c with the non-nil overrides applied.
func (c GenerationConfig) WithOverrides(o Overrides) GenerationConfig {
	if o.Model != nil {
		c.Model = *o.Model
	}
	if o.Temperature != nil {
		c.Temperature = *o.Temperature
	}
	if o.MaxOutput != nil {
		c.MaxOutput = *o.MaxOutput
	}
	return c
}

// String renders the config for status lines.
func (c GenerationConfig) String() string {
	return fmt.Sprintf("%s (temperature %.1f, max %d tokens)", c.Model, c.Temperature, c.MaxOutput)
}
