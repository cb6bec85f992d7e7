// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/ollama"
	"github.com/jeranaias/ollachat/internal/session"
	"github.com/jeranaias/ollachat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ollachat configuration.
type Config struct {
	// Generation settings
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxOutput   int     `toml:"max_output"`

	// OllamaURL is the base URL of the Ollama server
	OllamaURL string `toml:"ollama_url"`

	// ErrorHistory is "include" or "exclude": whether failed turns are
	// sent back to the model
	ErrorHistory string `toml:"error_history"`

	// ConnectTimeout bounds dialing Ollama, e.g. "5s"
	ConnectTimeout time.Duration `toml:"connect_timeout"`

	// UI configuration
	UI UIConfig `toml:"ui"`

	// Web server configuration
	Server ServerConfig `toml:"server"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Markdown renders assistant turns with glamour
	Markdown bool `toml:"markdown"`
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
}

// ServerConfig contains web server configuration.
type ServerConfig struct {
	// Addr is the listen address for `ollachat serve`
	Addr string `toml:"addr"`
	// SessionIdle drops web sessions idle this long, 0 keeps them
	SessionIdle time.Duration `toml:"session_idle"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Model:          conversation.DefaultModel,
		Temperature:    conversation.DefaultTemperature,
		MaxOutput:      conversation.DefaultMaxOutput,
		OllamaURL:      ollama.DefaultBaseURL,
		ErrorHistory:   "include",
		ConnectTimeout: 5 * time.Second,

		UI: UIConfig{
			Markdown: true,
			Theme:    "auto",
		},

		Server: ServerConfig{
			Addr:        "127.0.0.1:8501",
			SessionIdle: 2 * time.Hour,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ollachat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ollachat"), nil
}

// ConfigPath returns the path to the default TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.ollachat/config.toml if it exists,
// falling back to defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return finish(Default())
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return finish(Default())
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file, which must exist.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return fillDefaults(cfg)
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.OllamaURL == "" {
		cfg.OllamaURL = defaults.OllamaURL
	}
	if cfg.ErrorHistory == "" {
		cfg.ErrorHistory = defaults.ErrorHistory
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file, creating its directory.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0644, 0755); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String returns the config as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, ValidationError{Field: "model", Message: "must not be empty"})
	}

	if c.Temperature < conversation.MinTemperature || c.Temperature > conversation.MaxTemperature {
		errs = append(errs, ValidationError{
			Field:   "temperature",
			Message: fmt.Sprintf("%.2f out of range, must be between %.1f and %.1f", c.Temperature, conversation.MinTemperature, conversation.MaxTemperature),
		})
	}

	if c.MaxOutput <= 0 {
		errs = append(errs, ValidationError{
			Field:   "max_output",
			Message: fmt.Sprintf("must be positive, got %d", c.MaxOutput),
		})
	}

	if u, err := url.Parse(c.OllamaURL); err != nil {
		errs = append(errs, ValidationError{Field: "ollama_url", Message: fmt.Sprintf("invalid URL: %v", err)})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{
			Field:   "ollama_url",
			Message: fmt.Sprintf("invalid scheme '%s', must be http or https", u.Scheme),
		})
	} else if u.Host == "" {
		errs = append(errs, ValidationError{Field: "ollama_url", Message: "missing host"})
	}

	if _, err := session.ParseErrorHistoryPolicy(c.ErrorHistory); err != nil {
		errs = append(errs, ValidationError{Field: "error_history", Message: err.Error()})
	}

	if c.ConnectTimeout < 0 {
		errs = append(errs, ValidationError{Field: "connect_timeout", Message: "must not be negative"})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if c.Server.SessionIdle < 0 {
		errs = append(errs, ValidationError{Field: "server.session_idle", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - OLLACHAT_MODEL: overrides model
//   - OLLACHAT_TEMPERATURE: overrides temperature
//   - OLLACHAT_MAX_OUTPUT: overrides max_output
//   - OLLAMA_HOST: overrides ollama_url (host:port or URL)
//   - OLLACHAT_OLLAMA_URL: overrides ollama_url, wins over OLLAMA_HOST
func (c *Config) ApplyEnvOverrides() error {
	var errs ValidateErrors

	if model := os.Getenv("OLLACHAT_MODEL"); model != "" {
		c.Model = model
	}

	if temp := os.Getenv("OLLACHAT_TEMPERATURE"); temp != "" {
		v, err := strconv.ParseFloat(temp, 64)
		if err != nil {
			errs = append(errs, ValidationError{Field: "OLLACHAT_TEMPERATURE", Message: fmt.Sprintf("not a number: %q", temp)})
		} else {
			c.Temperature = v
		}
	}

	if maxOut := os.Getenv("OLLACHAT_MAX_OUTPUT"); maxOut != "" {
		v, err := strconv.Atoi(maxOut)
		if err != nil {
			errs = append(errs, ValidationError{Field: "OLLACHAT_MAX_OUTPUT", Message: fmt.Sprintf("not an integer: %q", maxOut)})
		} else {
			c.MaxOutput = v
		}
	}

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.OllamaURL = NormalizeURL(host)
	}
	if u := os.Getenv("OLLACHAT_OLLAMA_URL"); u != "" {
		c.OllamaURL = NormalizeURL(u)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errs)
	}
	return nil
}

// NormalizeURL turns an OLLAMA_HOST style value ("0.0.0.0:11434") into a
// base URL and strips any trailing slash.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	return strings.TrimRight(raw, "/")
}

// =============================================================================
// DERIVED SETTINGS
// =============================================================================

// Generation returns the generation parameters.
func (c *Config) Generation() conversation.GenerationConfig {
	return conversation.GenerationConfig{
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxOutput:   c.MaxOutput,
	}
}

// ErrorHistoryPolicy returns the parsed error history policy. Validate
// rejects unknown values, so this defaults to include.
func (c *Config) ErrorHistoryPolicy() session.ErrorHistoryPolicy {
	p, _ := session.ParseErrorHistoryPolicy(c.ErrorHistory)
	return p
}

// ClientConfig returns the Ollama client configuration.
func (c *Config) ClientConfig() *ollama.ClientConfig {
	return &ollama.ClientConfig{
		BaseURL:        c.OllamaURL,
		ConnectTimeout: c.ConnectTimeout,
	}
}

// IsValidationError reports whether err carries validation failures.
func IsValidationError(err error) bool {
	var ve ValidateErrors
	return errors.As(err, &ve)
}
