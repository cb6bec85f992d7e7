// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ollachat.
//
// Configuration is a TOML file with sensible defaults, environment variable
// overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - UIConfig: Terminal rendering options
//   - ServerConfig: Web server options
//
// # Configuration Precedence
//
// Configuration is resolved from (highest first):
//   - Command line flags (applied by the cli package)
//   - Environment variables (OLLACHAT_*, OLLAMA_HOST)
//   - ~/.ollachat/config.toml, or the file given with --config
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gen := cfg.Generation()
package config
