// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollachat/internal/config"
	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/ollama"
	"github.com/jeranaias/ollachat/internal/session"
)

// app bundles what every command needs once flags are parsed.
type app struct {
	cfg    *config.Config
	gen    conversation.GenerationConfig
	client *ollama.Client
	logger *log.Logger

	logCloser io.Closer
}

// newApp loads config, applies flag overrides and opens the log. Logs go
// to defaultLog unless --log-file is set.
func newApp(cmd *cobra.Command, opts *rootOptions, defaultLog io.Writer) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if err := opts.apply(cmd, cfg); err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		gen:    cfg.Generation(),
		client: ollama.NewClientWithConfig(cfg.ClientConfig()),
	}

	logOut := defaultLog
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		a.logCloser = f
		logOut = f
	}
	a.logger = log.New(logOut, "ollachat: ", log.LstdFlags)
	return a, nil
}

// apply copies explicitly set flags over cfg and revalidates.
func (o *rootOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	var ov conversation.Overrides
	if flags.Changed("model") {
		ov.Model = &o.model
	}
	if flags.Changed("temperature") {
		ov.Temperature = &o.temperature
	}
	if flags.Changed("max-output") {
		ov.MaxOutput = &o.maxOutput
	}
	gen := cfg.Generation().WithOverrides(ov)
	cfg.Model = gen.Model
	cfg.Temperature = gen.Temperature
	cfg.MaxOutput = gen.MaxOutput

	if flags.Changed("ollama-url") {
		cfg.OllamaURL = config.NormalizeURL(o.ollamaURL)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// newOrchestrator creates a fresh session bound to the Ollama backend.
func (a *app) newOrchestrator(r conversation.Renderer, opts ...conversation.Option) *conversation.Orchestrator {
	store := session.New(a.cfg.ErrorHistoryPolicy())
	base := []conversation.Option{
		conversation.WithRenderer(r),
		conversation.WithLogger(a.logger),
		conversation.WithBaseURL(a.client.BaseURL()),
	}
	return conversation.New(store, conversation.NewOllamaGenerator(a.client), a.gen, append(base, opts...)...)
}

// Close releases the log file, if any.
func (a *app) Close() error {
	if a.logCloser != nil {
		return a.logCloser.Close()
	}
	return nil
}

