// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// ExitError ends the process with Code without printing anything more;
// the command has already reported the failure.
type ExitError struct {
	Code int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	model       string
	temperature float64
	maxOutput   int
	ollamaURL   string
	configPath  string
	logFile     string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ollachat",
		Short: "Chat with local models served by Ollama",
		Long: `ollachat streams replies from a local Ollama server into a chat view.

Examples:
  ollachat                              # full-screen chat
  ollachat -m mistral -t 0.2            # pick model and temperature
  ollachat ask "explain goroutines"     # one-shot answer
  echo "summarize this" | ollachat ask  # prompt from stdin
  ollachat serve --addr :8080           # browser chat`,
		Args:              cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if Interactive() {
				return runTUI(cmd, opts)
			}
			return runChat(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.model, "model", "m", "", "Ollama model to chat with")
	flags.Float64VarP(&opts.temperature, "temperature", "t", 0, "Sampling temperature (0-2)")
	flags.IntVar(&opts.maxOutput, "max-output", 0, "Maximum tokens to generate per reply")
	flags.StringVar(&opts.ollamaURL, "ollama-url", "", "Ollama base URL (default http://localhost:11434)")
	flags.StringVar(&opts.configPath, "config", "", "Config file (default ~/.ollachat/config.toml)")
	flags.StringVar(&opts.logFile, "log-file", "", "Append logs to this file")

	root.AddCommand(
		newChatCmd(opts),
		newAskCmd(opts),
		newServeCmd(opts),
		newModelsCmd(opts),
		newStatusCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
