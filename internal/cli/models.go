// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/jeranaias/ollachat/internal/ollama"
)

// =============================================================================
// MODELS
// =============================================================================

func newModelsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models installed in Ollama",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, io.Discard)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			models, err := a.client.ListModels(ctx)
			if err != nil {
				return fmt.Errorf("failed to list models: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(models) == 0 {
				fmt.Fprintln(out, "No models installed. Pull one with: ollama pull "+a.gen.Model)
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("NAME", "SIZE", "MODIFIED")
			for _, m := range models {
				name := m.Name
				if m.Name == a.gen.Model || m.Name == a.gen.Model+":latest" {
					name += " *"
				}
				modified := "-"
				if !m.ModifiedAt.IsZero() {
					modified = m.ModifiedAt.Format("2006-01-02")
				}
				t.Row(name, m.FormatSize(), modified)
			}
			fmt.Fprintln(out, t.Render())
			return nil
		},
	}
}

// =============================================================================
// STATUS
// =============================================================================

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that Ollama is reachable and the model is installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, io.Discard)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			colors := palette{profile: GetColorProfile()}
			out := cmd.OutOrStdout()

			if err := a.client.CheckRunning(ctx); err != nil {
				fmt.Fprintf(out, "%s Ollama at %s: %s\n", colors.error("✗"), a.client.BaseURL(), unreachableReason(err))
				return ExitError{Code: 1}
			}
			fmt.Fprintf(out, "%s Ollama is running at %s\n", colors.ok("✓"), a.client.BaseURL())

			if _, err := a.client.GetModel(ctx, a.gen.Model); err != nil {
				if ollama.IsModelNotFound(err) {
					fmt.Fprintf(out, "%s Model %s is not installed (ollama pull %s)\n", colors.error("✗"), a.gen.Model, a.gen.Model)
				} else {
					fmt.Fprintf(out, "%s Model %s could not be checked: %s\n", colors.error("✗"), a.gen.Model, unreachableReason(err))
				}
				return ExitError{Code: 1}
			}
			fmt.Fprintf(out, "%s Model %s is available\n", colors.ok("✓"), a.gen.Model)
			return nil
		},
	}
}

// unreachableReason phrases a failed status check.
func unreachableReason(err error) string {
	switch {
	case ollama.IsTimeout(err):
		return "timed out"
	case ollama.IsNotRunning(err):
		return "not running (start it with `ollama serve`)"
	default:
		return err.Error()
	}
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ollachat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}
