// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollachat/internal/conversation"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Ask a single question and stream the answer",
		Long: `Ask sends one prompt and streams the reply to stdout.

With no arguments the prompt is read from stdin. Exits 1 if generation
fails; the error is written to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, args)
		},
	}
}

func runAsk(cmd *cobra.Command, opts *rootOptions, args []string) error {
	prompt := strings.Join(args, " ")
	if strings.TrimSpace(prompt) == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read prompt: %w", err)
		}
		prompt = string(data)
	}

	a, err := newApp(cmd, opts, io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	// Plain output when piped; colors only reach the error line.
	printer := newStreamPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), GetColorProfile())
	orch := a.newOrchestrator(printer)

	result, err := orch.HandleUserTurn(cmd.Context(), prompt)
	if errors.Is(err, conversation.ErrEmptyInput) {
		return errors.New("no prompt given")
	}
	if err != nil {
		return err
	}
	if result.Failed() {
		return ExitError{Code: 1}
	}
	return nil
}
