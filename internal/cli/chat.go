// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/ollachat/internal/config"
	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/export"
	"github.com/jeranaias/ollachat/internal/util"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Line-mode chat with input history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}
}

func runChat(cmd *cobra.Command, opts *rootOptions) error {
	a, err := newApp(cmd, opts, io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	printer := newStreamPrinter(out, cmd.ErrOrStderr(), GetColorProfile())
	orch := a.newOrchestrator(printer)

	input := NewChatCLI()
	defer input.Close()

	r := &repl{orch: orch, lines: input, out: out, colors: printer.colors, saveDir: "."}

	// Ctrl+C during generation cancels the turn. At the prompt liner
	// reports it as ErrPromptAborted instead.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if r.interrupt() {
				fmt.Fprintln(cmd.ErrOrStderr(), printer.colors.muted("[Cancelled]"))
			}
		}
	}()

	return r.run(cmd.Context())
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader is the prompt source for the REPL.
type lineReader interface {
	ReadInput(prompt string) (string, error)
}

// ChatCLI provides input history and line editing for line-mode chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history, owner read/write only.
func (c *ChatCLI) SaveHistory() {
	var buf bytes.Buffer
	if _, err := c.line.WriteHistory(&buf); err != nil {
		return
	}
	util.WriteFileAtomic(c.historyFile, buf.Bytes(), 0600, 0700)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

type repl struct {
	orch    *conversation.Orchestrator
	lines   lineReader
	out     io.Writer
	colors  palette
	saveDir string // /save target

	mu     sync.Mutex
	cancel context.CancelFunc
}

// run reads prompts until EOF, Ctrl+C at the prompt, or "exit".
func (r *repl) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.printWelcome()

	for {
		input, err := r.lines.ReadInput(r.colors.prompt("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "exit"), strings.EqualFold(input, "quit"):
			return nil
		case input == "/save" || strings.HasPrefix(input, "/save "):
			r.save(strings.TrimSpace(strings.TrimPrefix(input, "/save")))
			continue
		}

		if err := r.turn(ctx, input); err != nil {
			fmt.Fprintln(r.out, r.colors.error(err.Error()))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// turn runs one exchange. A bare 1-3 on an empty session picks an example.
func (r *repl) turn(parent context.Context, input string) error {
	ctx, cancel := context.WithCancel(parent)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()

	if label, ok := r.suggestionFor(input); ok {
		_, err := r.orch.HandleSuggestion(ctx, label)
		return err
	}
	_, err := r.orch.HandleUserTurn(ctx, input)
	return err
}

// interrupt cancels the turn in flight and reports whether there was one.
func (r *repl) interrupt() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// save exports the transcript in format ("markdown" when empty).
func (r *repl) save(format string) {
	exp, err := export.ForFormat(format, nil)
	if err != nil {
		fmt.Fprintln(r.out, r.colors.error(err.Error()))
		return
	}
	t := export.FromStore(r.orch.Store(), r.orch.Config().Model)
	path, err := export.ExportToFile(t, exp, r.saveDir)
	if err != nil {
		fmt.Fprintln(r.out, r.colors.error(err.Error()))
		return
	}
	fmt.Fprintln(r.out, r.colors.ok("Saved "+path))
}

func (r *repl) suggestionFor(input string) (string, bool) {
	if !r.orch.Store().IsEmpty() {
		return "", false
	}
	n, err := strconv.Atoi(input)
	suggestions := conversation.Suggestions()
	if err != nil || n < 1 || n > len(suggestions) {
		return "", false
	}
	return suggestions[n-1].Label, true
}

func (r *repl) printWelcome() {
	cfg := r.orch.Config()
	fmt.Fprintf(r.out, "%s %s\n", r.colors.prompt("ollachat"), r.colors.muted(cfg.String()))
	if !r.orch.Store().IsEmpty() {
		return
	}
	fmt.Fprintln(r.out, r.colors.muted("Try these examples (type the number):"))
	for i, s := range conversation.Suggestions() {
		fmt.Fprintf(r.out, "  [%d] %s\n", i+1, s.Label)
	}
	fmt.Fprintln(r.out, r.colors.muted(`Type "/save [markdown|json]" to export, "exit" or Ctrl+D to quit.`))
}
