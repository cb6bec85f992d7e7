// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/ui/chat"
	"github.com/jeranaias/ollachat/internal/ui/styles"
)

// runTUI starts the full-screen chat. The terminal belongs to Bubble Tea,
// so logs are dropped unless --log-file is set.
func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	a, err := newApp(cmd, opts, io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	bridge := chat.NewBridge()
	orch := a.newOrchestrator(bridge, conversation.WithStateObserver(bridge.ObserveState))

	m := chat.New(orch, bridge, chat.Options{
		Theme:    styles.NewTheme(a.cfg.UI.Theme),
		Markdown: a.cfg.UI.Markdown,
		Health:   a.client,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	bridge.Attach(p)

	a.logger.Printf("tui started: session=%s model=%s", orch.Store().ID(), a.gen.Model)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}
	return nil
}
