// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat view component for the ollachat TUI.

The chat package implements a terminal chat interface using the Bubble Tea
framework. Turns are run by a conversation.Orchestrator; this package only
collects input and draws what the orchestrator reports.

# Key Components

## Model (model.go)

The Model struct is the Bubble Tea model that maintains view state:
  - Display entries built from render events (append-based)
  - Text input and scrolling viewport
  - Spinner while waiting for the first fragment
  - Welcome panel with suggested prompts while the session is empty

## Bridge (bridge.go)

Bridge implements conversation.Renderer by forwarding render calls to the
running tea.Program as messages. Incremental renders are rate limited; the
final turn and errors are always delivered.

## Update Loop (update.go) and View (view.go)

Keyboard handling, stream message handling, window resize, and rendering of
the header, message bubbles, input box, and status bar.

# Usage

	bridge := chat.NewBridge()
	orch := conversation.New(store, gen, cfg,
	    conversation.WithRenderer(bridge),
	    conversation.WithStateObserver(bridge.ObserveState))
	m := chat.New(orch, bridge, chat.Options{Theme: styles.NewTheme("auto")})
	p := tea.NewProgram(m, tea.WithAltScreen())
	bridge.Attach(p)
	_, err := p.Run()
*/
package chat
