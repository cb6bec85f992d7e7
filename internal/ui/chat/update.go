// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/model"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TurnMsg:
		m.appendEntry(entry{role: msg.Role, content: msg.Content})
		if msg.Role == model.RoleAssistant {
			m.partial = ""
		}
		m.updateViewport()
		return m, nil

	case PartialMsg:
		m.partial = msg.Content
		m.updateViewport()
		return m, nil

	case ErrorMsg:
		m.appendEntry(entry{role: model.RoleAssistant, content: msg.Content, isError: true})
		m.partial = ""
		m.updateViewport()
		return m, nil

	case StateMsg:
		m.state = msg.To
		m.updateViewport()
		if msg.To == conversation.StateAwaitingFirstFragment {
			return m, m.spinner.Tick
		}
		return m, nil

	case TurnDoneMsg:
		return m.handleTurnDone(msg)

	case ExportDoneMsg:
		if msg.Err != nil {
			m.notice = "Export failed: " + msg.Err.Error()
		} else {
			m.notice = "Saved " + msg.Path
		}
		return m, nil

	case OllamaStatusMsg:
		if msg.Running {
			m.status = ollamaUp
			m.statusErr = nil
		} else {
			m.status = ollamaDown
			m.statusErr = msg.Error
		}
		return m, nil

	case spinner.TickMsg:
		if m.state == conversation.StateAwaitingFirstFragment {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.updateViewport()
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true

	// Layout: header + viewport + input + status bar. Kept slightly larger
	// than the rendered heights so the viewport never overflows.
	const (
		headerHeight    = 2
		inputAreaHeight = 3
		statusBarHeight = 1
	)

	viewportHeight := m.height - headerHeight - inputAreaHeight - statusBarHeight
	if viewportHeight < 1 {
		viewportHeight = 1
	}
	viewportWidth := m.width
	if viewportWidth < 1 {
		viewportWidth = 1
	}
	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight

	const promptLen = 2 // "> "
	inputWidth := m.width - 6 - promptLen
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.input.Width = inputWidth

	m.theme.SetSize(m.width, m.height)
	m.rebuildMarkdown()

	// Cached renders depend on the width.
	for i := range m.entries {
		m.entries[i].rendered = ""
	}
	m.updateViewport()

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, vpCmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancelMgr.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.running && m.cancelMgr.cancel() {
			m.notice = "Cancelling..."
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Suggestion) && m.suggestionsVisible() && m.input.Value() == "":
		suggestions := conversation.Suggestions()
		idx := int(msg.String()[0] - '1')
		if idx < 0 || idx >= len(suggestions) {
			return m, nil
		}
		cmd := m.submitSuggestion(suggestions[idx].Label)
		return m, cmd

	case key.Matches(msg, m.keys.Export):
		m.notice = "Exporting..."
		return m, exportCmd(m.orch, m.exportDir)

	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if m.running {
		m.notice = conversation.ErrTurnInFlight.Error()
		return m, nil
	}
	m.input.Reset()
	cmd := m.submitText(text)
	return m, cmd
}

func (m Model) handleTurnDone(msg TurnDoneMsg) (tea.Model, tea.Cmd) {
	m.running = false
	m.partial = ""
	m.cancelMgr.cancel()

	switch {
	case msg.Err != nil:
		m.notice = msg.Err.Error()
	case msg.Result.Failed():
		m.notice = "Generation failed"
	default:
		m.notice = ""
	}
	if msg.Result.Stats != nil && !msg.Result.Failed() {
		m.stats = msg.Result.Stats
	}

	m.updateViewport()
	m.input.Focus()
	return m, textinput.Blink
}

// =============================================================================
// VIEWPORT
// =============================================================================

func (m *Model) appendEntry(e entry) {
	m.entries = append(m.entries, e)
}

// suggestionsVisible reports whether the welcome screen is showing.
func (m Model) suggestionsVisible() bool {
	return !m.running && len(m.entries) == 0
}

// updateViewport re-renders the transcript, following the bottom if the
// user had not scrolled away from it.
func (m *Model) updateViewport() {
	atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() <= m.viewport.Height
	m.viewport.SetContent(m.renderTranscript())
	if atBottom || m.running {
		m.viewport.GotoBottom()
	}
}
