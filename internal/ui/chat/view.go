// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/model"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View implements tea.Model.
// Layout: header + messages (viewport) + input + status bar.
func (m Model) View() string {
	if !m.ready || m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	input := m.renderInput()
	status := m.renderStatusBar()

	availableHeight := m.height - lipgloss.Height(header) - lipgloss.Height(input) - lipgloss.Height(status)
	if availableHeight < 1 {
		availableHeight = 1
	}

	messages := m.viewport.View()
	if lipgloss.Height(messages) != availableHeight {
		messages = lipgloss.NewStyle().
			Height(availableHeight).
			MaxHeight(availableHeight).
			Width(m.width).
			Render(messages)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, messages, input, status)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render(m.title)
	meta := m.theme.HeaderMeta.Render(fmt.Sprintf("%s | %s", m.orch.Store().Title(), m.orch.Config().Model))

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(meta) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(title + strings.Repeat(" ", gap) + meta)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders every entry plus the in-flight state.
func (m *Model) renderTranscript() string {
	if m.suggestionsVisible() {
		return m.renderWelcome()
	}

	var b strings.Builder
	for i := range m.entries {
		e := &m.entries[i]
		if e.rendered == "" {
			e.rendered = m.renderEntry(*e)
		}
		b.WriteString(e.rendered)
		b.WriteString("\n\n")
	}

	switch {
	case m.partial != "":
		b.WriteString(m.renderPartial())
	case m.state == conversation.StateAwaitingFirstFragment:
		b.WriteString(m.renderThinking())
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderEntry(e entry) string {
	label := m.theme.RoleLabel.Render(e.role.DisplayName())
	width := m.theme.BubbleWidth()

	var body string
	switch {
	case e.isError:
		text := e.content
		if md, ok := m.renderMarkdown(e.content); ok {
			text = md
		}
		body = m.theme.ErrorBubble.Width(width).Render(text)
	case e.role == model.RoleUser:
		body = m.theme.UserBubble.Width(width).Render(e.content)
	default:
		text := e.content
		if md, ok := m.renderMarkdown(e.content); ok {
			text = md
		}
		body = m.theme.AssistantBubble.Width(width).Render(text)
	}
	return label + "\n" + body
}

// renderPartial shows the raw in-flight text; it already carries the cursor.
func (m *Model) renderPartial() string {
	label := m.theme.RoleLabel.Render(model.RoleAssistant.DisplayName())
	return label + "\n" + m.theme.AssistantBubble.Width(m.theme.BubbleWidth()).Render(m.partial)
}

func (m *Model) renderThinking() string {
	label := m.theme.RoleLabel.Render(model.RoleAssistant.DisplayName())
	return label + "\n" + m.spinner.View() + " " + m.theme.ThinkingText.Render("Thinking...")
}

// renderWelcome shows the empty-session screen with the example prompts.
func (m *Model) renderWelcome() string {
	var b strings.Builder
	b.WriteString(m.theme.WelcomeTitle.Render("Ollama Chatbot"))
	b.WriteString("\n\n")
	b.WriteString(m.theme.WelcomeInfo.Render("Welcome! Start chatting by typing a message below."))
	b.WriteString("\n\n")
	b.WriteString(m.theme.WelcomeInfo.Render("Try these examples:"))
	b.WriteString("\n")

	maxLabel := m.theme.BubbleWidth() - 8
	for i, s := range conversation.Suggestions() {
		keyHint := m.theme.SuggestionKey.Render(fmt.Sprintf("[%d]", i+1))
		label := runewidth.Truncate(s.Label, maxLabel, "...")
		b.WriteString("\n")
		b.WriteString(keyHint + " " + m.theme.Suggestion.Render(label))
	}
	return m.theme.WelcomeBox.Render(b.String())
}

// =============================================================================
// INPUT AND STATUS
// =============================================================================

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	var left string
	switch m.status {
	case ollamaUp:
		left = m.theme.StatusOK.Render("● ollama")
	case ollamaDown:
		left = m.theme.StatusError.Render("● ollama unreachable")
	default:
		left = m.theme.Muted.Render("○ ollama")
	}
	left += m.theme.Muted.Render("  " + m.orch.Config().Model)

	var right string
	switch {
	case m.notice != "":
		right = m.theme.StatusBusy.Render(m.notice)
	case m.running:
		label := "Thinking..."
		if m.state == conversation.StateStreaming {
			label = "Streaming..."
		}
		right = m.theme.StatusBusy.Render(label) + m.theme.Muted.Render("  Esc to stop")
	case m.stats != nil:
		right = m.theme.Muted.Render(m.stats.Format())
	default:
		right = m.theme.Muted.Render(m.helpLine())
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) helpLine() string {
	parts := make([]string, 0, 4)
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " | ")
}
