// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/export"
	"github.com/jeranaias/ollachat/internal/model"
	"github.com/jeranaias/ollachat/internal/ui/styles"
)

// HealthChecker reports whether the backend is reachable.
type HealthChecker interface {
	CheckRunning(ctx context.Context) error
}

// Options configures the chat view.
type Options struct {
	Theme    *styles.Theme
	Markdown bool          // Render assistant turns with glamour
	Health   HealthChecker // Optional startup check
	Title    string        // Header title, default "ollachat"

	// ExportDir receives Ctrl+S Markdown exports, default "."
	ExportDir string
}

// entry is one displayed message. rendered caches the styled output for
// the current width.
type entry struct {
	role     model.Role
	content  string
	isError  bool
	rendered string
}

type ollamaStatus int

const (
	ollamaUnknown ollamaStatus = iota
	ollamaUp
	ollamaDown
)

// Model is the Bubble Tea model for the chat view.
type Model struct {
	orch   *conversation.Orchestrator
	bridge *Bridge
	theme  *styles.Theme
	keys   KeyMap
	title  string

	exportDir string

	// Components
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	// Markdown
	markdown bool
	md       *glamour.TermRenderer

	health    HealthChecker
	status    ollamaStatus
	statusErr error

	// Display state, built from render events
	entries []entry
	partial string
	state   conversation.TurnState
	running bool
	notice  string
	stats   *model.Statistics

	cancelMgr *cancelManager

	width  int
	height int
	ready  bool
}

// New creates the chat view for orch. bridge must be the renderer orch
// was built with; it is attached to the program by the caller.
func New(orch *conversation.Orchestrator, bridge *Bridge, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme("auto")
	}
	title := opts.Title
	if title == "" {
		title = "ollachat"
	}
	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = "."
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type your message here..."
	ti.CharLimit = 0
	ti.PromptStyle = theme.InputPrompt
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = styles.ThinkingSpinner
	sp.Style = theme.Spinner

	m := Model{
		orch:      orch,
		bridge:    bridge,
		theme:     theme,
		keys:      DefaultKeyMap(),
		title:     title,
		exportDir: exportDir,
		input:     ti,
		viewport:  viewport.New(80, 20),
		spinner:   sp,
		markdown:  opts.Markdown,
		health:    opts.Health,
		cancelMgr: newCancelManager(),
	}

	// Sessions may be resumed (web registry), so seed from the store.
	for _, msg := range orch.Store().All() {
		m.entries = append(m.entries, entry{
			role:    msg.Role,
			content: msg.Content,
			isError: msg.Role == model.RoleAssistant && conversation.IsErrorContent(msg.Content),
		})
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.health != nil {
		cmds = append(cmds, checkHealthCmd(m.health))
	}
	return tea.Batch(cmds...)
}

// checkHealthCmd pings the backend once.
func checkHealthCmd(h HealthChecker) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := h.CheckRunning(ctx)
		return OllamaStatusMsg{Running: err == nil, Error: err}
	}
}

// exportCmd writes the completed turns as Markdown into dir.
func exportCmd(orch *conversation.Orchestrator, dir string) tea.Cmd {
	t := export.FromStore(orch.Store(), orch.Config().Model)
	return func() tea.Msg {
		path, err := export.ExportToFile(t, export.NewMarkdownExporter(nil), dir)
		return ExportDoneMsg{Path: path, Err: err}
	}
}

// =============================================================================
// TURN COMMANDS
// =============================================================================

// startTurn marks a turn as running and returns the command that runs it.
// The command blocks until the orchestrator is done; render events reach
// the program through the bridge in the meantime.
func (m *Model) startTurn(run func(ctx context.Context) (conversation.TurnResult, error)) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelMgr.set(cancel)
	m.running = true
	m.notice = ""

	turn := func() tea.Msg {
		defer cancel()
		result, err := run(ctx)
		return TurnDoneMsg{Result: result, Err: err}
	}
	return turn
}

func (m *Model) submitText(text string) tea.Cmd {
	orch := m.orch
	return m.startTurn(func(ctx context.Context) (conversation.TurnResult, error) {
		return orch.HandleUserTurn(ctx, text)
	})
}

func (m *Model) submitSuggestion(label string) tea.Cmd {
	orch := m.orch
	return m.startTurn(func(ctx context.Context) (conversation.TurnResult, error) {
		return orch.HandleSuggestion(ctx, label)
	})
}

// =============================================================================
// MARKDOWN
// =============================================================================

// rebuildMarkdown recreates the glamour renderer for the current width.
func (m *Model) rebuildMarkdown() {
	if !m.markdown {
		m.md = nil
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.GlamourStyle()),
		glamour.WithWordWrap(m.theme.BubbleWidth()-4),
	)
	if err != nil {
		m.md = nil
		return
	}
	m.md = r
}

func (m *Model) renderMarkdown(content string) (string, bool) {
	if m.md == nil {
		return "", false
	}
	out, err := m.md.Render(content)
	if err != nil {
		return "", false
	}
	return strings.Trim(out, "\n"), true
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Running reports whether a turn is in flight.
func (m Model) Running() bool {
	return m.running
}

// EntryCount returns the number of displayed messages.
func (m Model) EntryCount() int {
	return len(m.entries)
}
