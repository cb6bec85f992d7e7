// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/model"
	"github.com/jeranaias/ollachat/internal/ollama"
	"github.com/jeranaias/ollachat/internal/session"
	"github.com/jeranaias/ollachat/internal/ui/styles"
)

// =============================================================================
// HELPERS
// =============================================================================

// collector stands in for tea.Program and records everything sent to it.
type collector struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (c *collector) Send(msg tea.Msg) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
}

func (c *collector) drain() []tea.Msg {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.msgs
	c.msgs = nil
	return out
}

func fragments(frags ...string) conversation.Generator {
	return conversation.GeneratorFunc(func(context.Context, []ollama.Message, conversation.GenerationConfig) (conversation.FragmentStream, error) {
		return conversation.SliceStream(frags, nil), nil
	})
}

func newTestModel(t *testing.T, gen conversation.Generator, opts Options) (Model, *collector) {
	t.Helper()
	store := session.New(session.ErrorHistoryInclude)
	bridge := NewBridgeWithFPS(0)
	orch := conversation.New(store, gen, conversation.DefaultGenerationConfig(),
		conversation.WithRenderer(bridge),
		conversation.WithStateObserver(bridge.ObserveState),
	)
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme("dark")
	}
	m := New(orch, bridge, opts)
	c := &collector{}
	bridge.Attach(c)
	return apply(m, tea.WindowSizeMsg{Width: 100, Height: 30}), c
}

func apply(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

// finishTurn runs a turn command to completion and feeds the program
// messages back into the model in the order they were sent.
func finishTurn(t *testing.T, m Model, cmd tea.Cmd, c *collector) (Model, TurnDoneMsg) {
	t.Helper()
	require.NotNil(t, cmd)
	done, ok := cmd().(TurnDoneMsg)
	require.True(t, ok, "turn command must return TurnDoneMsg")
	for _, msg := range c.drain() {
		m = apply(m, msg)
	}
	return apply(m, done), done
}

func enter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }
func runeKey(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }
func submit(m Model, text string) (Model, tea.Cmd) {
	m.input.SetValue(text)
	next, cmd := m.Update(enter())
	return next.(Model), cmd
}

// =============================================================================
// VIEW TESTS
// =============================================================================

func TestView_LoadingBeforeResize(t *testing.T) {
	store := session.New(session.ErrorHistoryInclude)
	bridge := NewBridge()
	orch := conversation.New(store, fragments("x"), conversation.DefaultGenerationConfig(), conversation.WithRenderer(bridge))
	m := New(orch, bridge, Options{Theme: styles.NewTheme("dark")})

	assert.Equal(t, "Loading...", m.View())
}

func TestView_WelcomeShowsSuggestions(t *testing.T) {
	m, _ := newTestModel(t, fragments("x"), Options{})

	view := m.View()
	assert.Contains(t, view, "Ollama Chatbot")
	assert.Contains(t, view, "Try these examples:")
	for i, s := range conversation.Suggestions() {
		assert.Contains(t, view, s.Label)
		assert.Contains(t, view, "["+string(rune('1'+i))+"]")
	}
}

func TestView_ThinkingWhileAwaitingFirstFragment(t *testing.T) {
	m, _ := newTestModel(t, fragments("x"), Options{})

	m = apply(m, TurnMsg{Role: model.RoleUser, Content: "Hi"})
	m = apply(m, StateMsg{From: conversation.StateIdle, To: conversation.StateAwaitingFirstFragment})

	assert.Contains(t, m.View(), "Thinking...")

	m = apply(m, PartialMsg{Content: "Hel" + conversation.Cursor})
	view := m.View()
	assert.NotContains(t, view, "Thinking...")
	assert.Contains(t, view, "Hel"+conversation.Cursor)
}

func TestView_OllamaStatus(t *testing.T) {
	m, _ := newTestModel(t, fragments("x"), Options{})

	m = apply(m, OllamaStatusMsg{Running: false, Error: ollama.ErrNotRunning})
	assert.Contains(t, m.View(), "ollama unreachable")

	m = apply(m, OllamaStatusMsg{Running: true})
	assert.NotContains(t, m.View(), "unreachable")
}

func TestView_MarkdownRendering(t *testing.T) {
	m, c := newTestModel(t, fragments("some ", "**bold** text"), Options{Markdown: true})

	m, cmd := submit(m, "format this")
	m, _ = finishTurn(t, m, cmd, c)

	view := m.View()
	assert.Contains(t, view, "bold")
	assert.NotContains(t, view, "**bold**")
}

// =============================================================================
// TURN TESTS
// =============================================================================

func TestSubmit_StreamsResponse(t *testing.T) {
	m, c := newTestModel(t, fragments("Hel", "lo", "!"), Options{})

	m, cmd := submit(m, "  Hi  ")
	assert.True(t, m.Running())
	assert.Empty(t, m.input.Value())

	m, done := finishTurn(t, m, cmd, c)
	require.NoError(t, done.Err)
	assert.Equal(t, conversation.StateCompleted, done.Result.State)

	assert.False(t, m.Running())
	assert.Equal(t, 2, m.EntryCount())
	assert.Empty(t, m.partial)
	assert.Equal(t, conversation.StateIdle, m.state)
	require.NotNil(t, m.stats)

	view := m.View()
	assert.Contains(t, view, "Hi")
	assert.Contains(t, view, "Hello!")
	assert.NotContains(t, view, conversation.Cursor)

	store := m.orch.Store()
	require.Equal(t, 2, store.Len())
	assert.Equal(t, "Hi", store.All()[0].Content)
	assert.Equal(t, "Hello!", store.All()[1].Content)
}

func TestSubmit_BridgeOrdering(t *testing.T) {
	m, c := newTestModel(t, fragments("a", "b"), Options{})

	_, cmd := submit(m, "go")
	require.NotNil(t, cmd)
	_ = cmd()

	var kinds []string
	for _, msg := range c.drain() {
		switch msg := msg.(type) {
		case TurnMsg:
			kinds = append(kinds, "turn:"+msg.Role.String())
		case PartialMsg:
			kinds = append(kinds, "partial:"+msg.Content)
		case StateMsg:
			kinds = append(kinds, "state:"+msg.To.String())
		}
	}
	assert.Equal(t, []string{
		"turn:user",
		"state:" + conversation.StateAwaitingFirstFragment.String(),
		"state:" + conversation.StateStreaming.String(),
		"partial:a" + conversation.Cursor,
		"partial:ab" + conversation.Cursor,
		"turn:assistant",
		"state:" + conversation.StateCompleted.String(),
		"state:" + conversation.StateIdle.String(),
	}, kinds)
}

func TestSubmit_FailureShowsError(t *testing.T) {
	gen := conversation.GeneratorFunc(func(context.Context, []ollama.Message, conversation.GenerationConfig) (conversation.FragmentStream, error) {
		return nil, ollama.ErrNotRunning
	})
	m, c := newTestModel(t, gen, Options{})

	m, cmd := submit(m, "Hi")
	m, done := finishTurn(t, m, cmd, c)

	require.NoError(t, done.Err)
	assert.True(t, done.Result.Failed())
	require.Equal(t, 2, m.EntryCount())
	assert.True(t, m.entries[1].isError)
	assert.Contains(t, m.View(), conversation.ErrorIndicator)
	assert.Equal(t, "Generation failed", m.notice)
}

func TestSubmit_EmptyInputIgnored(t *testing.T) {
	m, _ := newTestModel(t, fragments("x"), Options{})

	m, cmd := submit(m, "   ")
	assert.Nil(t, cmd)
	assert.False(t, m.Running())
	assert.Equal(t, 0, m.orch.Store().Len())
}

func TestSubmit_RejectedWhileRunning(t *testing.T) {
	m, _ := newTestModel(t, fragments("x"), Options{})
	m.running = true

	m, cmd := submit(m, "again")
	assert.Nil(t, cmd)
	assert.Equal(t, conversation.ErrTurnInFlight.Error(), m.notice)
	assert.Equal(t, "again", m.input.Value())
}

func TestCancel_StopsTurn(t *testing.T) {
	started := make(chan struct{})
	gen := conversation.GeneratorFunc(func(ctx context.Context, _ []ollama.Message, _ conversation.GenerationConfig) (conversation.FragmentStream, error) {
		close(started)
		return &waitStream{ctx: ctx}, nil
	})
	m, c := newTestModel(t, gen, Options{})

	m, cmd := submit(m, "long answer please")
	require.NotNil(t, cmd)

	result := make(chan tea.Msg, 1)
	go func() { result <- cmd() }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("generation never started")
	}

	m = apply(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, "Cancelling...", m.notice)

	var done TurnDoneMsg
	select {
	case msg := <-result:
		done = msg.(TurnDoneMsg)
	case <-time.After(2 * time.Second):
		t.Fatal("turn did not stop after cancel")
	}
	assert.True(t, done.Result.Failed())

	for _, msg := range c.drain() {
		m = apply(m, msg)
	}
	m = apply(m, done)
	assert.False(t, m.Running())
}

type waitStream struct{ ctx context.Context }

func (s *waitStream) Next() (string, error) {
	<-s.ctx.Done()
	return "", s.ctx.Err()
}

func (s *waitStream) Close() error { return nil }

// =============================================================================
// SUGGESTION TESTS
// =============================================================================

func TestSuggestionKey_SubmitsPrompt(t *testing.T) {
	m, c := newTestModel(t, fragments("ok"), Options{})

	next, cmd := m.Update(runeKey('2'))
	m = next.(Model)
	m, done := finishTurn(t, m, cmd, c)

	require.NoError(t, done.Err)
	prompt, _ := conversation.LookupSuggestion("Explain Python decorators")
	assert.Equal(t, prompt.Prompt, m.orch.Store().All()[0].Content)
}

func TestSuggestionKey_TypesOnceChatStarted(t *testing.T) {
	m, c := newTestModel(t, fragments("ok"), Options{})

	m, cmd := submit(m, "Hi")
	m, _ = finishTurn(t, m, cmd, c)

	next, cmd := m.Update(runeKey('1'))
	m = next.(Model)
	assert.Equal(t, "1", m.input.Value())
	assert.Equal(t, 2, m.orch.Store().Len())
	if cmd != nil {
		_, isDone := cmd().(TurnDoneMsg)
		assert.False(t, isDone)
	}
}

// =============================================================================
// MISC
// =============================================================================

func TestNew_SeedsFromStore(t *testing.T) {
	store := session.New(session.ErrorHistoryInclude)
	store.Append(model.RoleUser, "earlier question")
	store.AppendFailed(conversation.ErrorIndicator + " **Error:** boom")
	bridge := NewBridge()
	orch := conversation.New(store, fragments("x"), conversation.DefaultGenerationConfig(), conversation.WithRenderer(bridge))

	m := New(orch, bridge, Options{Theme: styles.NewTheme("light")})
	require.Equal(t, 2, m.EntryCount())
	assert.False(t, m.entries[0].isError)
	assert.True(t, m.entries[1].isError)
}

type fakeHealth struct{ err error }

func (f fakeHealth) CheckRunning(context.Context) error { return f.err }

func TestCheckHealthCmd(t *testing.T) {
	msg := checkHealthCmd(fakeHealth{})().(OllamaStatusMsg)
	assert.True(t, msg.Running)

	boom := errors.New("connection refused")
	msg = checkHealthCmd(fakeHealth{err: boom})().(OllamaStatusMsg)
	assert.False(t, msg.Running)
	assert.ErrorIs(t, msg.Error, boom)
}

func TestBridge_ThrottlesIncrementalOnly(t *testing.T) {
	b := NewBridgeWithFPS(1)
	c := &collector{}
	b.Attach(c)

	b.RenderIncremental("a")
	b.RenderIncremental("ab")
	b.RenderIncremental("abc")
	b.RenderTurn(model.RoleAssistant, "abc")
	b.RenderError("boom")

	msgs := c.drain()
	require.Len(t, msgs, 3)
	assert.Equal(t, PartialMsg{Content: "a"}, msgs[0])
	assert.Equal(t, TurnMsg{Role: model.RoleAssistant, Content: "abc"}, msgs[1])
	assert.Equal(t, ErrorMsg{Content: "boom"}, msgs[2])
}

func TestBridge_NoSenderIsSafe(t *testing.T) {
	b := NewBridge()
	assert.NotPanics(t, func() {
		b.RenderTurn(model.RoleUser, "hi")
		b.ObserveState(conversation.StateIdle, conversation.StateAwaitingFirstFragment)
	})
}

func TestCancelManager(t *testing.T) {
	cm := newCancelManager()
	assert.False(t, cm.cancel())

	ctx1, cancel1 := context.WithCancel(context.Background())
	cm.set(cancel1)
	ctx2, cancel2 := context.WithCancel(context.Background())
	cm.set(cancel2)
	assert.Error(t, ctx1.Err(), "setting a new func cancels the previous one")
	assert.NoError(t, ctx2.Err())

	assert.True(t, cm.cancel())
	assert.Error(t, ctx2.Err())
	assert.False(t, cm.cancel())
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t, fragments("x"), Options{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestExport_CtrlS(t *testing.T) {
	dir := t.TempDir()
	m, c := newTestModel(t, fragments("Hello!"), Options{ExportDir: dir})

	m, cmd := submit(m, "Hi")
	m, _ = finishTurn(t, m, cmd, c)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = next.(Model)
	assert.Equal(t, "Exporting...", m.notice)
	require.NotNil(t, cmd)

	done, ok := cmd().(ExportDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.Err)
	assert.Equal(t, dir, filepath.Dir(done.Path))

	m = apply(m, done)
	assert.Equal(t, "Saved "+done.Path, m.notice)
}

func TestExport_EmptySessionFails(t *testing.T) {
	m, _ := newTestModel(t, fragments("x"), Options{ExportDir: t.TempDir()})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	done := cmd().(ExportDoneMsg)
	assert.Error(t, done.Err)

	m = apply(m, done)
	assert.Contains(t, m.notice, "Export failed")
}
