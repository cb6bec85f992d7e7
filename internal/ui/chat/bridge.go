// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/model"
)

// DefaultMaxFPS caps incremental redraws while streaming.
const DefaultMaxFPS = 30

// Sender is the part of *tea.Program the bridge uses.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards renderer calls to a Bubble Tea program.
//
// Render calls arrive on the goroutine running the turn; Send hands them to
// the program loop in order. Partial content is cumulative, so partials
// that exceed the frame budget are dropped rather than queued.
//
// Thread-safety: Attach may race with render calls, so the sender is
// guarded by a mutex.
type Bridge struct {
	mu      sync.Mutex
	sender  Sender
	limiter *rate.Limiter
}

// NewBridge creates a bridge that redraws at most DefaultMaxFPS per second.
func NewBridge() *Bridge {
	return NewBridgeWithFPS(DefaultMaxFPS)
}

// NewBridgeWithFPS creates a bridge with a custom frame cap. fps <= 0
// disables throttling.
func NewBridgeWithFPS(fps int) *Bridge {
	limit := rate.Inf
	if fps > 0 {
		limit = rate.Every(time.Second / time.Duration(fps))
	}
	return &Bridge{limiter: rate.NewLimiter(limit, 1)}
}

var _ conversation.Renderer = (*Bridge)(nil)

// Attach sets the program to deliver messages to. Calls before Attach
// are dropped.
func (b *Bridge) Attach(s Sender) {
	b.mu.Lock()
	b.sender = s
	b.mu.Unlock()
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	s := b.sender
	b.mu.Unlock()
	if s != nil {
		s.Send(msg)
	}
}

// RenderTurn implements conversation.Renderer.
func (b *Bridge) RenderTurn(role model.Role, content string) {
	b.send(TurnMsg{Role: role, Content: content})
}

// RenderIncremental implements conversation.Renderer.
func (b *Bridge) RenderIncremental(partial string) {
	if !b.limiter.Allow() {
		return
	}
	b.send(PartialMsg{Content: partial})
}

// RenderError implements conversation.Renderer.
func (b *Bridge) RenderError(message string) {
	b.send(ErrorMsg{Content: message})
}

// ObserveState is a conversation.StateObserver.
func (b *Bridge) ObserveState(from, to conversation.TurnState) {
	b.send(StateMsg{From: from, To: to})
}
