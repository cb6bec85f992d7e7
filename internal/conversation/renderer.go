// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"sync"

	"github.com/jeranaias/ollachat/internal/model"
)

// Cursor is appended to partial content while a response is streaming.
const Cursor = "▌"

// Renderer is the presentation side of a turn. Calls for one turn arrive
// on the goroutine running HandleUserTurn, in order.
type Renderer interface {
	// RenderTurn shows a complete message. Display is append-based: the
	// same role and content rendered twice shows up twice.
	RenderTurn(role model.Role, content string)

	// RenderIncremental replaces the in-progress assistant text.
	RenderIncremental(partial string)

	// RenderError shows a formatted generation error in place of the
	// assistant turn.
	RenderError(message string)
}

// Discard is a Renderer that draws nothing.
var Discard Renderer = discard{}

type discard struct{}

func (discard) RenderTurn(model.Role, string) {}
func (discard) RenderIncremental(string)      {}
func (discard) RenderError(string)            {}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// EventKind identifies a recorded render call.
type EventKind int

const (
	EventTurn EventKind = iota
	EventIncremental
	EventError
)

// Event is one recorded render call.
type Event struct {
	Kind    EventKind
	Role    model.Role
	Content string
}

// Transcript records every render call. It is the batch renderer used by
// one-shot runs and tests.
type Transcript struct {
	mu     sync.Mutex
	events []Event
}

// RenderTurn records a turn.
func (t *Transcript) RenderTurn(role model.Role, content string) {
	t.record(Event{Kind: EventTurn, Role: role, Content: content})
}

// RenderIncremental records partial content.
func (t *Transcript) RenderIncremental(partial string) {
	t.record(Event{Kind: EventIncremental, Role: model.RoleAssistant, Content: partial})
}

// RenderError records an error.
func (t *Transcript) RenderError(message string) {
	t.record(Event{Kind: EventError, Role: model.RoleAssistant, Content: message})
}

func (t *Transcript) record(e Event) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}

// Events returns a copy of the recorded calls.
func (t *Transcript) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Event(nil), t.events...)
}

// Turns returns only the RenderTurn calls.
func (t *Transcript) Turns() []Event {
	return t.filter(EventTurn)
}

// Incrementals returns the partial contents in order.
func (t *Transcript) Incrementals() []string {
	events := t.filter(EventIncremental)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Content
	}
	return out
}

// Errors returns the rendered error messages.
func (t *Transcript) Errors() []string {
	events := t.filter(EventError)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Content
	}
	return out
}

func (t *Transcript) filter(kind EventKind) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Event
	for _, e := range t.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// MULTI RENDERER
// =============================================================================

// MultiRenderer fans every call out to each renderer in order.
func MultiRenderer(renderers ...Renderer) Renderer {
	return multiRenderer(renderers)
}

type multiRenderer []Renderer

func (m multiRenderer) RenderTurn(role model.Role, content string) {
	for _, r := range m {
		r.RenderTurn(role, content)
	}
}

func (m multiRenderer) RenderIncremental(partial string) {
	for _, r := range m {
		r.RenderIncremental(partial)
	}
}

func (m multiRenderer) RenderError(message string) {
	for _, r := range m {
		r.RenderError(message)
	}
}
