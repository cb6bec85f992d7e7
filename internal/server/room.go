// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/model"
)

// room binds one session's orchestrator to the connections watching it.
// It is the orchestrator's renderer and fans every event out.
type room struct {
	id   string
	orch *conversation.Orchestrator

	mu      sync.Mutex
	clients map[*client]struct{}
	sent    int // bytes of the current reply already sent as deltas
}

var _ conversation.Renderer = (*room)(nil)

func newRoom(id string) *room {
	return &room{id: id, clients: make(map[*client]struct{})}
}

func (r *room) detach(c *client) {
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
}

// attached returns the number of live connections.
func (r *room) attached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// broadcastLocked sends msg to every client. Caller holds r.mu.
func (r *room) broadcastLocked(msg ServerMessage) {
	for c := range r.clients {
		c.enqueue(msg)
	}
}

func (r *room) broadcast(msg ServerMessage) {
	r.mu.Lock()
	r.broadcastLocked(msg)
	r.mu.Unlock()
}

// =============================================================================
// RENDERER
// =============================================================================

func (r *room) RenderTurn(role model.Role, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = 0
	msg := ServerMessage{Type: TypeTurn, Role: role.String(), Content: content}
	if role == model.RoleAssistant {
		msg.HTML = renderHTML(content)
	}
	r.broadcastLocked(msg)
}

// RenderIncremental sends only the text added since the last delta.
func (r *room) RenderIncremental(partial string) {
	text := strings.TrimSuffix(partial, conversation.Cursor)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(text) <= r.sent {
		return
	}
	delta := text[r.sent:]
	r.sent = len(text)
	r.broadcastLocked(ServerMessage{Type: TypeDelta, Content: delta})
}

func (r *room) RenderError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = 0
	r.broadcastLocked(ServerMessage{Type: TypeError, Content: message, HTML: renderHTML(message)})
}

// =============================================================================
// TURNS
// =============================================================================

// errUnknownType is returned for frames the server does not handle.
var errUnknownType = errors.New("unknown message type")

// handle runs one client frame through the orchestrator. In-flight
// rejections go back to the sender only; outcomes go to everyone.
func (r *room) handle(ctx context.Context, from *client, msg ClientMessage) error {
	var (
		result conversation.TurnResult
		err    error
	)
	switch msg.Type {
	case TypeUserTurn:
		result, err = r.orch.HandleUserTurn(ctx, msg.Content)
	case TypeSuggestion:
		result, err = r.orch.HandleSuggestion(ctx, msg.Label)
	default:
		return errUnknownType
	}

	switch {
	case errors.Is(err, conversation.ErrTurnInFlight):
		from.enqueue(ServerMessage{Type: TypeBusy, Content: err.Error()})
		return nil
	case err != nil:
		return err
	}

	done := ServerMessage{Type: TypeDone, State: result.State.String()}
	if result.Stats != nil && !result.Failed() {
		done.Stats = result.Stats.Format()
	}
	r.broadcast(done)
	return nil
}
