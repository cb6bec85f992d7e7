// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"time"

	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/model"
)

// Message types.
const (
	// Client to server
	TypeUserTurn   = "user_turn"
	TypeSuggestion = "suggestion"

	// Server to client
	TypeSession = "session"
	TypeTurn    = "turn"
	TypeDelta   = "delta"
	TypeError   = "error"
	TypeBusy    = "busy"
	TypeDone    = "done"
)

// ClientMessage is a frame received from the browser.
type ClientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Label   string `json:"label,omitempty"`
}

// ServerMessage is a frame sent to the browser. Fields are set per type.
type ServerMessage struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id,omitempty"`
	Role      string        `json:"role,omitempty"`
	Content   string        `json:"content,omitempty"`
	HTML      string        `json:"html,omitempty"` // assistant turns and errors
	Messages  []MessageView `json:"messages,omitempty"`
	State     string        `json:"state,omitempty"`
	Stats     string        `json:"stats,omitempty"`
}

// MessageView is the JSON form of a stored message.
type MessageView struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	HTML      string    `json:"html,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Error     bool      `json:"error,omitempty"`
}

func newMessageView(m model.Message) MessageView {
	v := MessageView{
		ID:        m.ID,
		Role:      m.Role.String(),
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Role == model.RoleAssistant {
		v.HTML = renderHTML(m.Content)
		v.Error = conversation.IsErrorContent(m.Content)
	}
	return v
}

func messageViews(msgs []model.Message) []MessageView {
	views := make([]MessageView, len(msgs))
	for i, m := range msgs {
		views[i] = newMessageView(m)
	}
	return views
}

// SessionResponse is returned by the session endpoints.
type SessionResponse struct {
	SessionID string        `json:"session_id"`
	Title     string        `json:"title"`
	Messages  []MessageView `json:"messages"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Ollama   string `json:"ollama"`
	Model    string `json:"model"`
	Sessions int    `json:"sessions"`
	Error    string `json:"error,omitempty"`
}
