// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/ollachat/internal/model"
	"github.com/jeranaias/ollachat/internal/ollama"
)

// =============================================================================
// ERROR HISTORY POLICY
// =============================================================================

// ErrorHistoryPolicy controls whether an assistant turn that carries a
// generation error is sent back to the model on later turns.
type ErrorHistoryPolicy int

const (
	// ErrorHistoryInclude keeps failed turns in both projections.
	ErrorHistoryInclude ErrorHistoryPolicy = iota

	// ErrorHistoryExclude shows failed turns but leaves them out of History.
	ErrorHistoryExclude
)

// String returns the config-file spelling of the policy.
func (p ErrorHistoryPolicy) String() string {
	if p == ErrorHistoryExclude {
		return "exclude"
	}
	return "include"
}

// ParseErrorHistoryPolicy parses "include" or "exclude". An empty string
// means include.
func ParseErrorHistoryPolicy(s string) (ErrorHistoryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "include":
		return ErrorHistoryInclude, nil
	case "exclude":
		return ErrorHistoryExclude, nil
	default:
		return ErrorHistoryInclude, fmt.Errorf("unknown error history policy %q (want include or exclude)", s)
	}
}

// =============================================================================
// STORE
// =============================================================================

// entry is one logical turn. Both projections are derived from the same
// slice so they cannot drift apart.
type entry struct {
	display model.Message
	wire    ollama.Message
	failed  bool
}

// Store is the append-only conversation for a single session.
// It is safe for concurrent use: readers may render while a turn appends.
type Store struct {
	mu sync.RWMutex

	id        string
	createdAt time.Time
	policy    ErrorHistoryPolicy
	entries   []entry

	lastActivity time.Time
}

// New creates an empty store with a fresh session ID.
func New(policy ErrorHistoryPolicy) *Store {
	now := time.Now()
	return &Store{
		id:           generateSessionID(),
		createdAt:    now,
		policy:       policy,
		lastActivity: now,
	}
}

// ID returns the session ID.
func (s *Store) ID() string {
	return s.id
}

// CreatedAt returns when the session started.
func (s *Store) CreatedAt() time.Time {
	return s.createdAt
}

// Policy returns the error history policy the store was created with.
func (s *Store) Policy() ErrorHistoryPolicy {
	return s.policy
}

// Append adds one turn to both projections and returns the stored message.
func (s *Store) Append(role model.Role, content string) model.Message {
	return s.append(role, content, false)
}

// AppendFailed adds an assistant turn whose content is a formatted
// generation error. Under ErrorHistoryExclude it is omitted from History.
func (s *Store) AppendFailed(content string) model.Message {
	return s.append(model.RoleAssistant, content, true)
}

func (s *Store) append(role model.Role, content string, failed bool) model.Message {
	msg := model.NewMessage(role, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{
		display: msg,
		wire:    wireMessage(role, content),
		failed:  failed,
	})
	s.lastActivity = msg.Timestamp
	return msg
}

func wireMessage(role model.Role, content string) ollama.Message {
	if role == model.RoleUser {
		return ollama.NewUserMessage(content)
	}
	return ollama.NewAssistantMessage(content)
}

// All returns a copy of the display log in order.
func (s *Store) All() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Message, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.display
	}
	return out
}

// History returns a copy of the model history in order.
func (s *Store) History() []ollama.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ollama.Message, 0, len(s.entries))
	for _, e := range s.entries {
		if e.failed && s.policy == ErrorHistoryExclude {
			continue
		}
		out = append(out, e.wire)
	}
	return out
}

// Len returns the number of turns in the display log.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// IsEmpty reports whether no turn has been appended yet.
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// Title returns a short preview of the first user turn, or "New chat".
func (s *Store) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.display.Role == model.RoleUser {
			return e.display.Preview(40)
		}
	}
	return "New chat"
}

// IdleTime returns how long since the last append (or creation).
func (s *Store) IdleTime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastActivity)
}

// generateSessionID creates a unique session ID.
func generateSessionID() string {
	return "sess_" + uuid.NewString()
}
