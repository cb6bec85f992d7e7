// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/model"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// TurnMsg carries a complete message to display.
type TurnMsg struct {
	Role    model.Role
	Content string
}

// PartialMsg replaces the in-progress assistant text. Content already
// ends with the cursor glyph.
type PartialMsg struct {
	Content string
}

// ErrorMsg carries a formatted generation error.
type ErrorMsg struct {
	Content string
}

// StateMsg reports an orchestrator state transition.
type StateMsg struct {
	From, To conversation.TurnState
}

// TurnDoneMsg is returned by the command that ran a turn.
type TurnDoneMsg struct {
	Result conversation.TurnResult
	Err    error // ErrEmptyInput, ErrTurnInFlight, ErrUnknownSuggestion
}

// =============================================================================
// OLLAMA MESSAGES
// =============================================================================

// OllamaStatusMsg reports Ollama connection status.
type OllamaStatusMsg struct {
	Running bool
	Error   error
}

// =============================================================================
// EXPORT MESSAGES
// =============================================================================

// ExportDoneMsg reports the result of a transcript export.
type ExportDoneMsg struct {
	Path string
	Err  error
}
