// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/ollachat/internal/ollama"
)

// Turn rejection errors. These are returned by HandleUserTurn before
// anything is appended.
var (
	ErrEmptyInput        = errors.New("empty input")
	ErrTurnInFlight      = errors.New("a response is already being generated")
	ErrUnknownSuggestion = errors.New("unknown suggestion")
)

// ErrorIndicator prefixes every formatted generation error.
const ErrorIndicator = "❌"

// =============================================================================
// GENERATION ERROR
// =============================================================================

// ErrorKind names a user-facing failure class.
type ErrorKind string

// GenerationUnavailable covers every backend failure: not running, model
// not pulled, unreachable, or broken mid-stream.
const GenerationUnavailable ErrorKind = "generation_unavailable"

// GenerationError is the failure of one turn. Cause keeps the underlying
// client error for errors.As and logging.
type GenerationError struct {
	Kind  ErrorKind
	Cause error

	// Partial is whatever text streamed before the failure. It is never
	// stored.
	Partial string
}

func newGenerationError(cause error, partial string) *GenerationError {
	return &GenerationError{Kind: GenerationUnavailable, Cause: cause, Partial: partial}
}

func (e *GenerationError) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return e.Cause.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatError renders err as the markdown shown in place of an assistant
// turn, followed by remediation steps for cfg.Model at baseURL. A cancelled
// turn gets a single cause line; nothing is wrong with Ollama.
func FormatError(err error, cfg GenerationConfig, baseURL string) string {
	if errors.Is(err, context.Canceled) {
		return ErrorIndicator + " **Error:** generation cancelled"
	}
	if baseURL == "" {
		baseURL = ollama.DefaultBaseURL
	}
	cause := "unknown error"
	if err != nil {
		cause = err.Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s **Error:** %s\n\n", ErrorIndicator, cause)
	sb.WriteString("**Possible solutions:**\n")
	sb.WriteString("- Make sure Ollama is running (`ollama serve`)\n")
	fmt.Fprintf(&sb, "- Verify the model is installed (`ollama pull %s`)\n", cfg.Model)
	fmt.Fprintf(&sb, "- Check if Ollama is accessible at %s", baseURL)
	return sb.String()
}

// IsErrorContent reports whether content is a formatted generation error.
func IsErrorContent(content string) bool {
	return strings.HasPrefix(content, ErrorIndicator)
}
