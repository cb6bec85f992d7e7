// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"fmt"
	"time"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message represents a chat message in the conversation.
type Message struct {
	Role    string `json:"role"`    // "user" or "assistant"
	Content string `json:"content"` // The message content
}

// ChatRequest is the request body for /api/chat endpoint.
type ChatRequest struct {
	Model    string    `json:"model"`             // Model name (e.g., "llama3.2")
	Messages []Message `json:"messages"`          // Conversation history
	Stream   bool      `json:"stream"`            // Always true for ChatStream
	Options  *Options  `json:"options,omitempty"` // Model parameters
}

// Options contains model parameters for inference.
type Options struct {
	// Temperature is a pointer so that 0.0 (greedy) is sent instead of
	// being dropped by omitempty.
	Temperature *float64 `json:"temperature,omitempty"` // 0.0-2.0, server default 0.8
	NumPredict  int      `json:"num_predict,omitempty"` // Max tokens to generate, -1 for unlimited
}

// Float64 returns a pointer to v, for Options.Temperature.
func Float64(v float64) *float64 {
	return &v
}

// ShowModelRequest is the request for /api/show endpoint.
type ShowModelRequest struct {
	Model string `json:"model"`
	Name  string `json:"name"` // Older servers read "name"
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ChatResponse is one line of the /api/chat stream.
type ChatResponse struct {
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"created_at"`
	Message            Message   `json:"message"`
	Done               bool      `json:"done"`
	DoneReason         string    `json:"done_reason,omitempty"`
	Error              string    `json:"error,omitempty"`                // In-band failure
	TotalDuration      int64     `json:"total_duration,omitempty"`       // nanoseconds
	LoadDuration       int64     `json:"load_duration,omitempty"`        // nanoseconds
	PromptEvalCount    int       `json:"prompt_eval_count,omitempty"`    // number of tokens in prompt
	PromptEvalDuration int64     `json:"prompt_eval_duration,omitempty"` // nanoseconds
	EvalCount          int       `json:"eval_count,omitempty"`           // number of tokens generated
	EvalDuration       int64     `json:"eval_duration,omitempty"`        // nanoseconds
}

// ModelInfo contains information about a model.
type ModelInfo struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details,omitempty"`
}

// ModelDetails contains detailed information about a model.
type ModelDetails struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// ListModelsResponse is the response from /api/tags endpoint.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ShowModelResponse is the response from /api/show endpoint.
type ShowModelResponse struct {
	License    string       `json:"license"`
	Modelfile  string       `json:"modelfile"`
	Parameters string       `json:"parameters"`
	Template   string       `json:"template"`
	Details    ModelDetails `json:"details"`
}

// OllamaError is the JSON error body returned by the Ollama API.
type OllamaError struct {
	Error string `json:"error"`
}

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk represents a single chunk from streaming response.
type StreamChunk struct {
	// Content from this chunk (message.content)
	Content string

	// Timing information (only populated on final chunk)
	Done               bool
	DoneReason         string
	TotalDuration      time.Duration
	LoadDuration       time.Duration
	PromptEvalDuration time.Duration
	EvalDuration       time.Duration

	// Token counts (only populated on final chunk)
	PromptTokens     int
	CompletionTokens int

	// Model information
	Model string
}

// =============================================================================
// HELPER METHODS
// =============================================================================

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// TokensPerSecond calculates the generation speed from a final chunk.
func (c *StreamChunk) TokensPerSecond() float64 {
	if c.EvalDuration == 0 {
		return 0
	}
	return float64(c.CompletionTokens) / c.EvalDuration.Seconds()
}

// FormatSize formats the model size in human-readable form.
func (m *ModelInfo) FormatSize() string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case m.Size >= GB:
		return formatFloat(float64(m.Size)/GB) + " GB"
	case m.Size >= MB:
		return formatFloat(float64(m.Size)/MB) + " MB"
	case m.Size >= KB:
		return formatFloat(float64(m.Size)/KB) + " KB"
	default:
		return fmt.Sprintf("%d B", m.Size)
	}
}

// formatFloat drops the decimal for whole numbers ("2 GB", "1.5 GB").
func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.1f", f)
}
