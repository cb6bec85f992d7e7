// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/session"
	"github.com/jeranaias/ollachat/internal/util"
)

// ErrEmptyTranscript is returned when there is nothing to export.
var ErrEmptyTranscript = errors.New("conversation has no messages")

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is an exportable snapshot of one session.
type Transcript struct {
	SessionID  string    `json:"session_id"`
	Title      string    `json:"title"`
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	ExportedAt time.Time `json:"exported_at"`
	Messages   []Message `json:"messages"`
}

// Message is one exported turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Error     bool      `json:"error,omitempty"`
}

// FromStore snapshots the display projection of store.
func FromStore(store *session.Store, modelName string) *Transcript {
	msgs := store.All()
	t := &Transcript{
		SessionID:  store.ID(),
		Title:      store.Title(),
		Model:      modelName,
		CreatedAt:  store.CreatedAt(),
		ExportedAt: time.Now(),
		Messages:   make([]Message, 0, len(msgs)),
	}
	for _, m := range msgs {
		t.Messages = append(t.Messages, Message{
			Role:      m.Role.String(),
			Content:   m.Content,
			Timestamp: m.Timestamp,
			Error:     conversation.IsErrorContent(m.Content),
		})
	}
	return t
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a transcript to one file format.
type Exporter interface {
	// Export renders the transcript.
	Export(t *Transcript) ([]byte, error)

	// FileExtension returns the file extension, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type of the output.
	MimeType() string
}

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds the frontmatter and session header.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message times.
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// ForFormat returns the exporter for "markdown"/"md" or "json".
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile writes the transcript into dir and returns the file path.
func ExportToFile(t *Transcript, exporter Exporter, dir string) (string, error) {
	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, Filename(t, exporter))
	if err := util.WriteFileAtomic(path, content, 0644, 0755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// Filename returns the suggested file name for t.
func Filename(t *Transcript, exporter Exporter) string {
	return fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(t.Title),
		t.ExportedAt.Format("20060102_150405"),
		exporter.FileExtension(),
	)
}

// sanitizeFilename replaces characters that are invalid in file names on
// Windows or Unix and caps the length.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			result = append(result, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			result = append(result, '_')
		case r < 32 || r == 127:
			result = append(result, '-')
		default:
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}

func validate(t *Transcript) error {
	if t == nil {
		return errors.New("transcript is nil")
	}
	if len(t.Messages) == 0 {
		return ErrEmptyTranscript
	}
	return nil
}
