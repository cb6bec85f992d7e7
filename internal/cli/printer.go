// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/model"
)

// =============================================================================
// STYLES
// =============================================================================

// palette holds termenv styles for line-mode output.
type palette struct {
	profile termenv.Profile
}

func (p palette) prompt(s string) string {
	return p.profile.String(s).Foreground(p.profile.Color("#22D3EE")).Bold().String()
}

func (p palette) error(s string) string {
	return p.profile.String(s).Foreground(p.profile.Color("#FB7185")).String()
}

func (p palette) muted(s string) string {
	return p.profile.String(s).Faint().String()
}

func (p palette) ok(s string) string {
	return p.profile.String(s).Foreground(p.profile.Color("#34D399")).String()
}

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter renders a conversation to a line-oriented writer. Partial
// renders are printed as deltas so output scrolls like a terminal.
type streamPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	errOut  io.Writer
	colors  palette
	printed int // bytes of the current reply already written
}

var _ conversation.Renderer = (*streamPrinter)(nil)

func newStreamPrinter(out, errOut io.Writer, profile termenv.Profile) *streamPrinter {
	return &streamPrinter{out: out, errOut: errOut, colors: palette{profile: profile}}
}

// RenderTurn starts a reply on a user turn and finishes it on an
// assistant turn. The user's text is already on screen.
func (p *streamPrinter) RenderTurn(role model.Role, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if role == model.RoleUser {
		p.printed = 0
		return
	}
	if p.printed < len(content) {
		io.WriteString(p.out, content[p.printed:])
	}
	io.WriteString(p.out, "\n")
	p.printed = 0
}

func (p *streamPrinter) RenderIncremental(partial string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	text := strings.TrimSuffix(partial, conversation.Cursor)
	if len(text) <= p.printed {
		return
	}
	io.WriteString(p.out, text[p.printed:])
	p.printed = len(text)
}

func (p *streamPrinter) RenderError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.printed > 0 {
		io.WriteString(p.out, "\n")
	}
	fmt.Fprintln(p.errOut, p.colors.error(message))
	p.printed = 0
}
