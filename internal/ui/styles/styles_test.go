// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTheme_Modes(t *testing.T) {
	dark := NewTheme("dark")
	if !dark.IsDark {
		t.Error("dark theme should report IsDark")
	}
	if dark.GlamourStyle() != "dark" {
		t.Errorf("GlamourStyle() = %q, want 'dark'", dark.GlamourStyle())
	}

	light := NewTheme("LIGHT")
	if light.IsDark {
		t.Error("light theme should not report IsDark")
	}
	if light.GlamourStyle() != "light" {
		t.Errorf("GlamourStyle() = %q, want 'light'", light.GlamourStyle())
	}
}

func TestTheme_BubbleWidth(t *testing.T) {
	tests := []struct {
		width int
		want  int
	}{
		{0, 20},
		{40, 36},
		{80, 76},
		{200, 100},
	}

	th := NewTheme("dark")
	for _, tc := range tests {
		th.SetSize(tc.width, 24)
		assert.Equal(t, tc.want, th.BubbleWidth(), "width %d", tc.width)
	}
}

func TestTheme_RendersContent(t *testing.T) {
	th := NewTheme("dark")

	for name, style := range map[string]func(...string) string{
		"user":      th.UserBubble.Render,
		"assistant": th.AssistantBubble.Render,
		"error":     th.ErrorBubble.Render,
	} {
		out := style("hello")
		assert.True(t, strings.Contains(out, "hello"), "%s bubble lost its content", name)
	}
}

func TestThinkingSpinner(t *testing.T) {
	assert.NotEmpty(t, ThinkingSpinner.Frames)
	assert.Greater(t, int64(ThinkingSpinner.FPS), int64(0))
}
