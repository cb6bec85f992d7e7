// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

	// Raw HTML in model output is dropped by goldmark; the policy strips
	// anything else a browser could execute.
	htmlPolicy = bluemonday.UGCPolicy()
)

// renderHTML converts assistant markdown to sanitized HTML. It returns ""
// if conversion fails, and the page falls back to plain text.
func renderHTML(src string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return ""
	}
	return string(htmlPolicy.SanitizeBytes(buf.Bytes()))
}
