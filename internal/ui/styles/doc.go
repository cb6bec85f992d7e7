// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the ollachat TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. The "theme" config key can pin the background instead.

# Color System (colors.go)

  - Purple - Assistant messages, spinner, accents
  - Cyan - Brand color, prompts, user highlights
  - Rose - Errors
  - Emerald - Connected status

# Theme (theme.go)

Theme bundles the Lip Gloss styles for the chat view: header, message
bubbles, error bubble, input box, suggestion buttons, and status bar.

	theme := styles.NewTheme("auto")
	bubble := theme.UserBubble.Render(text)
*/
package styles
