// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

// Suggestion is a canned prompt offered while the session is empty.
type Suggestion struct {
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

var suggestions = []Suggestion{
	{Label: "Write a poem about AI", Prompt: "Write a short poem about artificial intelligence"},
	{Label: "Explain Python decorators", Prompt: "Explain Python decorators with a simple example"},
	{Label: "Fun fact about space", Prompt: "Tell me an interesting fact about space"},
}

// Suggestions returns the canned prompts in display order.
func Suggestions() []Suggestion {
	return append([]Suggestion(nil), suggestions...)
}

// LookupSuggestion resolves a button label to its prompt.
func LookupSuggestion(label string) (Suggestion, bool) {
	for _, s := range suggestions {
		if s.Label == label {
			return s, true
		}
	}
	return Suggestion{}, false
}
