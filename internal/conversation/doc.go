// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation runs chat turns against a streaming generator.
//
// An Orchestrator owns one session.Store. For each user turn it appends the
// prompt, streams fragments from a Generator, reports progress through a
// Renderer and appends exactly one assistant message: the full response on
// success, or a formatted error with remediation steps on failure.
//
// # Key Types
//
//   - Orchestrator: Drives one turn at a time for a session
//   - Generator: Produces a FragmentStream for a history and config
//   - Renderer: Presentation callbacks (turns, partial text, errors)
//   - GenerationConfig: Model, temperature and output budget
//   - GenerationError: The single user-facing failure kind
//
// # Usage
//
//	store := session.New(session.ErrorHistoryInclude)
//	gen := conversation.NewOllamaGenerator(ollama.NewClient())
//	orch := conversation.New(store, gen, conversation.DefaultGenerationConfig(),
//	    conversation.WithRenderer(renderer))
//	result, err := orch.HandleUserTurn(ctx, "Hello")
package conversation
