// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the in-memory state of a conversation.
//
// A Store is the ordered list of turns for one conversation, exposed as two
// projections that are updated together: the display log (model.Message,
// for rendering) and the model history (ollama.Message, sent with every
// request). Nothing is written to disk; a Store lives as long as its
// process or web session.
//
// # Key Types
//
//   - Store: Append-only conversation for one session
//   - Registry: Stores sharded by session ID for the web server
//   - ErrorHistoryPolicy: Whether failed turns are sent back to the model
//
// # Usage
//
//	store := session.New(session.ErrorHistoryInclude)
//	store.Append(model.RoleUser, "Hello")
//	history := store.History() // ready for ollama.ChatRequest.Messages
package session
