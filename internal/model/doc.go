// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat turns.
//
// # Key Types
//
//   - Message: one immutable conversational turn (role, content, timestamp)
//   - Role: message role enumeration (user, assistant)
//   - Statistics: timing and fragment counts for one generation
//
// # Usage
//
//	msg := model.NewMessage(model.RoleUser, "Hello!")
//	fmt.Println(msg.Role.DisplayName(), msg.Content)
//
// Messages are value types. Stores hand out copies, so a Message obtained
// from a conversation can never be used to rewrite history.
package model
