// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server serves the browser chat.
//
// # Endpoints
//
//   - GET  /                         - Chat page
//   - GET  /health                   - Health check, including Ollama status
//   - POST /api/sessions             - Start a session
//   - GET  /api/sessions/:id/messages - Session transcript
//   - GET  /api/sessions/:id/export  - Download as Markdown or JSON
//   - GET  /api/suggestions          - Example prompts
//   - GET  /ws?session=ID            - WebSocket chat stream
//
// Each session owns one conversation orchestrator, so a session runs at
// most one turn at a time. Every WebSocket attached to a session sees the
// same turn, delta, error and done events.
//
// # Usage
//
//	srv := server.New(server.Options{
//		Generator:  conversation.NewOllamaGenerator(client),
//		Generation: conversation.DefaultGenerationConfig(),
//	})
//	if err := srv.Run(ctx, "127.0.0.1:8501"); err != nil {
//		log.Fatal(err)
//	}
package server
