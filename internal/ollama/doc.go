// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// This package implements a client for the Ollama local LLM server. Chat is
// streamed: the server answers /api/chat with newline-delimited JSON, one
// object per generated fragment, the last one carrying "done": true.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Message: Chat message with role and content
//   - ChatRequest: Request structure for chat completions
//   - ChatStream: Pull-based reader over one streaming response
//   - ClientError: Typed error with an ErrorType for handling
//
// # Usage
//
//	client := ollama.NewClient()
//	stream, err := client.ChatStream(ctx, ollama.ChatRequest{
//	    Model:    "llama3.2",
//	    Messages: []ollama.Message{ollama.NewUserMessage("Hello")},
//	})
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    chunk, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(chunk.Content)
//	}
package ollama
