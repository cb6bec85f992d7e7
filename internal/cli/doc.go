// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the ollachat command line.
//
// Commands:
//
//	ollachat            Full-screen chat (plain REPL when not on a TTY)
//	ollachat chat       Line-mode REPL with history
//	ollachat ask PROMPT One-shot question, streamed to stdout
//	ollachat serve      Browser chat over WebSocket
//	ollachat models     List installed Ollama models
//	ollachat status     Check that Ollama is reachable
//	ollachat version    Print version information
//
// Settings come from ~/.ollachat/config.toml, then the environment, then
// flags (--model, --temperature, --max-output, --ollama-url).
package cli
