// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"io"

	"github.com/jeranaias/ollachat/internal/model"
	"github.com/jeranaias/ollachat/internal/ollama"
)

// =============================================================================
// GENERATOR CONTRACT
// =============================================================================

// FragmentStream is a lazy, finite, non-restartable sequence of text
// fragments. Next returns io.EOF once the response is complete; any other
// error aborts the stream. Close must always be called.
type FragmentStream interface {
	Next() (string, error)
	Close() error
}

// UsageReporter is implemented by streams that learn the server's token
// counts once they reach io.EOF.
type UsageReporter interface {
	Usage() (model.Usage, bool)
}

// Generator starts a streamed completion for an ordered history.
// A failure to start is returned as an error value, not a stream.
type Generator interface {
	Stream(ctx context.Context, history []ollama.Message, cfg GenerationConfig) (FragmentStream, error)
}

// =============================================================================
// OLLAMA ADAPTER
// =============================================================================

// ChatStreamer is the subset of *ollama.Client the adapter needs.
type ChatStreamer interface {
	ChatStream(ctx context.Context, req ollama.ChatRequest) (*ollama.ChatStream, error)
}

// OllamaGenerator adapts an Ollama client to Generator.
type OllamaGenerator struct {
	client ChatStreamer
}

// NewOllamaGenerator wraps client.
func NewOllamaGenerator(client ChatStreamer) *OllamaGenerator {
	return &OllamaGenerator{client: client}
}

// Stream sends history with cfg mapped onto Ollama options
// (temperature, num_predict).
func (g *OllamaGenerator) Stream(ctx context.Context, history []ollama.Message, cfg GenerationConfig) (FragmentStream, error) {
	stream, err := g.client.ChatStream(ctx, ollama.ChatRequest{
		Model:    cfg.Model,
		Messages: history,
		Stream:   true,
		Options: &ollama.Options{
			Temperature: ollama.Float64(cfg.Temperature),
			NumPredict:  cfg.MaxOutput,
		},
	})
	if err != nil {
		return nil, err
	}
	return &ollamaFragments{stream: stream}, nil
}

// ollamaFragments skips chunks without content, such as the final
// statistics chunk.
type ollamaFragments struct {
	stream *ollama.ChatStream
}

func (f *ollamaFragments) Next() (string, error) {
	for {
		chunk, err := f.stream.Next()
		if err != nil {
			return "", err
		}
		if chunk.Content != "" {
			return chunk.Content, nil
		}
		if chunk.Done {
			return "", io.EOF
		}
	}
}

// Usage reports eval_count and eval_duration from the done chunk.
func (f *ollamaFragments) Usage() (model.Usage, bool) {
	final := f.stream.Final()
	if final == nil {
		return model.Usage{}, false
	}
	return model.Usage{
		PromptTokens:     final.PromptTokens,
		CompletionTokens: final.CompletionTokens,
		EvalDuration:     final.EvalDuration,
		TokensPerSecond:  final.TokensPerSecond(),
	}, true
}

func (f *ollamaFragments) Close() error {
	return f.stream.Close()
}

// =============================================================================
// STATIC GENERATOR
// =============================================================================

// SliceStream returns a FragmentStream over fixed fragments, optionally
// failing with err after they are exhausted. Used for batch runs and tests.
func SliceStream(fragments []string, err error) FragmentStream {
	return &sliceStream{fragments: fragments, err: err}
}

type sliceStream struct {
	fragments []string
	err       error
	closed    bool
}

func (s *sliceStream) Next() (string, error) {
	if s.closed {
		return "", io.EOF
	}
	if len(s.fragments) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	next := s.fragments[0]
	s.fragments = s.fragments[1:]
	return next, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, history []ollama.Message, cfg GenerationConfig) (FragmentStream, error)

// Stream calls f.
func (f GeneratorFunc) Stream(ctx context.Context, history []ollama.Message, cfg GenerationConfig) (FragmentStream, error) {
	return f(ctx, history, cfg)
}
