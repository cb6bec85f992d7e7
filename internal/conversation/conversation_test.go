// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ollachat/internal/model"
	"github.com/jeranaias/ollachat/internal/ollama"
	"github.com/jeranaias/ollachat/internal/session"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// scriptedGenerator returns fixed fragments, or fails before streaming.
type scriptedGenerator struct {
	mu        sync.Mutex
	fragments []string
	startErr  error
	streamErr error
	calls     int
	histories [][]ollama.Message
	configs   []GenerationConfig
}

func (g *scriptedGenerator) Stream(ctx context.Context, history []ollama.Message, cfg GenerationConfig) (FragmentStream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.histories = append(g.histories, history)
	g.configs = append(g.configs, cfg)
	if g.startErr != nil {
		return nil, g.startErr
	}
	return SliceStream(append([]string(nil), g.fragments...), g.streamErr), nil
}

func newTestOrchestrator(gen Generator, policy session.ErrorHistoryPolicy, opts ...Option) (*Orchestrator, *session.Store, *Transcript) {
	store := session.New(policy)
	tr := &Transcript{}
	opts = append([]Option{WithRenderer(tr), WithBaseURL("http://localhost:11434")}, opts...)
	return New(store, gen, DefaultGenerationConfig(), opts...), store, tr
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestDefaultGenerationConfig(t *testing.T) {
	cfg := DefaultGenerationConfig()
	assert.Equal(t, "llama3.2", cfg.Model)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, 2048, cfg.MaxOutput)
	assert.NoError(t, cfg.Validate())
}

func TestGenerationConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     GenerationConfig
		wantErr string
	}{
		{"valid zero temperature", GenerationConfig{Model: "m", Temperature: 0, MaxOutput: 1}, ""},
		{"valid max temperature", GenerationConfig{Model: "m", Temperature: 2.0, MaxOutput: 1}, ""},
		{"empty model", GenerationConfig{Model: " ", Temperature: 0.7, MaxOutput: 1}, "model must not be empty"},
		{"temperature too high", GenerationConfig{Model: "m", Temperature: 2.5, MaxOutput: 1}, "temperature"},
		{"negative temperature", GenerationConfig{Model: "m", Temperature: -0.1, MaxOutput: 1}, "temperature"},
		{"zero max output", GenerationConfig{Model: "m", Temperature: 0.7}, "max output"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestGenerationConfig_WithOverrides(t *testing.T) {
	base := DefaultGenerationConfig()
	model := "mistral"
	temp := 0.0

	got := base.WithOverrides(Overrides{Model: &model, Temperature: &temp})

	assert.Equal(t, "mistral", got.Model)
	assert.Equal(t, 0.0, got.Temperature)
	assert.Equal(t, 2048, got.MaxOutput)
	assert.Equal(t, DefaultGenerationConfig(), base, "original must not change")
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestFormatError(t *testing.T) {
	cfg := DefaultGenerationConfig()
	got := FormatError(errors.New("connection refused"), cfg, "http://localhost:11434")

	want := "❌ **Error:** connection refused\n\n" +
		"**Possible solutions:**\n" +
		"- Make sure Ollama is running (`ollama serve`)\n" +
		"- Verify the model is installed (`ollama pull llama3.2`)\n" +
		"- Check if Ollama is accessible at http://localhost:11434"
	assert.Equal(t, want, got)
	assert.True(t, IsErrorContent(got))
	assert.False(t, IsErrorContent("Hello!"))
}

func TestFormatError_Cancelled(t *testing.T) {
	cfg := DefaultGenerationConfig()
	cause := &ollama.ClientError{Type: ollama.ErrTypeConnection, Message: "stream cancelled", Cause: context.Canceled}

	for _, err := range []error{context.Canceled, fmt.Errorf("stream: %w", cause)} {
		got := FormatError(err, cfg, "")
		assert.Equal(t, "❌ **Error:** generation cancelled", got)
		assert.True(t, IsErrorContent(got))
		assert.NotContains(t, got, "Make sure Ollama is running")
	}
}

func TestGenerationError_Unwrap(t *testing.T) {
	cause := &ollama.ClientError{Type: ollama.ErrTypeNotRunning, Message: "Ollama is not running"}
	err := newGenerationError(fmt.Errorf("start: %w", cause), "")

	assert.Equal(t, GenerationUnavailable, err.Kind)
	assert.True(t, ollama.IsNotRunning(err))
	assert.True(t, errors.Is(err, ollama.ErrNotRunning))
}

// =============================================================================
// TURN TESTS
// =============================================================================

func TestHandleUserTurn_StreamsFragments(t *testing.T) {
	gen := &scriptedGenerator{fragments: []string{"Hel", "lo", "!"}}
	orch, store, tr := newTestOrchestrator(gen, session.ErrorHistoryInclude)

	result, err := orch.HandleUserTurn(context.Background(), "Hi")
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, result.State)
	assert.False(t, result.Failed())
	assert.Equal(t, "Hello!", result.Assistant.Content)
	assert.Equal(t, 3, result.Stats.Fragments)
	assert.Nil(t, result.Stats.Usage, "scripted streams report no server counts")

	assert.Equal(t, []string{"Hel▌", "Hello▌", "Hello!▌"}, tr.Incrementals())
	turns := tr.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, Event{Kind: EventTurn, Role: model.RoleUser, Content: "Hi"}, turns[0])
	assert.Equal(t, Event{Kind: EventTurn, Role: model.RoleAssistant, Content: "Hello!"}, turns[1])

	all := store.All()
	require.Len(t, all, 2)
	assert.Equal(t, model.RoleAssistant, all[1].Role)
	assert.Equal(t, "Hello!", all[1].Content)
	assert.Len(t, store.History(), 2)

	// The model sees its own just-submitted prompt last.
	require.Len(t, gen.histories, 1)
	require.Len(t, gen.histories[0], 1)
	assert.Equal(t, ollama.Message{Role: "user", Content: "Hi"}, gen.histories[0][0])
	assert.Equal(t, DefaultGenerationConfig(), gen.configs[0])
	assert.Equal(t, StateIdle, orch.State())
}

func TestHandleUserTurn_FailsBeforeFirstFragment(t *testing.T) {
	gen := &scriptedGenerator{startErr: &ollama.ClientError{Type: ollama.ErrTypeNotRunning, Message: "Ollama is not running"}}

	var states []TurnState
	orch, store, tr := newTestOrchestrator(gen, session.ErrorHistoryInclude,
		WithStateObserver(func(_, to TurnState) { states = append(states, to) }))

	result, err := orch.HandleUserTurn(context.Background(), "Hi")
	require.NoError(t, err, "generation failures never escape the turn")

	assert.Equal(t, StateFailed, result.State)
	require.NotNil(t, result.Err)
	assert.True(t, ollama.IsNotRunning(result.Err))

	all := store.All()
	require.Len(t, all, 2)
	assert.Equal(t, model.RoleUser, all[0].Role)
	assert.Equal(t, model.RoleAssistant, all[1].Role)
	assert.True(t, strings.HasPrefix(all[1].Content, ErrorIndicator))
	assert.Contains(t, all[1].Content, "Ollama is not running")

	assert.Empty(t, tr.Incrementals())
	require.Len(t, tr.Errors(), 1)
	assert.Equal(t, all[1].Content, tr.Errors()[0])

	assert.Equal(t, []TurnState{StateAwaitingFirstFragment, StateFailed, StateIdle}, states)
}

func TestHandleUserTurn_FailsMidStream(t *testing.T) {
	gen := &scriptedGenerator{fragments: []string{"Hel"}, streamErr: errors.New("connection reset")}
	orch, store, tr := newTestOrchestrator(gen, session.ErrorHistoryInclude)

	result, err := orch.HandleUserTurn(context.Background(), "Hi")
	require.NoError(t, err)

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, "Hel", result.Err.Partial)
	assert.Equal(t, []string{"Hel▌"}, tr.Incrementals())

	// The partial text is never stored.
	all := store.All()
	require.Len(t, all, 2)
	assert.NotContains(t, all[1].Content, "Hel▌")
	assert.Contains(t, all[1].Content, "connection reset")
}

func TestHandleUserTurn_ErrorHistoryPolicy(t *testing.T) {
	tests := []struct {
		name        string
		policy      session.ErrorHistoryPolicy
		wantHistory int
	}{
		{"include", session.ErrorHistoryInclude, 2},
		{"exclude", session.ErrorHistoryExclude, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := &scriptedGenerator{startErr: errors.New("boom")}
			orch, store, _ := newTestOrchestrator(gen, tc.policy)

			_, err := orch.HandleUserTurn(context.Background(), "Hi")
			require.NoError(t, err)

			assert.Len(t, store.All(), 2)
			assert.Len(t, store.History(), tc.wantHistory)

			// The next turn sees exactly what the policy allows.
			gen.startErr = nil
			gen.fragments = []string{"ok"}
			_, err = orch.HandleUserTurn(context.Background(), "again")
			require.NoError(t, err)
			assert.Len(t, gen.histories[1], tc.wantHistory+1)
		})
	}
}

func TestHandleUserTurn_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t "} {
		t.Run(fmt.Sprintf("%q", input), func(t *testing.T) {
			gen := &scriptedGenerator{fragments: []string{"x"}}
			orch, store, tr := newTestOrchestrator(gen, session.ErrorHistoryInclude)

			_, err := orch.HandleUserTurn(context.Background(), input)
			assert.ErrorIs(t, err, ErrEmptyInput)
			assert.True(t, store.IsEmpty())
			assert.Equal(t, 0, gen.calls)
			assert.Empty(t, tr.Events())
		})
	}
}

func TestHandleUserTurn_TrimsInput(t *testing.T) {
	gen := &scriptedGenerator{fragments: []string{"x"}}
	orch, store, _ := newTestOrchestrator(gen, session.ErrorHistoryInclude)

	_, err := orch.HandleUserTurn(context.Background(), "  Hi  \n")
	require.NoError(t, err)
	assert.Equal(t, "Hi", store.All()[0].Content)
}

func TestHandleUserTurn_RepeatedContentAppendsTwice(t *testing.T) {
	gen := &scriptedGenerator{fragments: []string{"same"}}
	orch, store, tr := newTestOrchestrator(gen, session.ErrorHistoryInclude)

	for i := 0; i < 2; i++ {
		_, err := orch.HandleUserTurn(context.Background(), "same")
		require.NoError(t, err)
	}

	assert.Len(t, store.All(), 4)
	assert.Len(t, tr.Turns(), 4)
}

func TestHandleUserTurn_LockStepAcrossTurns(t *testing.T) {
	gen := &scriptedGenerator{fragments: []string{"a", "b"}}
	orch, store, _ := newTestOrchestrator(gen, session.ErrorHistoryInclude)

	for i := 0; i < 5; i++ {
		if i == 2 {
			gen.startErr = errors.New("down")
		} else {
			gen.startErr = nil
		}
		_, err := orch.HandleUserTurn(context.Background(), fmt.Sprintf("turn %d", i))
		require.NoError(t, err)
		assert.Equal(t, len(store.All()), len(store.History()))
	}
	assert.Equal(t, 10, store.Len())
}

// blockingStream holds the turn open until released.
type blockingStream struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStream) Next() (string, error) {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return "", io.EOF
}

func (s *blockingStream) Close() error { return nil }

func TestHandleUserTurn_RejectsOverlappingTurn(t *testing.T) {
	stream := &blockingStream{started: make(chan struct{}), release: make(chan struct{})}
	gen := GeneratorFunc(func(context.Context, []ollama.Message, GenerationConfig) (FragmentStream, error) {
		return stream, nil
	})
	orch, store, _ := newTestOrchestrator(gen, session.ErrorHistoryInclude)

	done := make(chan error, 1)
	go func() {
		_, err := orch.HandleUserTurn(context.Background(), "first")
		done <- err
	}()
	<-stream.started

	assert.True(t, orch.Busy())
	_, err := orch.HandleUserTurn(context.Background(), "second")
	assert.ErrorIs(t, err, ErrTurnInFlight)
	assert.Equal(t, 1, store.Len(), "rejected turn must not append")

	close(stream.release)
	require.NoError(t, <-done)
	assert.Equal(t, 2, store.Len())
	assert.False(t, orch.Busy())
}

func TestHandleUserTurn_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := GeneratorFunc(func(context.Context, []ollama.Message, GenerationConfig) (FragmentStream, error) {
		cancel()
		return SliceStream([]string{"never"}, nil), nil
	})
	orch, store, _ := newTestOrchestrator(gen, session.ErrorHistoryInclude)

	result, err := orch.HandleUserTurn(ctx, "Hi")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 2, store.Len())
	last := store.All()[1]
	assert.True(t, IsErrorContent(last.Content))
	assert.NotContains(t, last.Content, "Possible solutions")

	// The session stays usable.
	gen2 := &scriptedGenerator{fragments: []string{"ok"}}
	orch.generator = gen2
	result, err = orch.HandleUserTurn(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
}

// =============================================================================
// SUGGESTION TESTS
// =============================================================================

func TestHandleSuggestion(t *testing.T) {
	gen := &scriptedGenerator{fragments: []string{"Silicon", " dreams"}}
	orch, store, _ := newTestOrchestrator(gen, session.ErrorHistoryInclude)
	require.True(t, store.IsEmpty())

	result, err := orch.HandleSuggestion(context.Background(), "Write a poem about AI")
	require.NoError(t, err)

	assert.Equal(t, "Write a short poem about artificial intelligence", result.User.Content)
	assert.Equal(t, "Silicon dreams", result.Assistant.Content)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "Write a short poem about artificial intelligence", gen.histories[0][0].Content)
}

func TestHandleSuggestion_Unknown(t *testing.T) {
	gen := &scriptedGenerator{}
	orch, store, _ := newTestOrchestrator(gen, session.ErrorHistoryInclude)

	_, err := orch.HandleSuggestion(context.Background(), "Tell me a joke")
	assert.ErrorIs(t, err, ErrUnknownSuggestion)
	assert.True(t, store.IsEmpty())
	assert.Equal(t, 0, gen.calls)
}

func TestSuggestions(t *testing.T) {
	list := Suggestions()
	require.Len(t, list, 3)
	assert.Equal(t, "Fun fact about space", list[2].Label)

	list[0].Prompt = "mutated"
	s, ok := LookupSuggestion("Write a poem about AI")
	require.True(t, ok)
	assert.Equal(t, "Write a short poem about artificial intelligence", s.Prompt)
}

// =============================================================================
// OLLAMA ADAPTER TESTS
// =============================================================================

func TestOllamaGenerator(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Hel"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"lo!"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":9,"eval_count":2,"eval_duration":500000000}`)
	}))
	defer srv.Close()

	gen := NewOllamaGenerator(ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: srv.URL}))
	orch, store, _ := newTestOrchestrator(gen, session.ErrorHistoryInclude)

	result, err := orch.HandleUserTurn(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, "Hello!", store.All()[1].Content)

	require.NotNil(t, result.Stats.Usage, "done chunk counts reach the statistics")
	assert.Equal(t, 9, result.Stats.Usage.PromptTokens)
	assert.Equal(t, 2, result.Stats.Usage.CompletionTokens)
	assert.Equal(t, 500*time.Millisecond, result.Stats.Usage.EvalDuration)
	assert.InDelta(t, 4.0, result.Stats.TokensPerSecond, 0.001)
	assert.Contains(t, result.Stats.Format(), "2 tokens | 4.0 tok/s")

	assert.Contains(t, body, `"temperature":0.7`)
	assert.Contains(t, body, `"num_predict":2048`)
	assert.Contains(t, body, `"stream":true`)
}

func TestOllamaGenerator_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"model \"llama3.2\" not found, try pulling it first"}`)
	}))
	defer srv.Close()

	gen := NewOllamaGenerator(ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: srv.URL}))
	orch, store, _ := newTestOrchestrator(gen, session.ErrorHistoryInclude)

	result, err := orch.HandleUserTurn(context.Background(), "Hi")
	require.NoError(t, err)
	assert.True(t, ollama.IsModelNotFound(result.Err))
	assert.Contains(t, store.All()[1].Content, "try pulling it first")
	assert.Contains(t, store.All()[1].Content, "ollama pull llama3.2")
}

func TestMultiRenderer(t *testing.T) {
	a, b := &Transcript{}, &Transcript{}
	r := MultiRenderer(a, b, Discard)

	r.RenderTurn(model.RoleUser, "Hi")
	r.RenderIncremental("He▌")
	r.RenderError("❌ nope")

	assert.Equal(t, a.Events(), b.Events())
	assert.Len(t, a.Events(), 3)
}
