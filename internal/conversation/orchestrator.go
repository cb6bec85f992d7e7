// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/jeranaias/ollachat/internal/model"
	"github.com/jeranaias/ollachat/internal/session"
)

// =============================================================================
// TURN STATE
// =============================================================================

// TurnState is the lifecycle position of the current turn.
type TurnState int

const (
	StateIdle TurnState = iota
	StateAwaitingFirstFragment
	StateStreaming
	StateCompleted
	StateFailed
)

// String returns the state name.
func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingFirstFragment:
		return "awaiting_first_fragment"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateObserver is called on every state transition, on the goroutine
// running the turn.
type StateObserver func(from, to TurnState)

// TurnResult describes a finished turn.
type TurnResult struct {
	User      model.Message
	Assistant model.Message
	State     TurnState // StateCompleted or StateFailed
	Err       *GenerationError
	Stats     *model.Statistics
}

// Failed reports whether the assistant message is an error.
func (r TurnResult) Failed() bool {
	return r.Err != nil
}

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRenderer sets the presentation collaborator. Defaults to Discard.
func WithRenderer(r Renderer) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.renderer = r
		}
	}
}

// WithLogger sets the logger for turn outcomes. Defaults to discarding.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStateObserver registers fn for state transitions.
func WithStateObserver(fn StateObserver) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// WithBaseURL sets the endpoint named in error remediation text.
func WithBaseURL(url string) Option {
	return func(o *Orchestrator) {
		o.baseURL = url
	}
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs turns for one session. At most one turn is in flight;
// overlapping calls are rejected with ErrTurnInFlight.
type Orchestrator struct {
	store     *session.Store
	generator Generator
	cfg       GenerationConfig

	renderer Renderer
	logger   *log.Logger
	observer StateObserver
	baseURL  string

	turnMu sync.Mutex // held for the whole turn

	stateMu sync.RWMutex
	state   TurnState
	stats   *model.Statistics
}

// New creates an orchestrator that appends to store and generates with gen.
func New(store *session.Store, gen Generator, cfg GenerationConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		generator: gen,
		cfg:       cfg,
		renderer:  Discard,
		logger:    log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Store returns the session store.
func (o *Orchestrator) Store() *session.Store {
	return o.store
}

// Config returns the generation config.
func (o *Orchestrator) Config() GenerationConfig {
	return o.cfg
}

// BaseURL returns the endpoint named in error text.
func (o *Orchestrator) BaseURL() string {
	return o.baseURL
}

// State returns the current turn state.
func (o *Orchestrator) State() TurnState {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

// Busy reports whether a turn is in flight.
func (o *Orchestrator) Busy() bool {
	return o.State() != StateIdle
}

// LastStats returns statistics for the most recent finished turn, or nil.
func (o *Orchestrator) LastStats() *model.Statistics {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.stats
}

// HandleSuggestion runs the turn for a canned prompt label.
func (o *Orchestrator) HandleSuggestion(ctx context.Context, label string) (TurnResult, error) {
	s, ok := LookupSuggestion(label)
	if !ok {
		return TurnResult{}, ErrUnknownSuggestion
	}
	return o.HandleUserTurn(ctx, s.Prompt)
}

// HandleUserTurn appends text as a user turn, streams the response and
// appends one assistant turn.
//
// The returned error is only ErrEmptyInput or ErrTurnInFlight, in which
// case nothing was appended. Generation failures are reported in
// TurnResult.Err; the error text is what was stored as the assistant turn.
func (o *Orchestrator) HandleUserTurn(ctx context.Context, text string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, ErrEmptyInput
	}

	if !o.turnMu.TryLock() {
		return TurnResult{}, ErrTurnInFlight
	}
	defer o.turnMu.Unlock()

	user := o.store.Append(model.RoleUser, text)
	o.renderer.RenderTurn(model.RoleUser, text)

	stats := model.NewStatistics()
	o.transition(StateAwaitingFirstFragment)

	content, err := o.stream(ctx, stats)
	stats.Finalize()

	result := TurnResult{User: user, Stats: stats}
	if err != nil {
		genErr := newGenerationError(err, content)
		message := FormatError(genErr, o.cfg, o.baseURL)
		o.renderer.RenderError(message)
		result.Assistant = o.store.AppendFailed(message)
		result.Err = genErr
		result.State = StateFailed
		o.logger.Printf("turn failed: session=%s model=%s: %v", o.store.ID(), o.cfg.Model, err)
	} else {
		o.renderer.RenderTurn(model.RoleAssistant, content)
		result.Assistant = o.store.Append(model.RoleAssistant, content)
		result.State = StateCompleted
		o.logger.Printf("turn completed: session=%s model=%s %s", o.store.ID(), o.cfg.Model, stats.Format())
	}

	o.stateMu.Lock()
	o.stats = stats
	o.stateMu.Unlock()

	o.transition(result.State)
	o.transition(StateIdle)
	return result, nil
}

// stream drains one generation into a buffer, rendering as it goes. On
// error it returns what was accumulated so far.
func (o *Orchestrator) stream(ctx context.Context, stats *model.Statistics) (string, error) {
	fragments, err := o.generator.Stream(ctx, o.store.History(), o.cfg)
	if err != nil {
		return "", err
	}
	if fragments == nil {
		return "", errors.New("generator returned no stream")
	}
	defer fragments.Close()

	var buf strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return buf.String(), err
		}

		fragment, err := fragments.Next()
		if err == io.EOF {
			if r, ok := fragments.(UsageReporter); ok {
				if u, ok := r.Usage(); ok {
					stats.RecordUsage(u)
				}
			}
			return buf.String(), nil
		}
		if err != nil {
			return buf.String(), err
		}

		if stats.Fragments == 0 {
			o.transition(StateStreaming)
		}
		stats.RecordFragment()
		buf.WriteString(fragment)
		o.renderer.RenderIncremental(buf.String() + Cursor)
	}
}

func (o *Orchestrator) transition(to TurnState) {
	o.stateMu.Lock()
	from := o.state
	o.state = to
	o.stateMu.Unlock()

	if o.observer != nil && from != to {
		o.observer(from, to)
	}
}
