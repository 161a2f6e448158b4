// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pva

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/microsoft/power-virtual-agents-sdk/internal/retry"
	"golang.org/x/time/rate"
)

// Engine is the protocol state machine (C5). It owns the conversation id
// for its lifetime and dispatches each turn to the REST or SSE transport
// loop according to what the Strategy returns for that turn.
//
// An Engine is not reentrant: the caller (normally a [TurnStream] plus the
// chatadapter façade) must not start two turns concurrently on the same
// instance.
type Engine struct {
	strategy Strategy
	client   *http.Client
	retry    retry.Policy
	limiter  *rate.Limiter
	logger   *slog.Logger
	telemetry TelemetryClient

	mu             sync.Mutex
	conversationID string
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithHTTPClient overrides the default http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.client = c }
}

// WithRetryPolicy overrides the default 5-attempt exponential-backoff
// policy described in spec §4.2.
func WithRetryPolicy(p retry.Policy) Option {
	return func(e *Engine) { e.retry = p }
}

// WithRateLimiter bounds the outbound request rate against the bot
// backend. Nil (the default) means unlimited, matching spec §5's
// no-shared-state baseline; a caller that opts in accepts the one piece of
// state an Engine may share across turns.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithLogger sets the logger used for low-volume structural events (turn
// started, retry exhausted, conversation id adopted). Nil disables
// logging.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTelemetry sets the sink for retry-exhausted exceptions (spec §7).
func WithTelemetry(t TelemetryClient) Option {
	return func(e *Engine) {
		if t != nil {
			e.telemetry = t
		}
	}
}

// New returns an Engine that has not yet started a conversation.
func New(strategy Strategy, opts ...Option) *Engine {
	e := &Engine{
		strategy: strategy,
		client:   http.DefaultClient,
		retry: retry.Policy{
			MaxAttempts:    5,
			InitialBackoff: 250 * time.Millisecond,
			Multiplier:     2,
			MaxBackoff:     10 * time.Second,
		},
		logger:    slog.New(discardHandler{}),
		telemetry: noopTelemetry{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ConversationID returns the conversation id learned so far, or "" if none
// has been adopted yet.
func (e *Engine) ConversationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conversationID
}

func (e *Engine) adoptConversationID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conversationID == "" {
		e.conversationID = id
		e.logger.Debug("conversation id adopted", "conversationId", id)
	}
}

// StartNewConversation begins a conversation and returns a lazy stream of
// the bot's activities for this first turn. emitStartConversationEvent is
// merged into the strategy's static body under that key (spec §6.1).
func (e *Engine) StartNewConversation(ctx context.Context, emitStartConversationEvent bool) *TurnStream {
	return wrapTurn(e, func() (ActivityStream, error) {
		prep, err := e.strategy.PrepareStartNewConversation(ctx)
		if err != nil {
			return nil, err
		}
		body := mergeBody(prep.Body, "emitStartConversationEvent", emitStartConversationEvent)
		return e.dispatch(ctx, prep, body, "", e.adoptConversationID)
	})
}

// ExecuteTurn posts activity as the user's turn and returns a lazy stream
// of the bot's activities for it. The returned stream's first pull fails
// with a usage error if no conversation id has been learned yet (spec
// §4.5, §8).
func (e *Engine) ExecuteTurn(ctx context.Context, activity Activity) *TurnStream {
	return wrapTurn(e, func() (ActivityStream, error) {
		id := e.ConversationID()
		if id == "" {
			return nil, &UsageError{Message: "startNewConversation() must be called before executeTurn()."}
		}
		prep, err := e.strategy.PrepareExecuteTurn(ctx)
		if err != nil {
			return nil, err
		}
		body := mergeBody(prep.Body, "activity", activity)
		return e.dispatch(ctx, prep, body, id, e.adoptConversationID)
	})
}

func (e *Engine) dispatch(ctx context.Context, prep RequestPrep, body map[string]any, conversationID string, adoptID func(string)) (ActivityStream, error) {
	e.logger.Debug("turn started", "transport", prep.Transport.String(), "conversationId", conversationID)
	switch prep.Transport {
	case TransportSSE:
		return e.dispatchSSE(ctx, prep, body, conversationID, adoptID)
	default:
		return e.newRESTStream(prep, body, conversationID, adoptID), nil
	}
}

func (e *Engine) httpClient() *http.Client { return e.client }
func (e *Engine) retryPolicy() retry.Policy { return e.retry }

func (e *Engine) waitForRateLimit(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func (e *Engine) reportExhausted(ctx context.Context, exhausted *retry.ExhaustedError) {
	e.logger.Warn("retries exhausted", "attempts", exhausted.Attempts, "error", exhausted.Err)
	e.telemetry.TrackException(ctx, exhausted.Err, retryExhaustedTags(exhausted.Attempts))
}

func mergeBody(base map[string]any, key string, value any) map[string]any {
	merged := make(map[string]any, len(base)+1)
	for k, v := range base {
		merged[k] = v
	}
	merged[key] = value
	return merged
}

// discardHandler is a slog.Handler that drops every record, used as the
// zero-configuration default so the engine never needs a nil check before
// logging.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs(attrs []slog.Attr) slog.Handler   { return discardHandler{} }
func (discardHandler) WithGroup(name string) slog.Handler         { return discardHandler{} }
