// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package chatadapter implements the outer chat-adapter façade (C7): it
// pumps a [Starter] on behalf of activity$/connectionStatus$/postActivity()
// style consumers and translates engine failure into terminal connection
// status, per spec §4.7.
package chatadapter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/microsoft/power-virtual-agents-sdk/pva"
)

// PostResult is what a postActivity() call resolves to: a synthetic id on
// success, or the propagated engine error.
type PostResult struct {
	ID  string
	Err error
}

type postRequest struct {
	ctx      context.Context
	activity pva.Activity
	result   chan PostResult
}

// Adapter is the chat-adapter façade. Construct with [New] and call
// Activities, ConnectionStatus, or PostActivity to trigger the lazy first
// subscription.
type Adapter struct {
	starter Starter
	logger  *slog.Logger

	startOnce  sync.Once
	activities chan pva.Activity
	status     *statusBroadcaster
	postReq    chan postRequest
	done       chan struct{}

	mu        sync.Mutex
	cachedErr error
}

// Option configures an Adapter at construction time.
type Option func(*Adapter)

// WithLogger sets the logger for low-volume façade events. Nil disables
// logging.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// New returns an Adapter over starter. The underlying conversation is not
// started until the first call to Activities, ConnectionStatus, or
// PostActivity (spec §4.7 point 1: "on first subscription").
func New(starter Starter, opts ...Option) *Adapter {
	a := &Adapter{
		starter:    starter,
		logger:     slog.New(discardHandler{}),
		activities: make(chan pva.Activity, 16),
		status:     newStatusBroadcaster(),
		postReq:    make(chan postRequest),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) ensureStarted() {
	a.startOnce.Do(func() { go a.run() })
}

// Activities returns the channel of all activities produced across every
// turn, in order. It closes when the adapter terminates.
func (a *Adapter) Activities() <-chan pva.Activity {
	a.ensureStarted()
	return a.activities
}

// ConnectionStatus returns a channel that immediately replays the current
// status, then every subsequent one, closing after a terminal status.
func (a *Adapter) ConnectionStatus() <-chan ConnectionStatus {
	ch := a.status.Subscribe()
	a.ensureStarted()
	return ch
}

// PostActivity posts activity as the next user turn. Exactly one post is
// ever in flight; concurrent callers are served in the order their calls
// reach the façade's internal pump. The returned channel receives exactly
// one PostResult and then closes.
func (a *Adapter) PostActivity(ctx context.Context, activity pva.Activity) <-chan PostResult {
	a.ensureStarted()
	result := make(chan PostResult, 1)

	select {
	case <-a.done:
		a.replyWithCachedError(result)
		return result
	default:
	}

	req := postRequest{ctx: ctx, activity: activity, result: result}
	select {
	case a.postReq <- req:
	case <-a.done:
		a.replyWithCachedError(result)
	}
	return result
}

func (a *Adapter) replyWithCachedError(result chan PostResult) {
	a.mu.Lock()
	err := a.cachedErr
	a.mu.Unlock()
	result <- PostResult{Err: err}
	close(result)
}

func (a *Adapter) run() {
	defer close(a.activities)

	a.status.Emit(Connecting)

	ctx := context.Background()
	src, err := a.starter.Start(ctx)
	if err != nil {
		a.fail(err)
		return
	}

	handle, ok := a.pump(ctx, src, true)
	if !ok {
		return
	}

	for {
		select {
		case req := <-a.postReq:
			if handle == nil {
				a.replyErr(req, &pva.UsageError{Message: "no active turn handle"})
				continue
			}
			next, err := handle.Execute(req.ctx, req.activity)
			if err != nil {
				a.replyErr(req, err)
				a.fail(err)
				return
			}
			h, ok := a.pump(req.ctx, next, false)
			if !ok {
				a.replyWithCachedError(req.result)
				return
			}
			handle = h
			req.result <- PostResult{ID: uuid.NewString()}
			close(req.result)
		case <-a.done:
			return
		}
	}
}

func (a *Adapter) replyErr(req postRequest, err error) {
	req.result <- PostResult{Err: err}
	close(req.result)
}

// pump drains src into a.activities until the turn ends or the adapter is
// done. It returns the next turn's handle and true on a clean end, or
// (nil, false) if the adapter failed or was closed mid-pump.
//
// Online is emitted right after the first successful pull of the very
// first turn's stream — before that pull's activity (if any) reaches
// Activities() — per SPEC_FULL.md's resolution of spec §9 Q1.
func (a *Adapter) pump(ctx context.Context, src TurnSource, emitOnlineOnFirst bool) (TurnHandle, bool) {
	first := true
	for {
		pull, err := src.Next(ctx)
		if err != nil {
			a.fail(err)
			return nil, false
		}
		if first {
			if emitOnlineOnFirst {
				a.status.Emit(Online)
			}
			first = false
		}
		if pull.Done {
			return pull.Handle, true
		}
		select {
		case a.activities <- pull.Activity:
		case <-a.done:
			return nil, false
		}
	}
}

func (a *Adapter) fail(err error) {
	a.mu.Lock()
	if a.cachedErr == nil {
		a.cachedErr = err
	}
	a.mu.Unlock()
	a.logger.Warn("chat adapter failed", "error", err)
	a.status.Emit(FailedToConnect)
	a.status.Close()
	close(a.done)
}
