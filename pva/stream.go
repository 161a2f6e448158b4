// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pva

import (
	"context"
	"io"
	"sync/atomic"
)

// ActivityStream is a lazy, pull-based sequence of activities produced
// during a single turn by one of the transport loops (C3 or C4). Next
// returns io.EOF once the bot has signaled it is waiting for user input;
// any other error is a protocol, transport, or usage failure and ends the
// stream.
type ActivityStream interface {
	Next(ctx context.Context) (Activity, error)
}

// Pull is one result of advancing a [TurnStream]: either the next
// Activity, or — once the turn has ended — a single-use [TurnHandle] for
// starting the next one.
type Pull struct {
	Activity Activity
	Done     bool
	Handle   *TurnHandle
}

// turnInit lazily produces the ActivityStream for a turn. It is not called
// until the TurnStream's first Next, so that usage errors (spec's "fails
// synchronously if conversationId is unset") surface on the first pull
// rather than when StartNewConversation/ExecuteTurn is called, matching
// the source's async-generator semantics (spec §9, design notes).
type turnInit func() (ActivityStream, error)

// TurnStream wraps an engine-produced ActivityStream so that, once
// exhausted, it yields a single-use next-turn handle as its terminal value
// (C6).
type TurnStream struct {
	engine *Engine
	init   turnInit
	inner  ActivityStream
	ended  bool
}

func wrapTurn(e *Engine, init turnInit) *TurnStream {
	return &TurnStream{engine: e, init: init}
}

// Next advances the stream by one activity. Once the turn has ended, it
// returns a Pull with Done set and a usable Handle; calling Next again
// after that is a programming error and returns an error.
func (t *TurnStream) Next(ctx context.Context) (Pull, error) {
	if t.ended {
		return Pull{}, &UsageError{Message: "turn stream already ended"}
	}
	if t.inner == nil {
		inner, err := t.init()
		if err != nil {
			t.ended = true
			return Pull{}, err
		}
		t.inner = inner
	}

	activity, err := t.inner.Next(ctx)
	if err != nil {
		if err == io.EOF {
			t.ended = true
			return Pull{Done: true, Handle: newTurnHandle(t.engine)}, nil
		}
		t.ended = true
		return Pull{}, err
	}
	return Pull{Activity: activity}, nil
}

// obsoletedMessage is the exact text spec.md mandates for a reused turn
// handle (spec §4.6, §8).
const obsoletedMessage = "This executeTurn() function is obsoleted. Please use a new one."

// TurnHandle is a single-use capability to post the next user turn. It
// implements the "obsoleted handle" pattern from spec §9's design notes:
// an owning object whose single method consumes the object via a one-shot
// flag, rather than a mutable chain of producer functions.
type TurnHandle struct {
	engine *Engine
	used   atomic.Bool
}

func newTurnHandle(e *Engine) *TurnHandle {
	return &TurnHandle{engine: e}
}

// Execute posts activity as the user's turn and returns the resulting
// TurnStream. Calling Execute a second time on the same handle fails with
// the obsoletion message, regardless of whether the first call succeeded.
func (h *TurnHandle) Execute(ctx context.Context, activity Activity) (*TurnStream, error) {
	if !h.used.CompareAndSwap(false, true) {
		return nil, &UsageError{Message: obsoletedMessage}
	}
	return h.engine.ExecuteTurn(ctx, activity), nil
}
