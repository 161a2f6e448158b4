// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package chatadapter

import (
	"context"

	"github.com/microsoft/power-virtual-agents-sdk/pva"
)

// Pull mirrors pva.Pull at the façade's port boundary, so the façade never
// depends on pva's concrete TurnStream/TurnHandle types and can be driven
// entirely by hand-written stubs in tests (spec §9, design notes).
type Pull struct {
	Activity pva.Activity
	Done     bool
	Handle   TurnHandle
}

// TurnSource is the minimal capability the façade pumps: pull activities
// one at a time until the turn ends.
type TurnSource interface {
	Next(ctx context.Context) (Pull, error)
}

// TurnHandle is the minimal capability the façade invokes to post the next
// user turn.
type TurnHandle interface {
	Execute(ctx context.Context, activity pva.Activity) (TurnSource, error)
}

// Starter is the port the façade depends on to obtain the engine's first
// turn. It is the Go analogue of spec §4.7's "single asynchronous start
// conversation callable returning { execute, initialActivities }": here
// initialActivities is the returned TurnSource, and execute is whatever
// TurnHandle that source eventually yields.
type Starter interface {
	Start(ctx context.Context) (TurnSource, error)
}

// StarterFunc adapts a plain function to a Starter.
type StarterFunc func(ctx context.Context) (TurnSource, error)

func (f StarterFunc) Start(ctx context.Context) (TurnSource, error) { return f(ctx) }

// EngineStarter adapts a *pva.Engine into the façade's Starter port,
// driving pva's actual C5/C6 implementation in production.
type EngineStarter struct {
	Engine                     *pva.Engine
	EmitStartConversationEvent bool
}

func (s *EngineStarter) Start(ctx context.Context) (TurnSource, error) {
	stream := s.Engine.StartNewConversation(ctx, s.EmitStartConversationEvent)
	return pvaTurnSource{stream}, nil
}

// pvaTurnSource and pvaTurnHandle bridge pva's concrete TurnStream/
// TurnHandle types to the façade's TurnSource/TurnHandle interfaces.
type pvaTurnSource struct{ stream *pva.TurnStream }

func (t pvaTurnSource) Next(ctx context.Context) (Pull, error) {
	p, err := t.stream.Next(ctx)
	if err != nil {
		return Pull{}, err
	}
	var handle TurnHandle
	if p.Done && p.Handle != nil {
		handle = pvaTurnHandle{p.Handle}
	}
	return Pull{Activity: p.Activity, Done: p.Done, Handle: handle}, nil
}

type pvaTurnHandle struct{ handle *pva.TurnHandle }

func (h pvaTurnHandle) Execute(ctx context.Context, activity pva.Activity) (TurnSource, error) {
	stream, err := h.handle.Execute(ctx, activity)
	if err != nil {
		return nil, err
	}
	return pvaTurnSource{stream}, nil
}
