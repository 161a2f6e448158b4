// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package chatadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/microsoft/power-virtual-agents-sdk/pva"
)

// fakeSource replays a fixed sequence of pulls, then an optional terminal
// error, standing in for a pva.TurnStream in tests.
type fakeSource struct {
	pulls []Pull
	err   error
	i     int
}

func (s *fakeSource) Next(context.Context) (Pull, error) {
	if s.i < len(s.pulls) {
		p := s.pulls[s.i]
		s.i++
		return p, nil
	}
	if s.err != nil {
		return Pull{}, s.err
	}
	return Pull{}, errors.New("fakeSource exhausted")
}

// fakeHandle produces the next turn's fakeSource when Execute is called.
type fakeHandle struct {
	next *fakeSource
	err  error
}

func (h *fakeHandle) Execute(context.Context, pva.Activity) (TurnSource, error) {
	if h.err != nil {
		return nil, h.err
	}
	return h.next, nil
}

func waitStatus(t *testing.T, ch <-chan ConnectionStatus, want ConnectionStatus) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("status = %v, want %v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for status %v", want)
	}
}

func TestAdapter_GoesOnlineAfterFirstPull(t *testing.T) {
	turn1 := &fakeSource{pulls: []Pull{
		{Done: true, Handle: &fakeHandle{}},
	}}
	starter := StarterFunc(func(context.Context) (TurnSource, error) { return turn1, nil })
	a := New(starter)

	status := a.ConnectionStatus()
	waitStatus(t, status, Uninitialized)
	waitStatus(t, status, Connecting)
	waitStatus(t, status, Online)
}

func TestAdapter_ForwardsActivitiesInOrder(t *testing.T) {
	turn1 := &fakeSource{pulls: []Pull{
		{Activity: pva.Activity{"type": "message", "text": "one"}},
		{Activity: pva.Activity{"type": "message", "text": "two"}},
		{Done: true, Handle: &fakeHandle{}},
	}}
	starter := StarterFunc(func(context.Context) (TurnSource, error) { return turn1, nil })
	a := New(starter)

	activities := a.Activities()
	got1 := <-activities
	got2 := <-activities
	if got1["text"] != "one" || got2["text"] != "two" {
		t.Fatalf("got %v, %v", got1, got2)
	}
}

func TestAdapter_PostActivityAdvancesTurnAndStatusStaysOnline(t *testing.T) {
	turn2 := &fakeSource{pulls: []Pull{
		{Activity: pva.Activity{"type": "message", "text": "reply"}},
		{Done: true, Handle: &fakeHandle{}},
	}}
	turn1 := &fakeSource{pulls: []Pull{
		{Done: true, Handle: &fakeHandle{next: turn2}},
	}}
	starter := StarterFunc(func(context.Context) (TurnSource, error) { return turn1, nil })
	a := New(starter)

	status := a.ConnectionStatus()
	waitStatus(t, status, Uninitialized)
	waitStatus(t, status, Connecting)
	waitStatus(t, status, Online)

	activities := a.Activities()

	result := <-a.PostActivity(context.Background(), pva.Activity{"type": "message", "text": "hi"})
	if result.Err != nil {
		t.Fatalf("PostActivity() error = %v", result.Err)
	}
	if result.ID == "" {
		t.Fatal("PostActivity() ID = \"\", want non-empty")
	}

	select {
	case got := <-activities:
		if got["text"] != "reply" {
			t.Fatalf("got %v, want reply", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply activity")
	}

	select {
	case s := <-status:
		t.Fatalf("unexpected status emitted after second turn: %v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAdapter_StartFailureGoesFailedToConnect(t *testing.T) {
	wantErr := errors.New("boom")
	starter := StarterFunc(func(context.Context) (TurnSource, error) { return nil, wantErr })
	a := New(starter)

	status := a.ConnectionStatus()
	waitStatus(t, status, Uninitialized)
	waitStatus(t, status, Connecting)
	waitStatus(t, status, FailedToConnect)

	if _, ok := <-status; ok {
		t.Fatal("status channel should be closed after a terminal status")
	}

	if _, ok := <-a.Activities(); ok {
		t.Fatal("activities channel should be closed after start failure")
	}

	result := <-a.PostActivity(context.Background(), pva.Activity{"type": "message"})
	if !errors.Is(result.Err, wantErr) {
		t.Fatalf("PostActivity() error = %v, want %v", result.Err, wantErr)
	}
}

func TestAdapter_MidTurnFailurePropagatesToPostActivity(t *testing.T) {
	wantErr := errors.New("mid-turn failure")
	turn1 := &fakeSource{pulls: []Pull{
		{Done: true, Handle: &fakeHandle{err: wantErr}},
	}}
	starter := StarterFunc(func(context.Context) (TurnSource, error) { return turn1, nil })
	a := New(starter)

	status := a.ConnectionStatus()
	waitStatus(t, status, Uninitialized)
	waitStatus(t, status, Connecting)
	waitStatus(t, status, Online)

	result := <-a.PostActivity(context.Background(), pva.Activity{"type": "message"})
	if !errors.Is(result.Err, wantErr) {
		t.Fatalf("PostActivity() error = %v, want %v", result.Err, wantErr)
	}

	waitStatus(t, status, FailedToConnect)
}
