// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pva

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func staticStrategy(t *testing.T, base *url.URL) Strategy {
	t.Helper()
	return &StaticStrategy{
		Start: func(context.Context) (RequestPrep, error) {
			return RequestPrep{BaseURL: base, Transport: TransportREST}, nil
		},
		Execute: func(context.Context) (RequestPrep, error) {
			return RequestPrep{BaseURL: base, Transport: TransportREST}, nil
		},
	}
}

func drain(t *testing.T, ctx context.Context, ts *TurnStream) ([]Activity, *TurnHandle) {
	t.Helper()
	var got []Activity
	for {
		p, err := ts.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if p.Done {
			return got, p.Handle
		}
		got = append(got, p.Activity)
	}
}

func TestRESTStream_SingleHopWaiting(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"action":         "waiting",
			"activities":     []map[string]any{{"type": "message", "text": "hi"}},
			"conversationId": "conv-1",
		})
	}))
	defer server.Close()

	base, _ := url.Parse(server.URL)
	e := New(staticStrategy(t, base))
	ctx := context.Background()

	ts := e.StartNewConversation(ctx, true)
	got, handle := drain(t, ctx, ts)

	if gotPath != "/conversations/" {
		t.Fatalf("path = %q, want /conversations/", gotPath)
	}
	want := []Activity{{"type": "message", "text": "hi"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("activities mismatch (-want +got):\n%s", diff)
	}
	if handle == nil {
		t.Fatal("handle = nil, want non-nil")
	}
	if got, want := e.ConversationID(), "conv-1"; got != want {
		t.Fatalf("ConversationID() = %q, want %q", got, want)
	}
}

func TestRESTStream_MultiHopContinuesUntilWaiting(t *testing.T) {
	var hop int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hop, 1)
		if n < 3 {
			json.NewEncoder(w).Encode(map[string]any{
				"action":         "continue",
				"activities":     []map[string]any{{"type": "typing"}},
				"conversationId": "conv-multi",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"action":     "waiting",
			"activities": []map[string]any{{"type": "message", "text": "done"}},
		})
	}))
	defer server.Close()

	base, _ := url.Parse(server.URL)
	e := New(staticStrategy(t, base))
	ctx := context.Background()

	got, handle := drain(t, ctx, e.StartNewConversation(ctx, false))
	if len(got) != 3 {
		t.Fatalf("len(got) = %d, want 3", len(got))
	}
	if handle == nil {
		t.Fatal("handle = nil")
	}
	if atomic.LoadInt32(&hop) != 3 {
		t.Fatalf("hop = %d, want 3", atomic.LoadInt32(&hop))
	}
}

func TestRESTStream_OnlyFirstHopSendsFullBody(t *testing.T) {
	var bodies []map[string]any
	var hop int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		n := atomic.AddInt32(&hop, 1)
		action := "continue"
		if n == 2 {
			action = "waiting"
		}
		json.NewEncoder(w).Encode(map[string]any{"action": action, "activities": []map[string]any{}})
	}))
	defer server.Close()

	base, _ := url.Parse(server.URL)
	e := New(staticStrategy(t, base))
	ctx := context.Background()
	drain(t, ctx, e.StartNewConversation(ctx, true))

	if len(bodies) != 2 {
		t.Fatalf("len(bodies) = %d, want 2", len(bodies))
	}
	if _, ok := bodies[0]["emitStartConversationEvent"]; !ok {
		t.Fatalf("first hop body missing emitStartConversationEvent: %v", bodies[0])
	}
	if len(bodies[1]) != 0 {
		t.Fatalf("second hop body = %v, want empty", bodies[1])
	}
}

func TestExecuteTurn_BeforeStart_FailsOnFirstPull(t *testing.T) {
	base, _ := url.Parse("http://example.invalid")
	e := New(staticStrategy(t, base))
	ctx := context.Background()

	ts := e.ExecuteTurn(ctx, Activity{"type": "message", "text": "hello"})
	_, err := ts.Next(ctx)
	var usageErr *UsageError
	if err == nil {
		t.Fatal("Next() error = nil, want UsageError")
	}
	if !errors.As(err, &usageErr) {
		t.Fatalf("Next() error = %v, want *UsageError", err)
	}
}

func TestTurnHandle_SecondExecuteIsObsoleted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"action":         "waiting",
			"activities":     []map[string]any{},
			"conversationId": "conv-2",
		})
	}))
	defer server.Close()

	base, _ := url.Parse(server.URL)
	e := New(staticStrategy(t, base))
	ctx := context.Background()

	_, handle := drain(t, ctx, e.StartNewConversation(ctx, false))
	if _, err := handle.Execute(ctx, Activity{"type": "message"}); err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	_, err := handle.Execute(ctx, Activity{"type": "message"})
	if err == nil || err.Error() != obsoletedMessage {
		t.Fatalf("second Execute() error = %v, want %q", err, obsoletedMessage)
	}
}

func TestRESTStream_4xxIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not found"))
	}))
	defer server.Close()

	base, _ := url.Parse(server.URL)
	e := New(staticStrategy(t, base))
	ctx := context.Background()

	_, err := e.StartNewConversation(ctx, false).Next(ctx)
	if err == nil {
		t.Fatal("Next() error = nil, want *StatusError")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Next() error = %v, want *StatusError", err)
	}
	if statusErr.Status != http.StatusNotFound {
		t.Fatalf("Status = %d, want 404", statusErr.Status)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, want 1 (a 404 must not be retried)", got)
	}
}

func TestRESTStream_UnrecognizedActionIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"action": "sleeping", "activities": []map[string]any{}})
	}))
	defer server.Close()

	base, _ := url.Parse(server.URL)
	e := New(staticStrategy(t, base))
	ctx := context.Background()

	_, err := e.StartNewConversation(ctx, false).Next(ctx)
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("Next() error = %v, want *ProtocolError", err)
	}
}
