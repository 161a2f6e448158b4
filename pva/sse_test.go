// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pva

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sseStrategy(t *testing.T, base *url.URL) Strategy {
	t.Helper()
	return &StaticStrategy{
		Start: func(context.Context) (RequestPrep, error) {
			return RequestPrep{BaseURL: base, Transport: TransportSSE}, nil
		},
		Execute: func(context.Context) (RequestPrep, error) {
			return RequestPrep{BaseURL: base, Transport: TransportSSE}, nil
		},
	}
}

func TestSSEStream_ActivitiesThenEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		w.Write([]byte("event: activity\ndata: {\"type\":\"typing\"}\n\n"))
		flusher.Flush()
		w.Write([]byte("event: activity\ndata: {\"type\":\"message\",\"text\":\"hi\",\"conversation\":{\"id\":\"conv-sse\"}}\n\n"))
		flusher.Flush()
		w.Write([]byte("event: end\ndata:\n\n"))
		flusher.Flush()
	}))
	defer server.Close()

	base, _ := url.Parse(server.URL)
	e := New(sseStrategy(t, base))
	ctx := context.Background()

	got, handle := drain(t, ctx, e.StartNewConversation(ctx, false))
	want := []Activity{
		{"type": "typing"},
		{"type": "message", "text": "hi", "conversation": map[string]any{"id": "conv-sse"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("activities mismatch (-want +got):\n%s", diff)
	}
	if handle == nil {
		t.Fatal("handle = nil")
	}
	if got, want := e.ConversationID(), "conv-sse"; got != want {
		t.Fatalf("ConversationID() = %q, want %q", got, want)
	}
}

func TestSSEStream_WrongContentTypeIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	base, _ := url.Parse(server.URL)
	e := New(sseStrategy(t, base))
	ctx := context.Background()

	_, err := e.StartNewConversation(ctx, false).Next(ctx)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Next() error = %v, want *StatusError", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestSSEStream_EmptyBodyIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	base, _ := url.Parse(server.URL)
	e := New(sseStrategy(t, base))
	ctx := context.Background()

	_, err := e.StartNewConversation(ctx, false).Next(ctx)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Next() error = %v, want *StatusError", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestSSEStream_MidStreamCloseEndsWithoutError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		w.Write([]byte("event: activity\ndata: {\"type\":\"message\"}\n\n"))
		flusher.Flush()
		// connection closes here without an "end" event.
	}))
	defer server.Close()

	base, _ := url.Parse(server.URL)
	e := New(sseStrategy(t, base))
	ctx := context.Background()

	_, handle := drain(t, ctx, e.StartNewConversation(ctx, false))
	if handle == nil {
		t.Fatal("handle = nil, want a usable handle on premature close (spec: io.EOF ends the turn cleanly)")
	}
}
