// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pva

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/microsoft/power-virtual-agents-sdk/internal/retry"
	"github.com/microsoft/power-virtual-agents-sdk/internal/wireenc"
)

// maxRESTTurnIterations is the defensive cap from spec §4.3 step 1: a
// server that never stops returning "continue" silently terminates the
// turn rather than looping forever.
const maxRESTTurnIterations = 1000

// restStream drives C3: a single logical turn made of one or more POST
// exchanges against the same conversation, following the server's
// "continue"/"waiting" action field.
type restStream struct {
	engine  *Engine
	prep    RequestPrep
	body    map[string]any
	adoptID func(string)

	conversationID string
	withBody       bool
	ended          bool
	iterations     int
	pending        []Activity
}

func (e *Engine) newRESTStream(prep RequestPrep, body map[string]any, conversationID string, adoptID func(string)) *restStream {
	return &restStream{
		engine:         e,
		prep:           prep,
		body:           body,
		adoptID:        adoptID,
		conversationID: conversationID,
		withBody:       true,
	}
}

func (s *restStream) Next(ctx context.Context) (Activity, error) {
	for {
		if len(s.pending) > 0 {
			a := s.pending[0]
			s.pending = s.pending[1:]
			return a, nil
		}
		if s.ended {
			return nil, io.EOF
		}
		if err := s.step(ctx); err != nil {
			s.ended = true
			return nil, err
		}
	}
}

func (s *restStream) step(ctx context.Context) error {
	s.iterations++
	if s.iterations > maxRESTTurnIterations {
		s.ended = true
		return nil
	}

	u, err := resolveTurnURL(s.prep.BaseURL, s.conversationID)
	if err != nil {
		return err
	}

	payload := s.body
	if !s.withBody {
		payload = map[string]any{}
	}
	data, err := wireenc.Marshal(payload)
	if err != nil {
		return err
	}
	headers := buildHeaders(s.prep.Headers, "application/json", "", s.conversationID)

	var resp *http.Response
	attemptErr := s.engine.retryPolicy().Do(ctx, func() error {
		if err := s.engine.waitForRateLimit(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(data))
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		r, err := s.engine.httpClient().Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			b, _ := io.ReadAll(r.Body)
			r.Body.Close()
			return &StatusError{Status: r.StatusCode, Message: fmt.Sprintf("Server returned %d", r.StatusCode), Body: b}
		}
		resp = r
		return nil
	})
	if attemptErr != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(attemptErr, &exhausted) {
			s.engine.reportExhausted(ctx, exhausted)
			return exhausted.Err
		}
		return attemptErr
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var br botResponse
	if err := wireenc.Unmarshal(data, &br); err != nil {
		return &ProtocolError{Message: "malformed bot response", Cause: err}
	}
	if err := br.validate(); err != nil {
		return err
	}

	if br.ConversationID != "" && s.conversationID == "" {
		s.conversationID = br.ConversationID
		s.adoptID(br.ConversationID)
	}

	s.pending = append(s.pending, br.Activities...)
	s.withBody = false
	if br.Action == actionWaiting {
		s.ended = true
	}
	return nil
}
