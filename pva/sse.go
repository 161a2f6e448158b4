// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pva

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/microsoft/power-virtual-agents-sdk/internal/retry"
	"github.com/microsoft/power-virtual-agents-sdk/internal/sse"
	"github.com/microsoft/power-virtual-agents-sdk/internal/wireenc"
)

// sseContentType matches spec §4.4 step 3's "^text/event-stream(;|$)".
var sseContentType = regexp.MustCompile(`^text/event-stream(;|$)`)

// sseStream drives C4: a single POST whose response body is a
// text/event-stream, yielding an Activity per "activity" event and ending
// cleanly on "end" or on premature stream closure.
type sseStream struct {
	reader  *sse.Reader
	body    io.ReadCloser
	adoptID func(string)

	conversationID string
	done           bool
}

// closingBody lets the SSE reader consume a buffered prefix of the
// response body (used to detect an empty body without losing bytes) while
// still closing the underlying http.Response.Body.
type closingBody struct {
	io.Reader
	closer io.Closer
}

func (b *closingBody) Close() error { return b.closer.Close() }

func (e *Engine) dispatchSSE(ctx context.Context, prep RequestPrep, body map[string]any, conversationID string, adoptID func(string)) (ActivityStream, error) {
	u, err := resolveTurnURL(prep.BaseURL, conversationID)
	if err != nil {
		return nil, err
	}
	payload, err := wireenc.Marshal(body)
	if err != nil {
		return nil, err
	}
	headers := buildHeaders(prep.Headers, "application/json", "text/event-stream", conversationID)

	var respBody *closingBody
	attemptErr := e.retryPolicy().Do(ctx, func() error {
		if err := e.waitForRateLimit(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		r, err := e.httpClient().Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			b, _ := io.ReadAll(r.Body)
			r.Body.Close()
			return &StatusError{Status: r.StatusCode, Message: fmt.Sprintf("Server returned %d", r.StatusCode), Body: b}
		}
		if ct := r.Header.Get("Content-Type"); !sseContentType.MatchString(ct) {
			b, _ := io.ReadAll(r.Body)
			r.Body.Close()
			// Status carried here is the actual (2xx) response status, so
			// the retry policy's short-circuit rule (status < 500) applies
			// and this shape error is never retried.
			return &StatusError{Status: r.StatusCode, Message: "Server did not respond with content type of text/event-stream", Body: b}
		}

		buffered := bufio.NewReaderSize(r.Body, 4096)
		if _, peekErr := buffered.Peek(1); peekErr != nil {
			r.Body.Close()
			return &StatusError{Status: r.StatusCode, Message: "Server did not respond with body."}
		}
		respBody = &closingBody{Reader: buffered, closer: r.Body}
		return nil
	})
	if attemptErr != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(attemptErr, &exhausted) {
			e.reportExhausted(ctx, exhausted)
			return nil, exhausted.Err
		}
		return nil, attemptErr
	}

	return &sseStream{
		reader:         sse.NewReader(respBody),
		body:           respBody,
		adoptID:        adoptID,
		conversationID: conversationID,
	}, nil
}

// Next implements ActivityStream. Errors encountered while consuming the
// body (after headers were already accepted) are never retried, per spec
// §4.4.
func (s *sseStream) Next(ctx context.Context) (Activity, error) {
	if s.done {
		return nil, io.EOF
	}
	for {
		evt, err := s.reader.Next()
		if err != nil {
			s.close()
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}
		switch evt.Name {
		case "end":
			s.close()
			return nil, io.EOF
		case "activity":
			var a Activity
			if err := wireenc.Unmarshal([]byte(evt.Data), &a); err != nil {
				s.close()
				return nil, &ProtocolError{Message: "malformed activity event", Cause: err}
			}
			if s.conversationID == "" {
				if id := a.ConversationID(); id != "" {
					s.conversationID = id
					s.adoptID(id)
				}
			}
			return a, nil
		default:
			continue
		}
	}
}

func (s *sseStream) close() {
	if !s.done {
		s.done = true
		s.body.Close()
	}
}
