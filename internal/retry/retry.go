// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry implements the bounded exponential-backoff retry policy
// shared by the REST and SSE turn loops, grounded on the
// streamableClientConn backoff logic of the MCP Go SDK's streamable HTTP
// client transport.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// StatusCoder is implemented by errors that carry an HTTP status code. The
// policy short-circuits on any error whose code is < 500: such a response
// indicates a client-side problem that retrying cannot fix.
type StatusCoder interface {
	StatusCode() int
}

// Policy is a bounded exponential-backoff retry policy.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Defaults to 5 (4 retries) if <= 0.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt. Zero is a
	// legal value (used by tests) and disables the delay entirely.
	InitialBackoff time.Duration
	// Multiplier scales the backoff after each failed attempt. Defaults to
	// 2 if <= 0.
	Multiplier float64
	// MaxBackoff caps the computed delay. Zero means uncapped.
	MaxBackoff time.Duration
	// Rand supplies jitter; if nil, no jitter is applied.
	Rand *rand.Rand
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return 5
	}
	return p.MaxAttempts
}

func (p Policy) multiplier() float64 {
	if p.Multiplier <= 0 {
		return 2
	}
	return p.Multiplier
}

// ExhaustedError wraps the last error from a Do call whose attempts were
// exhausted by repeated retryable failures, as opposed to a short-circuited
// non-retryable failure. Callers use errors.As to tell the two apart, e.g.
// to decide whether a retry-exhausted telemetry event should be reported.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string { return e.Err.Error() }
func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do runs attempt up to p.maxAttempts times. It returns nil as soon as
// attempt succeeds. If attempt fails with an error implementing StatusCoder
// whose StatusCode() is < 500, Do returns that error immediately without
// retrying. Otherwise Do retries with exponential backoff until attempts
// are exhausted, at which point it returns an *ExhaustedError wrapping the
// last failure.
func (p Policy) Do(ctx context.Context, attempt func() error) error {
	max := p.maxAttempts()
	backoff := p.InitialBackoff

	var lastErr error
	for i := 0; i < max; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err

		var sc StatusCoder
		if errors.As(err, &sc) && sc.StatusCode() < 500 {
			return err
		}

		if i == max-1 {
			break
		}

		delay := backoff
		if p.Rand != nil && delay > 0 {
			delay += time.Duration(p.Rand.Int63n(int64(delay)/2 + 1))
		}
		if p.MaxBackoff > 0 && delay > p.MaxBackoff {
			delay = p.MaxBackoff
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		backoff = time.Duration(float64(backoff) * p.multiplier())
		if backoff == 0 {
			// A zero initial backoff stays zero through every retry
			// (tests rely on this to run with no delay at all).
			backoff = 0
		}
	}
	return &ExhaustedError{Attempts: max, Err: lastErr}
}
