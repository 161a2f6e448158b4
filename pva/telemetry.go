// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pva

import (
	"context"
	"strconv"
)

// TelemetryClient is the narrow capability the engine uses to report a
// handled exception. It is passed in by dependency injection
// ([WithTelemetry]); a nil or unconfigured client silently disables
// reporting, matching spec §9's design notes.
type TelemetryClient interface {
	TrackException(ctx context.Context, err error, tags map[string]string)
}

type noopTelemetry struct{}

func (noopTelemetry) TrackException(context.Context, error, map[string]string) {}

// retryExhaustedTags builds the tag set spec §7 mandates for a
// retry-exhausted failure. The handledAt tag name is preserved verbatim
// for compatibility even though, per spec §9 Q3, "withRetries" arguably
// undersells what's being reported: any exhausted-retry failure, not just
// ones the retry layer itself resolved.
func retryExhaustedTags(attempts int) map[string]string {
	return map[string]string{
		"handledAt":  "withRetries",
		"retryCount": strconv.Itoa(attempts),
	}
}
