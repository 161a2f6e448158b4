// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package sse parses a text/event-stream body into a pull-based sequence of
// named events. It is grounded on the line-oriented bufio.Scanner streaming
// style used for SSE in both the MCP Go SDK's streamableClientConn and
// cc-relayer's Relay.streamResponse.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Event is a single Server-Sent Events message: a name (the "event:"
// field, empty if the server omitted it) and the concatenation of its
// "data:" lines.
type Event struct {
	Name string
	Data string
}

// Reader pulls one Event at a time from an underlying stream.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader returns a Reader over r. The internal line buffer grows up to
// 1MB, matching the cap cc-relayer applies to upstream SSE lines.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Next returns the next event, or io.EOF once the stream is exhausted with
// no partial event pending. A scan error is returned unwrapped.
func (r *Reader) Next() (Event, error) {
	var name string
	var data []string
	sawField := false

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if sawField {
				return Event{Name: name, Data: strings.Join(data, "\n")}, nil
			}
			continue
		}
		sawField = true
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, ":"):
			// comment line, ignore
		default:
			// ignore fields this protocol doesn't use (id:, retry:)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	if sawField {
		return Event{Name: name, Data: strings.Join(data, "\n")}, nil
	}
	return Event{}, io.EOF
}
