// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package wireenc is the module's single JSON codec boundary, mirroring
// the MCP Go SDK's internal/json wrapper package but backed by
// segmentio/encoding/json — the faster, encoding/json-API-compatible
// codec the SDK's own go.mod already pulls in as an indirect dependency of
// jsonschema-go. Every activity, bot response, and request body on the
// wire goes through here.
package wireenc

import "github.com/segmentio/encoding/json"

func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
