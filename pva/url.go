// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pva

import (
	"net/url"

	"github.com/yosida95/uritemplate/v3"
)

// turnPath is the RFC 6570 template for a turn's path component (spec
// §4.3 step 2: "conversations/{conversationId-or-empty}"). Expanding with
// an empty conversationId intentionally yields a trailing slash
// ("conversations/"), matching the wire protocol described in spec §6.1.
var turnPath = uritemplate.MustNew("conversations/{conversationId}")

// resolveTurnURL builds the URL for one HTTP hop: the templated
// conversations path resolved relative to base, with base's query and
// fragment copied over verbatim (spec §6.4), overwriting whatever the
// relative resolution produced.
func resolveTurnURL(base *url.URL, conversationID string) (*url.URL, error) {
	rel, err := turnPath.Expand(uritemplate.Values{
		"conversationId": uritemplate.String(conversationID),
	})
	if err != nil {
		return nil, err
	}
	u, err := base.Parse(rel)
	if err != nil {
		return nil, err
	}
	u.RawQuery = base.RawQuery
	u.Fragment = base.Fragment
	return u, nil
}

// buildHeaders merges strategy-supplied headers with the protocol-mandated
// ones. conversationID is only attached once it is known (spec's
// invariant: "the very first request in a conversation's lifetime has no
// x-ms-conversationid header").
func buildHeaders(strategyHeaders map[string]string, contentType string, accept string, conversationID string) map[string]string {
	h := make(map[string]string, len(strategyHeaders)+3)
	for k, v := range strategyHeaders {
		h[k] = v
	}
	if contentType != "" {
		h["content-type"] = contentType
	}
	if accept != "" {
		h["accept"] = accept
	}
	if conversationID != "" {
		h["x-ms-conversationid"] = conversationID
	}
	return h
}
