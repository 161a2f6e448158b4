// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pva

// Activity is an opaque message-like record exchanged between the user and
// the bot. The engine only inspects conversation.id, type, and from.id; all
// other fields pass through unmodified, so Activity is kept as a decoded
// JSON object rather than a fixed struct.
type Activity map[string]any

// Type returns the activity's "type" field, or "" if absent.
func (a Activity) Type() string {
	s, _ := a["type"].(string)
	return s
}

// ConversationID returns the activity's "conversation.id" field, or "" if
// absent.
func (a Activity) ConversationID() string {
	conv, ok := a["conversation"].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := conv["id"].(string)
	return id
}

// FromID returns the activity's "from.id" field, or "" if absent.
func (a Activity) FromID() string {
	from, ok := a["from"].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := from["id"].(string)
	return id
}

// botResponse is the REST-transport response envelope described in spec
// §3/§6.1: an action telling the loop whether to continue, the activities
// produced by this hop, and an optional conversation id (only present on
// the first hop of a conversation).
type botResponse struct {
	Action         string     `json:"action"`
	Activities     []Activity `json:"activities"`
	ConversationID string     `json:"conversationId,omitempty"`
}

const (
	actionContinue = "continue"
	actionWaiting  = "waiting"
)

// validate rejects a bot response shape the engine cannot act on: an empty
// or unrecognized action is treated as a protocol error rather than guessed
// at, per SPEC_FULL.md's resolution of the parseBotResponse strictness
// question.
func (r botResponse) validate() error {
	if r.Action != actionContinue && r.Action != actionWaiting {
		return &ProtocolError{Message: "bot response has unrecognized action " + quote(r.Action)}
	}
	return nil
}

func quote(s string) string {
	return "\"" + s + "\""
}
