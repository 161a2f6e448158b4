// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package pva implements the half-duplex, turn-based conversation protocol
// used by Power Virtual Agents direct-to-engine channels.
//
// A caller starts a conversation with [Engine.StartNewConversation], pulls
// the returned [TurnStream] until it reports the turn is done, and uses the
// [TurnHandle] yielded at that point to post the next user [Activity] and
// obtain the following turn's stream. Each handle is single-use: posting
// through an already-used handle is a usage error.
//
// The engine transparently selects between a polling REST transport and a
// Server-Sent Events transport per [Strategy.PrepareStartNewConversation] /
// [Strategy.PrepareExecuteTurn], and retries transient transport failures
// with bounded exponential backoff.
package pva
