// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package chatadapter

// ConnectionStatus is the façade-visible connection state (spec §3). The
// ordering of the constants matters: connectionStatus$ emits a strictly
// increasing prefix of this sequence, never out of order and never
// repeating a value.
type ConnectionStatus int

const (
	Uninitialized ConnectionStatus = iota
	Connecting
	Online
	ExpiredToken
	FailedToConnect
	Ended
)

func (s ConnectionStatus) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Connecting:
		return "Connecting"
	case Online:
		return "Online"
	case ExpiredToken:
		return "ExpiredToken"
	case FailedToConnect:
		return "FailedToConnect"
	case Ended:
		return "Ended"
	default:
		return "Unknown"
	}
}
