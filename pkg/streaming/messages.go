// Package streaming defines the JSON messages exchanged over the swarm
// WebSocket.
package streaming

import (
	"encoding/json"
)

// Message type constants for the streaming protocol.
const (
	// server -> client
	TypeState = "state"
	TypeAck   = "ack"
	TypeError = "error"
	TypePing  = "ping"

	// client -> server
	TypeCommand   = "command"
	TypeSubscribe = "subscribe"
)

// Envelope wraps all messages sent over the WebSocket. Kind names the
// command kind of a TypeCommand message; ID is chosen by the client and
// echoed in the reply.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the server's reply to an accepted command.
type AckMessage struct {
	Type      string `json:"type"` // always "ack"
	For       string `json:"for"`  // the client message id being acknowledged
	Kind      string `json:"kind"`
	CommandID string `json:"command_id,omitempty"`
}

// ErrorMessage is the server's reply to a rejected message.
type ErrorMessage struct {
	Type   string `json:"type"` // always "error"
	For    string `json:"for,omitempty"`
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// SubscribePayload toggles periodic state pushes for one connection.
type SubscribePayload struct {
	State bool `json:"state"`
}
