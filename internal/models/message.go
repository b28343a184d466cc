package models

import (
	"encoding/json"
)

/*
LEARNING: THE COLLABORATION WIRE ENVELOPE

Every frame on the socket is a small JSON object:

	{ "type": "PLAYER_ACTION", "gameId": "abc123", "payload": {...} }

The gameId scopes the frame to one collaboration session. The payload is
opaque to the transport; only the router and reducer look inside it.
*/

// MessageType identifies the kind of frame on the wire
type MessageType string

// Outbound message types (client → server)
const (
	MessageTypeJoinGame        MessageType = "JOIN_GAME"
	MessageTypeUpdateGameState MessageType = "UPDATE_GAME_STATE"
	MessageTypePlayerAction    MessageType = "PLAYER_ACTION"
	MessageTypeExpenseAction   MessageType = "EXPENSE_ACTION"
	MessageTypeSyncRequest     MessageType = "SYNC_REQUEST"
)

// Inbound message types (server → client)
const (
	MessageTypeGameStateSync        MessageType = "GAME_STATE_SYNC"
	MessageTypeGameStateUpdated     MessageType = "GAME_STATE_UPDATED"
	MessageTypePlayerActionUpdated  MessageType = "PLAYER_ACTION_UPDATED"
	MessageTypeExpenseActionUpdated MessageType = "EXPENSE_ACTION_UPDATED"
	MessageTypeUserJoined           MessageType = "USER_JOINED"
	MessageTypeUserLeft             MessageType = "USER_LEFT"
)

// Message is the wire envelope shared by both directions
type Message struct {
	Type    MessageType     `json:"type"`
	GameID  string          `json:"gameId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IsInbound reports whether the type is one the server sends to clients
func (t MessageType) IsInbound() bool {
	switch t {
	case MessageTypeGameStateSync,
		MessageTypeGameStateUpdated,
		MessageTypePlayerActionUpdated,
		MessageTypeExpenseActionUpdated,
		MessageTypeUserJoined,
		MessageTypeUserLeft:
		return true
	default:
		return false
	}
}

// JoinPayload is carried by JOIN_GAME right after the socket opens
type JoinPayload struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId,omitempty"`
}

// PresencePayload is the object form of USER_JOINED / USER_LEFT payloads.
// Servers may also send the bare user id as a JSON string.
type PresencePayload struct {
	UserID string `json:"userId"`
}
