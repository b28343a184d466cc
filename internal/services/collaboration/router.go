package collaboration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gamesync/internal/models"
)

// MessageRouter maps frames to reducer actions and API calls to frames.
// Both directions are pure; only ConnectionManager does I/O.
type MessageRouter struct {
	gameID string
}

// NewMessageRouter creates a router scoped to one game
func NewMessageRouter(gameID string) *MessageRouter {
	return &MessageRouter{gameID: gameID}
}

// Route decodes an inbound frame into the action it triggers
func (r *MessageRouter) Route(data []byte) (models.MessageType, Action, error) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Type == "" {
		return "", nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	if msg.GameID != "" && r.gameID != "" && msg.GameID != r.gameID {
		return msg.Type, nil, fmt.Errorf("%w: %s", ErrGameMismatch, msg.GameID)
	}

	switch msg.Type {
	case models.MessageTypeGameStateSync:
		if isEmptyPayload(msg.Payload) {
			return msg.Type, GameStateSynced{}, nil
		}
		snap, err := models.ParseSnapshot(msg.Payload)
		if err != nil {
			return msg.Type, nil, fmt.Errorf("%w: game state: %v", ErrMalformedMessage, err)
		}
		return msg.Type, GameStateSynced{State: snap}, nil

	case models.MessageTypeGameStateUpdated:
		snap, err := models.ParseSnapshot(msg.Payload)
		if err != nil {
			return msg.Type, nil, fmt.Errorf("%w: game state: %v", ErrMalformedMessage, err)
		}
		return msg.Type, GameStateUpdated{Remote: snap}, nil

	case models.MessageTypePlayerActionUpdated:
		return msg.Type, PlayerActionReceived{Payload: cloneRaw(msg.Payload)}, nil

	case models.MessageTypeExpenseActionUpdated:
		return msg.Type, ExpenseActionReceived{Payload: cloneRaw(msg.Payload)}, nil

	case models.MessageTypeUserJoined:
		userID, err := presenceUserID(msg.Payload)
		if err != nil {
			return msg.Type, nil, err
		}
		return msg.Type, UserJoined{UserID: userID}, nil

	case models.MessageTypeUserLeft:
		userID, err := presenceUserID(msg.Payload)
		if err != nil {
			return msg.Type, nil, err
		}
		return msg.Type, UserLeft{UserID: userID}, nil

	default:
		return msg.Type, nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}
}

// GameState builds UPDATE_GAME_STATE
func (r *MessageRouter) GameState(state any) (models.Message, error) {
	return newOutbound(models.MessageTypeUpdateGameState, r.gameID, state)
}

// PlayerAction builds PLAYER_ACTION
func (r *MessageRouter) PlayerAction(action any) (models.Message, error) {
	return newOutbound(models.MessageTypePlayerAction, r.gameID, action)
}

// ExpenseAction builds EXPENSE_ACTION
func (r *MessageRouter) ExpenseAction(action any) (models.Message, error) {
	return newOutbound(models.MessageTypeExpenseAction, r.gameID, action)
}

// SyncRequest builds SYNC_REQUEST
func (r *MessageRouter) SyncRequest() (models.Message, error) {
	return newOutbound(models.MessageTypeSyncRequest, r.gameID, nil)
}

// newOutbound wraps a payload in the envelope. Pre-encoded JSON is passed
// through untouched; a nil payload is omitted.
func newOutbound(t models.MessageType, gameID string, payload any) (models.Message, error) {
	msg := models.Message{Type: t, GameID: gameID}
	if payload == nil {
		return msg, nil
	}

	switch p := payload.(type) {
	case json.RawMessage:
		if !json.Valid(p) {
			return msg, fmt.Errorf("%w: %s payload is not valid JSON", ErrMalformedMessage, t)
		}
		msg.Payload = cloneRaw(p)
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return msg, fmt.Errorf("failed to encode %s payload: %w", t, err)
		}
		msg.Payload = data
	}
	return msg, nil
}

// presenceUserID accepts either "user-1" or {"userId": "user-1"}
func presenceUserID(payload json.RawMessage) (string, error) {
	if isEmptyPayload(payload) {
		return "", ErrMissingUserID
	}
	trimmed := bytes.TrimSpace(payload)

	var id string
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
	} else {
		var p models.PresencePayload
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		id = p.UserID
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrMissingUserID
	}
	return id, nil
}

func isEmptyPayload(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
