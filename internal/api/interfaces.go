package api

import (
	"context"

	"gamesync/internal/models"
	"gamesync/internal/services/collaboration"
)

/*
LEARNING: CONSUMER-DRIVEN INTERFACES (Go Idiom)

This package (api/handlers) is the CONSUMER of the collaboration session, so
the interface lives HERE.

The handler only declares the methods it calls. *collaboration.Session
satisfies it, and tests swap in a mock without dialing anything.
*/

// SessionService defines what handlers need from a collaboration session
type SessionService interface {
	GameID() string
	Connect()
	Disconnect()
	Leave()
	Enabled() bool
	ReconnectAttempts() int

	State() collaboration.State
	Subscribe(fn func(collaboration.State)) func()

	SetOnline(online bool)
	SetConflictMode(mode models.ConflictMode) error
	ResolvePendingConflict(keepRemote bool) error

	BroadcastGameState(state any) bool
	SendPlayerAction(action any) bool
	SendExpenseAction(action any) bool
	RequestSync() bool

	AddEditor(email string) bool
	RemoveEditor(email string) bool
	GenerateInviteLink(sessionID string) string
}

// HistoryService lists journaled snapshots for GET /api/history
type HistoryService interface {
	ListSnapshots(ctx context.Context, gameID string, limit int) ([]*models.GameSnapshot, error)
}

var _ SessionService = (*collaboration.Session)(nil)
