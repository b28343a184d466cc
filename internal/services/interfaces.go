package services

import (
	"context"

	"gamesync/internal/models"
)

/*
LEARNING: GO INTERFACE BEST PRACTICE

"Accept interfaces, return structs" - Rob Pike

Interfaces are defined where they are USED, not where implemented.

This package (services) is the CONSUMER of the snapshot repository, so the
interface goes here. repository.SnapshotRepositoryImpl satisfies it without
knowing it exists.
*/

// SnapshotStore defines what the journal writer needs from snapshot storage
type SnapshotStore interface {
	StoreSnapshot(ctx context.Context, gameID string, source models.SnapshotSource, snap *models.Snapshot) error
	GetLatestSnapshot(ctx context.Context, gameID string) (*models.Snapshot, error)
	Prune(ctx context.Context, gameID string, keepCount int) error
}
