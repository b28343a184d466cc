package repository

import (
	"context"
	"errors"
	"fmt"

	"gamesync/internal/models"

	"gorm.io/gorm"
)

/*
LEARNING: SNAPSHOT PERSISTENCE

Query patterns:
- StoreSnapshot: Append an accepted state
- GetLatestSnapshot: Resume after restart
- ListSnapshots: Inspect recent history (newest first)
- Prune: Keep the journal bounded
*/

// SnapshotRepositoryImpl handles game snapshot storage
type SnapshotRepositoryImpl struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepositoryImpl {
	return &SnapshotRepositoryImpl{db: db}
}

// StoreSnapshot appends a snapshot for a game
func (r *SnapshotRepositoryImpl) StoreSnapshot(ctx context.Context, gameID string, source models.SnapshotSource, snap *models.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("failed to store snapshot: nil snapshot")
	}

	row := &models.GameSnapshot{
		GameID:       gameID,
		Source:       source,
		LastModified: snap.LastModified,
		Payload:      snap.Raw,
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	return nil
}

// GetLatestSnapshot gets the most recent snapshot for a game.
// Returns nil, nil when the game has no rows yet.
func (r *SnapshotRepositoryImpl) GetLatestSnapshot(ctx context.Context, gameID string) (*models.Snapshot, error) {
	var row models.GameSnapshot

	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("created_at DESC, id DESC").
		First(&row).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return &models.Snapshot{LastModified: row.LastModified, Raw: row.Payload}, nil
}

// ListSnapshots returns up to limit rows for a game, newest first
func (r *SnapshotRepositoryImpl) ListSnapshots(ctx context.Context, gameID string, limit int) ([]*models.GameSnapshot, error) {
	var rows []*models.GameSnapshot

	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	return rows, nil
}

// Prune removes all but the newest keepCount snapshots of a game
func (r *SnapshotRepositoryImpl) Prune(ctx context.Context, gameID string, keepCount int) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.GameSnapshot{}).
		Where("game_id = ?", gameID).
		Count(&count).Error; err != nil {
		return err
	}

	if count <= int64(keepCount) {
		return nil // Nothing to delete
	}

	// Oldest row that survives. KSUID ids break created_at ties.
	var cutoff models.GameSnapshot
	offset := count - int64(keepCount)
	if err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("created_at ASC, id ASC").
		Offset(int(offset)).
		First(&cutoff).Error; err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Where("game_id = ? AND (created_at < ? OR (created_at = ? AND id < ?))",
			gameID, cutoff.CreatedAt, cutoff.CreatedAt, cutoff.ID).
		Delete(&models.GameSnapshot{})

	if result.Error != nil {
		return fmt.Errorf("failed to prune snapshots: %w", result.Error)
	}

	return nil
}
