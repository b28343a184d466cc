package models

import (
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

/*
LEARNING: SNAPSHOT JOURNAL

Every game state the session accepts is appended to a journal row.

Why persist snapshots?
- A restarted client resumes from the last accepted state instead of empty
- Conflict decisions leave an audit trail (which side won, and when)
- Support can replay how a shared game evolved

Flow:
  Frame arrives → Reducer accepts a state → Session appends a row
  → Next start: Restore() seeds the local state from the newest row
*/

// SnapshotSource records why a snapshot was journaled
type SnapshotSource string

const (
	SourceSync     SnapshotSource = "sync"     // GAME_STATE_SYNC from the server
	SourceRemote   SnapshotSource = "remote"   // remote update won auto-resolution
	SourceLocal    SnapshotSource = "local"    // local broadcast
	SourceResolved SnapshotSource = "resolved" // manual resolution
)

// GameSnapshot stores a single accepted game state
type GameSnapshot struct {
	ID           string         `gorm:"type:varchar(27);primaryKey" json:"id"`
	GameID       string         `gorm:"type:varchar(128);not null;index:idx_game_time" json:"game_id"`
	Source       SnapshotSource `gorm:"type:varchar(16);not null" json:"source"`
	LastModified int64          `gorm:"not null" json:"last_modified"`
	Payload      []byte         `gorm:"type:bytea;not null" json:"-"`
	CreatedAt    time.Time      `gorm:"index:idx_game_time" json:"created_at"`
}

// BeforeCreate generates KSUID
func (g *GameSnapshot) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = nextSnapshotID()
	}
	return nil
}

var (
	snapshotIDMu   sync.Mutex
	lastSnapshotID ksuid.KSUID
)

// nextSnapshotID returns a KSUID strictly greater than any issued before it.
// Plain KSUIDs only order by second, and rows in the same second tie on created_at.
func nextSnapshotID() string {
	snapshotIDMu.Lock()
	defer snapshotIDMu.Unlock()

	id := ksuid.New()
	if ksuid.Compare(id, lastSnapshotID) <= 0 {
		id = lastSnapshotID.Next()
	}
	lastSnapshotID = id
	return id.String()
}

// TableName override
func (GameSnapshot) TableName() string {
	return "game_snapshots"
}
