package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ConnectionStatus is the lifecycle state of the logical connection
type ConnectionStatus string

const (
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusError        ConnectionStatus = "error"
)

// ConflictMode selects how competing game-state updates are handled
type ConflictMode string

const (
	ConflictModeAuto   ConflictMode = "auto"
	ConflictModeManual ConflictMode = "manual"
)

// Valid reports whether m is one of the known modes
func (m ConflictMode) Valid() bool {
	return m == ConflictModeAuto || m == ConflictModeManual
}

/*
LEARNING: SNAPSHOTS CARRY THEIR OWN CLOCK

Competing game states are compared by the numeric lastModified field the
application stamps on them. We keep the raw JSON next to the parsed
timestamp so the payload round-trips byte-for-byte to the application.

A payload without lastModified decodes with LastModified == 0.
*/

// Snapshot is one version of the shared game state
type Snapshot struct {
	LastModified int64           `json:"lastModified"`
	Raw          json.RawMessage `json:"-"`
}

// ParseSnapshot extracts the modification timestamp from a game-state payload
func ParseSnapshot(raw json.RawMessage) (*Snapshot, error) {
	var header struct {
		LastModified json.Number `json:"lastModified"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, err
	}

	snap := &Snapshot{Raw: append(json.RawMessage(nil), raw...)}
	if header.LastModified != "" {
		if n, err := header.LastModified.Int64(); err == nil {
			snap.LastModified = n
		} else {
			f, err := header.LastModified.Float64()
			// 2^63 itself does not fit, hence the strict upper bound
			if err != nil || f < math.MinInt64 || f >= math.MaxInt64 {
				return nil, fmt.Errorf("lastModified %s is out of range", header.LastModified)
			}
			snap.LastModified = int64(f)
		}
	}
	return snap, nil
}

// MarshalJSON emits the original payload unchanged
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	if len(s.Raw) == 0 {
		return []byte("null"), nil
	}
	return s.Raw, nil
}

// Conflict is a competing update waiting for an external decision
type Conflict struct {
	ID         string    `json:"id"`
	Local      *Snapshot `json:"local"`
	Remote     *Snapshot `json:"remote"`
	DetectedAt time.Time `json:"detected_at"`
}
