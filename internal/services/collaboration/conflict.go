package collaboration

import "gamesync/internal/models"

// ResolveConflict picks the winner of two competing snapshots: remote wins
// only when strictly newer, so ties keep local. A missing side loses.
//
// Both snapshots are expected to carry lastModified; a payload without it
// parses as 0 and therefore never beats a stamped one.
func ResolveConflict(local, remote *models.Snapshot) *models.Snapshot {
	if local == nil {
		return remote
	}
	if remote == nil {
		return local
	}
	if remote.LastModified > local.LastModified {
		return remote
	}
	return local
}
