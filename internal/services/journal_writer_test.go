package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gamesync/internal/models"
)

type storeCall struct {
	op     string
	gameID string
	ts     int64
	keep   int
}

// memoryStore records calls; gate, when set, blocks every call until closed
type memoryStore struct {
	mu     sync.Mutex
	calls  []storeCall
	latest *models.Snapshot
	gate   chan struct{}
	err    error
}

func (s *memoryStore) wait() {
	if s.gate != nil {
		<-s.gate
	}
}

func (s *memoryStore) StoreSnapshot(ctx context.Context, gameID string, source models.SnapshotSource, snap *models.Snapshot) error {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, storeCall{op: "store", gameID: gameID, ts: snap.LastModified})
	s.latest = snap
	return s.err
}

func (s *memoryStore) GetLatestSnapshot(ctx context.Context, gameID string) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, nil
}

func (s *memoryStore) Prune(ctx context.Context, gameID string, keepCount int) error {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, storeCall{op: "prune", gameID: gameID, keep: keepCount})
	return nil
}

func (s *memoryStore) snapshot() []storeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storeCall(nil), s.calls...)
}

func snapAt(ts int64) *models.Snapshot {
	return &models.Snapshot{LastModified: ts, Raw: []byte(fmt.Sprintf(`{"lastModified":%d}`, ts))}
}

func TestJournalWriter_PreservesOrder(t *testing.T) {
	store := &memoryStore{}
	w := NewJournalWriter(store, 16, time.Second)
	w.Start()

	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		if err := w.StoreSnapshot(ctx, "game-1", models.SourceRemote, snapAt(i)); err != nil {
			t.Fatalf("StoreSnapshot failed: %v", err)
		}
	}
	if err := w.Prune(ctx, "game-1", 3); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	w.Shutdown()

	calls := store.snapshot()
	if len(calls) != 6 {
		t.Fatalf("Expected 6 calls, got %d", len(calls))
	}
	for i := 0; i < 5; i++ {
		if calls[i].op != "store" || calls[i].ts != int64(i+1) {
			t.Errorf("Call %d: expected store of %d, got %+v", i, i+1, calls[i])
		}
	}
	if calls[5].op != "prune" || calls[5].keep != 3 {
		t.Errorf("Expected prune last, got %+v", calls[5])
	}
}

func TestJournalWriter_ShutdownDrainsQueue(t *testing.T) {
	store := &memoryStore{gate: make(chan struct{})}
	w := NewJournalWriter(store, 8, time.Second)
	w.Start()

	for i := int64(1); i <= 4; i++ {
		w.StoreSnapshot(context.Background(), "game-1", models.SourceSync, snapAt(i))
	}

	done := make(chan struct{})
	go func() {
		w.Shutdown()
		close(done)
	}()

	close(store.gate)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return")
	}

	if got := len(store.snapshot()); got != 4 {
		t.Errorf("Expected all 4 queued writes to land, got %d", got)
	}
	if w.QueueLength() != 0 {
		t.Errorf("Expected empty queue, got %d", w.QueueLength())
	}
}

func TestJournalWriter_RejectsAfterShutdown(t *testing.T) {
	w := NewJournalWriter(&memoryStore{}, 4, time.Second)
	w.Start()
	w.Shutdown()

	err := w.StoreSnapshot(context.Background(), "game-1", models.SourceLocal, snapAt(1))
	if !errors.Is(err, ErrWriterStopped) {
		t.Errorf("Expected ErrWriterStopped, got %v", err)
	}
}

func TestJournalWriter_FullQueueRespectsContext(t *testing.T) {
	// Not started: nothing drains the queue
	w := NewJournalWriter(&memoryStore{}, 1, time.Second)

	if err := w.StoreSnapshot(context.Background(), "game-1", models.SourceLocal, snapAt(1)); err != nil {
		t.Fatalf("First write should fit in the queue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := w.StoreSnapshot(ctx, "game-1", models.SourceLocal, snapAt(2))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error on a full queue, got %v", err)
	}
	if w.QueueLength() != 1 {
		t.Errorf("Expected one queued job, got %d", w.QueueLength())
	}
}

func TestJournalWriter_StoreErrorsAreLogged(t *testing.T) {
	store := &memoryStore{err: errors.New("db down")}
	w := NewJournalWriter(store, 4, time.Second)
	w.Start()

	if err := w.StoreSnapshot(context.Background(), "game-1", models.SourceLocal, snapAt(1)); err != nil {
		t.Errorf("Queueing should succeed even if the store later fails: %v", err)
	}
	w.Shutdown()

	if len(store.snapshot()) != 1 {
		t.Error("Expected the failed write to be attempted")
	}
}

func TestJournalWriter_GetLatestReadsStore(t *testing.T) {
	store := &memoryStore{latest: snapAt(42)}
	w := NewJournalWriter(store, 4, time.Second)

	snap, err := w.GetLatestSnapshot(context.Background(), "game-1")
	if err != nil || snap == nil || snap.LastModified != 42 {
		t.Errorf("Expected snapshot 42, got %+v (%v)", snap, err)
	}
}
