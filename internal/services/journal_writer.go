package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gamesync/internal/models"
)

/*
LEARNING: BACKGROUND WRITER PATTERN

Inbound frames are applied on the connection's read goroutine. A slow
database must not stall that goroutine, so journal writes are queued and a
background worker performs them.

Key Concepts:
1. **Buffered channel**: the queue between the session and the database
2. **Single worker**: writes land in the order they were accepted, so the
   newest row is always the newest accepted state
3. **Backpressure**: a full queue blocks the caller until its context expires
4. **Graceful Shutdown**: queued jobs are drained before Shutdown returns
*/

// ErrWriterStopped is returned once Shutdown has been called
var ErrWriterStopped = errors.New("journal writer is shutting down")

type journalJobKind int

const (
	jobStore journalJobKind = iota
	jobPrune
)

// journalJob is one queued write
type journalJob struct {
	kind   journalJobKind
	gameID string
	source models.SnapshotSource
	snap   *models.Snapshot
	keep   int
}

// JournalWriter queues snapshot writes for a single background worker.
// It satisfies collaboration.Journal.
type JournalWriter struct {
	store        SnapshotStore // Interface from this package (consumer-driven!)
	writeTimeout time.Duration

	jobs     chan journalJob
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	startOne sync.Once
}

// NewJournalWriter creates the writer but doesn't start it yet
func NewJournalWriter(store SnapshotStore, queueSize int, writeTimeout time.Duration) *JournalWriter {
	if queueSize <= 0 {
		queueSize = 1
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &JournalWriter{
		store:        store,
		writeTimeout: writeTimeout,
		jobs:         make(chan journalJob, queueSize),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the worker goroutine
func (w *JournalWriter) Start() {
	w.startOne.Do(func() {
		w.wg.Add(1)
		go w.worker()
		log.Printf("✓ Journal writer started (queue %d)", cap(w.jobs))
	})
}

func (w *JournalWriter) worker() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			// Drain what was accepted before shutdown
			for {
				select {
				case job := <-w.jobs:
					w.process(job)
				default:
					return
				}
			}

		case job := <-w.jobs:
			w.process(job)
		}
	}
}

func (w *JournalWriter) process(job journalJob) {
	ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
	defer cancel()

	var err error
	switch job.kind {
	case jobStore:
		err = w.store.StoreSnapshot(ctx, job.gameID, job.source, job.snap)
	case jobPrune:
		err = w.store.Prune(ctx, job.gameID, job.keep)
	}
	if err != nil {
		log.Printf("  Journal writer error for game %s: %v", job.gameID, err)
	}
}

// submit adds a job to the queue
// Learning: Non-blocking if the queue has space, blocks if full (backpressure)
func (w *JournalWriter) submit(ctx context.Context, job journalJob) error {
	if w.ctx.Err() != nil {
		return ErrWriterStopped
	}

	select {
	case w.jobs <- job:
		return nil
	case <-w.ctx.Done():
		return ErrWriterStopped
	case <-ctx.Done():
		return fmt.Errorf("journal queue full: %w", ctx.Err())
	}
}

// StoreSnapshot queues snap for writing
func (w *JournalWriter) StoreSnapshot(ctx context.Context, gameID string, source models.SnapshotSource, snap *models.Snapshot) error {
	if snap == nil {
		return nil
	}
	return w.submit(ctx, journalJob{kind: jobStore, gameID: gameID, source: source, snap: snap})
}

// Prune queues a trim behind the writes already accepted
func (w *JournalWriter) Prune(ctx context.Context, gameID string, keepCount int) error {
	return w.submit(ctx, journalJob{kind: jobPrune, gameID: gameID, keep: keepCount})
}

// GetLatestSnapshot reads straight from the store. Writes still queued are
// not visible.
func (w *JournalWriter) GetLatestSnapshot(ctx context.Context, gameID string) (*models.Snapshot, error) {
	return w.store.GetLatestSnapshot(ctx, gameID)
}

// Shutdown stops accepting writes and waits for the queue to drain
func (w *JournalWriter) Shutdown() {
	log.Println("🛑 Shutting down journal writer...")

	w.cancel()
	w.wg.Wait()

	log.Println("✓ Journal writer shutdown complete")
}

// QueueLength returns current number of pending writes
func (w *JournalWriter) QueueLength() int {
	return len(w.jobs)
}
