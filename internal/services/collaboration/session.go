package collaboration

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"gamesync/internal/middleware"
	"gamesync/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

/*
LEARNING: SESSION AS AN EXPLICIT OBJECT

A Session is built when the application enters collaboration mode and
thrown away when it leaves. It wires the pieces together:

  App → Session.SendPlayerAction → MessageRouter → ConnectionManager → socket
  socket → ConnectionManager.readLoop → MessageRouter.Route → Store.Dispatch
        → subscribers + RemoteHandlers (+ journal)

There is no package-level state; two sessions never share anything.
*/

// Journal persists accepted game states. Implemented by
// repository.SnapshotRepositoryImpl.
type Journal interface {
	StoreSnapshot(ctx context.Context, gameID string, source models.SnapshotSource, snap *models.Snapshot) error
	GetLatestSnapshot(ctx context.Context, gameID string) (*models.Snapshot, error)
	Prune(ctx context.Context, gameID string, keepCount int) error
}

// RemoteHandlers let the application react to remote events as they are
// applied. Any field may be nil. They run on the connection's read
// goroutine and must not block for long.
type RemoteHandlers struct {
	OnGameState     func(snap *models.Snapshot)
	OnPlayerAction  func(payload json.RawMessage)
	OnExpenseAction func(payload json.RawMessage)
	OnConflict      func(conflict *models.Conflict)
	OnError         func(err error)
}

const (
	journalTimeout    = 5 * time.Second
	journalPruneEvery = 50
)

// Session is one collaboration session for one game
type Session struct {
	gameID   string
	conn     *ConnectionManager
	router   *MessageRouter
	store    *Store
	invites  *InviteManager
	handlers RemoteHandlers

	journal      Journal
	journalKeep  int
	journalMu    sync.Mutex
	journalCount int
}

type sessionOptions struct {
	dialer      Dialer
	scheduler   Scheduler
	journal     Journal
	journalKeep int
	now         func() time.Time
	handlers    RemoteHandlers
}

// Option customizes NewSession
type Option func(*sessionOptions)

// WithDialer replaces the websocket dialer
func WithDialer(d Dialer) Option {
	return func(o *sessionOptions) { o.dialer = d }
}

// WithScheduler replaces the reconnect timer source
func WithScheduler(s Scheduler) Option {
	return func(o *sessionOptions) { o.scheduler = s }
}

// WithJournal persists accepted snapshots, keeping the newest keep rows
func WithJournal(j Journal, keep int) Option {
	return func(o *sessionOptions) {
		o.journal = j
		o.journalKeep = keep
	}
}

// WithClock replaces time.Now for LastSyncTime stamps
func WithClock(now func() time.Time) Option {
	return func(o *sessionOptions) { o.now = now }
}

// WithRemoteHandlers registers application callbacks
func WithRemoteHandlers(h RemoteHandlers) Option {
	return func(o *sessionOptions) { o.handlers = h }
}

// NewSession builds a disconnected session. Call Connect to go online.
func NewSession(cfg Config, opts ...Option) *Session {
	cfg = cfg.withDefaults()

	o := sessionOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dialer == nil {
		o.dialer = NewWebSocketDialer(cfg.HandshakeTimeout, cfg.WriteTimeout)
	}
	if cfg.UserID == "" {
		cfg.UserID = uuid.NewString()
	}

	s := &Session{
		gameID:      cfg.GameID,
		router:      NewMessageRouter(cfg.GameID),
		store:       NewStore(o.now, uuid.NewString),
		invites:     NewInviteManager(cfg.InviteScheme, cfg.GameID),
		handlers:    o.handlers,
		journal:     o.journal,
		journalKeep: o.journalKeep,
	}

	s.conn = NewConnectionManager(cfg, o.dialer, o.scheduler, Handlers{
		OnMessage: s.handleMessage,
		OnStatusChange: func(status models.ConnectionStatus) {
			s.store.Dispatch(SetConnectionStatus{Status: status})
		},
		OnError: func(err error) {
			if s.handlers.OnError != nil {
				s.handlers.OnError(err)
			}
		},
	})

	return s
}

// GameID returns the game this session is scoped to
func (s *Session) GameID() string {
	return s.gameID
}

// Connect opens the connection in the background
func (s *Session) Connect() {
	s.conn.Connect()
}

// Disconnect closes the connection and stops reconnecting
func (s *Session) Disconnect() {
	s.conn.Disconnect()
}

// Leave disconnects and resets the session state
func (s *Session) Leave() {
	s.conn.Disconnect()
	s.store.Dispatch(Reset{})
	log.Printf("✓ Left collaboration for game %s", s.gameID)
}

// Disable makes the session inert and resets its state
func (s *Session) Disable() {
	s.conn.SetEnabled(false)
	s.store.Dispatch(Reset{})
}

// Enable re-arms a disabled session. It does not connect.
func (s *Session) Enable() {
	s.conn.SetEnabled(true)
}

// Enabled reports whether the session does any I/O
func (s *Session) Enabled() bool {
	return s.conn.Enabled()
}

// ReconnectAttempts returns the reconnect counter
func (s *Session) ReconnectAttempts() int {
	return s.conn.Attempts()
}

// State returns the current state snapshot
func (s *Session) State() State {
	return s.store.State()
}

// Subscribe calls fn after every state transition
func (s *Session) Subscribe(fn func(State)) func() {
	return s.store.Subscribe(fn)
}

// BroadcastGameState sends UPDATE_GAME_STATE and records the state as the
// local version used for conflict resolution
func (s *Session) BroadcastGameState(state any) bool {
	if !s.conn.Enabled() {
		return false
	}
	msg, err := s.router.GameState(state)
	if err != nil {
		log.Printf("⚠️  Not broadcasting game state: %v", err)
		return false
	}

	if snap, err := models.ParseSnapshot(msg.Payload); err == nil {
		s.store.Dispatch(LocalGameState{State: snap})
		s.record(context.Background(), models.SourceLocal, snap)
	}

	return s.conn.Send(msg)
}

// SendPlayerAction sends PLAYER_ACTION
func (s *Session) SendPlayerAction(action any) bool {
	if !s.conn.Enabled() {
		return false
	}
	msg, err := s.router.PlayerAction(action)
	if err != nil {
		log.Printf("⚠️  Not sending player action: %v", err)
		return false
	}
	return s.conn.Send(msg)
}

// SendExpenseAction sends EXPENSE_ACTION
func (s *Session) SendExpenseAction(action any) bool {
	if !s.conn.Enabled() {
		return false
	}
	msg, err := s.router.ExpenseAction(action)
	if err != nil {
		log.Printf("⚠️  Not sending expense action: %v", err)
		return false
	}
	return s.conn.Send(msg)
}

// RequestSync asks the server for a full GAME_STATE_SYNC
func (s *Session) RequestSync() bool {
	if !s.conn.Enabled() {
		return false
	}
	msg, err := s.router.SyncRequest()
	if err != nil {
		return false
	}
	return s.conn.Send(msg)
}

// SetOnline records network reachability
func (s *Session) SetOnline(online bool) {
	s.store.Dispatch(SetOnline{Online: online})
}

// SetConflictMode switches between auto and manual resolution
func (s *Session) SetConflictMode(mode models.ConflictMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidConflictMode, mode)
	}
	s.store.Dispatch(SetConflictMode{Mode: mode})
	return nil
}

// ResolvePendingConflict applies the external decision on a manual-mode
// conflict
func (s *Session) ResolvePendingConflict(keepRemote bool) error {
	if s.store.State().PendingConflict == nil {
		return ErrNoPendingConflict
	}
	_, after := s.store.Dispatch(ResolvePending{KeepRemote: keepRemote})
	if after.GameState != nil {
		s.record(context.Background(), models.SourceResolved, after.GameState)
		if s.handlers.OnGameState != nil {
			s.handlers.OnGameState(after.GameState)
		}
	}
	return nil
}

// AddEditor authorizes an editor. Invalid emails are rejected without
// changing state; duplicates are accepted silently.
func (s *Session) AddEditor(email string) bool {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return false
	}
	s.store.Dispatch(AddEditor{Email: normalized})
	return true
}

// RemoveEditor revokes an editor. Removing a non-member is a no-op.
func (s *Session) RemoveEditor(email string) bool {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return false
	}
	s.store.Dispatch(RemoveEditor{Email: normalized})
	return true
}

// GenerateInviteLink returns the deep link for sessionID, or for this
// session's game when sessionID is empty
func (s *Session) GenerateInviteLink(sessionID string) string {
	return s.invites.InviteLink(sessionID)
}

// Restore seeds the local game state from the journal
func (s *Session) Restore(ctx context.Context) error {
	if s.journal == nil {
		return ErrNoJournal
	}
	snap, err := s.journal.GetLatestSnapshot(ctx, s.gameID)
	if err != nil {
		return fmt.Errorf("failed to restore game %s: %w", s.gameID, err)
	}
	if snap == nil {
		return nil
	}
	s.store.Dispatch(LocalGameState{State: snap})
	log.Printf("✓ Restored game %s from journal (lastModified %d)", s.gameID, snap.LastModified)
	return nil
}

// handleMessage applies one inbound frame. Bad frames are logged and
// dropped; the connection stays up.
func (s *Session) handleMessage(data []byte) {
	ctx, span := middleware.StartSpan(context.Background(), "Session.HandleMessage",
		attribute.String("game.id", s.gameID),
		attribute.Int("message.size", len(data)),
	)
	defer span.End()

	msgType, action, err := s.router.Route(data)
	if err != nil {
		log.Printf("⚠️  Discarding inbound frame: %v", err)
		middleware.AddSpanError(ctx, err)
		return
	}
	span.SetAttributes(attribute.String("message.type", string(msgType)))

	before, after := s.store.Dispatch(action)

	switch a := action.(type) {
	case GameStateSynced:
		if a.State == nil {
			break
		}
		s.record(ctx, models.SourceSync, a.State)
		if s.handlers.OnGameState != nil {
			s.handlers.OnGameState(a.State)
		}

	case GameStateUpdated:
		if after.PendingConflict != nil && after.PendingConflict != before.PendingConflict {
			middleware.AddSpanEvent(ctx, "conflict.pending")
			if s.handlers.OnConflict != nil {
				s.handlers.OnConflict(after.PendingConflict)
			}
		} else if after.GameState != before.GameState {
			s.record(ctx, models.SourceRemote, after.GameState)
			if s.handlers.OnGameState != nil {
				s.handlers.OnGameState(after.GameState)
			}
		}

	case PlayerActionReceived:
		if s.handlers.OnPlayerAction != nil {
			s.handlers.OnPlayerAction(a.Payload)
		}

	case ExpenseActionReceived:
		if s.handlers.OnExpenseAction != nil {
			s.handlers.OnExpenseAction(a.Payload)
		}
	}
}

// record appends snap to the journal, pruning every journalPruneEvery writes
func (s *Session) record(ctx context.Context, source models.SnapshotSource, snap *models.Snapshot) {
	if s.journal == nil || snap == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()

	if err := s.journal.StoreSnapshot(ctx, s.gameID, source, snap); err != nil {
		log.Printf("⚠️  Failed to journal %s snapshot: %v", source, err)
		middleware.AddSpanError(ctx, err)
		return
	}

	s.journalMu.Lock()
	s.journalCount++
	prune := s.journalKeep > 0 && s.journalCount%journalPruneEvery == 0
	s.journalMu.Unlock()

	if prune {
		if err := s.journal.Prune(ctx, s.gameID, s.journalKeep); err != nil {
			log.Printf("⚠️  Failed to prune journal: %v", err)
		}
	}
}
