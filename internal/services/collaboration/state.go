package collaboration

import (
	"encoding/json"
	"slices"
	"sync"
	"time"

	"gamesync/internal/models"
)

/*
LEARNING: A REDUCER OVER IMMUTABLE SNAPSHOTS

State is a value. Reduce never mutates its input; it copies any slice it
changes. That lets Store hand the same State to many readers without
locks: a reader's copy can never change underneath it.

Store is the only writer. Dispatch holds mu for the whole transition, so
one transition always completes before the next one starts.
*/

// State is the session state observed by the application
type State struct {
	ConnectionStatus models.ConnectionStatus `json:"connection_status"`
	ActiveUsers      []string                `json:"active_users"`
	LastSyncTime     *time.Time              `json:"last_sync_time"`
	ConflictMode     models.ConflictMode     `json:"conflict_mode"`
	Online           bool                    `json:"online"`
	Editors          []string                `json:"editors"`

	GameState         *models.Snapshot `json:"game_state,omitempty"`
	PendingConflict   *models.Conflict `json:"pending_conflict,omitempty"`
	LastPlayerAction  json.RawMessage  `json:"last_player_action,omitempty"`
	LastExpenseAction json.RawMessage  `json:"last_expense_action,omitempty"`
}

// IsConnected is derived from ConnectionStatus, never stored
func (s State) IsConnected() bool {
	return s.ConnectionStatus == models.StatusConnected
}

// MarshalJSON adds the derived is_connected field
func (s State) MarshalJSON() ([]byte, error) {
	type plain State
	return json.Marshal(struct {
		plain
		IsConnected bool `json:"is_connected"`
	}{plain(s), s.IsConnected()})
}

// InitialState is the state of a fresh or reset session
func InitialState() State {
	return State{
		ConnectionStatus: models.StatusDisconnected,
		ActiveUsers:      []string{},
		ConflictMode:     models.ConflictModeAuto,
		Online:           true,
		Editors:          []string{},
	}
}

// Action is a state transition request. The set is closed.
type Action interface {
	isAction()
}

type (
	SetConnectionStatus struct{ Status models.ConnectionStatus }
	SetOnline           struct{ Online bool }
	SetConflictMode     struct{ Mode models.ConflictMode }

	UserJoined struct{ UserID string }
	UserLeft   struct{ UserID string }

	GameStateSynced       struct{ State *models.Snapshot }
	GameStateUpdated      struct{ Remote *models.Snapshot }
	LocalGameState        struct{ State *models.Snapshot }
	PlayerActionReceived  struct{ Payload json.RawMessage }
	ExpenseActionReceived struct{ Payload json.RawMessage }

	// ResolvePending applies an external decision on PendingConflict
	ResolvePending struct{ KeepRemote bool }

	// AddEditor and RemoveEditor expect an already normalized email
	AddEditor    struct{ Email string }
	RemoveEditor struct{ Email string }

	// Reset returns to InitialState
	Reset struct{}
)

func (SetConnectionStatus) isAction()   {}
func (SetOnline) isAction()             {}
func (SetConflictMode) isAction()       {}
func (UserJoined) isAction()            {}
func (UserLeft) isAction()              {}
func (GameStateSynced) isAction()       {}
func (GameStateUpdated) isAction()      {}
func (LocalGameState) isAction()        {}
func (PlayerActionReceived) isAction()  {}
func (ExpenseActionReceived) isAction() {}
func (ResolvePending) isAction()        {}
func (AddEditor) isAction()             {}
func (RemoveEditor) isAction()          {}
func (Reset) isAction()                 {}

// Reduce applies a to s. newConflictID is only called when a manual-mode
// conflict is recorded.
func Reduce(s State, a Action, now time.Time, newConflictID func() string) State {
	switch a := a.(type) {
	case SetConnectionStatus:
		s.ConnectionStatus = a.Status

	case SetOnline:
		s.Online = a.Online

	case SetConflictMode:
		if a.Mode.Valid() {
			s.ConflictMode = a.Mode
		}

	case UserJoined:
		if !slices.Contains(s.ActiveUsers, a.UserID) {
			s.ActiveUsers = append(slices.Clone(s.ActiveUsers), a.UserID)
		}

	case UserLeft:
		if i := slices.Index(s.ActiveUsers, a.UserID); i >= 0 {
			s.ActiveUsers = slices.Delete(slices.Clone(s.ActiveUsers), i, i+1)
		}

	case GameStateSynced:
		// A bare sync point only moves LastSyncTime
		if a.State != nil {
			s.GameState = a.State
			s.PendingConflict = nil
		}
		s.LastSyncTime = stamp(now)

	case GameStateUpdated:
		if s.ConflictMode == models.ConflictModeManual && s.GameState != nil {
			id := ""
			if newConflictID != nil {
				id = newConflictID()
			}
			s.PendingConflict = &models.Conflict{
				ID:         id,
				Local:      s.GameState,
				Remote:     a.Remote,
				DetectedAt: now,
			}
		} else {
			s.GameState = ResolveConflict(s.GameState, a.Remote)
		}
		s.LastSyncTime = stamp(now)

	case LocalGameState:
		s.GameState = a.State
		// A pending conflict compares against the newest local state
		if s.PendingConflict != nil {
			c := *s.PendingConflict
			c.Local = a.State
			s.PendingConflict = &c
		}

	case PlayerActionReceived:
		s.LastPlayerAction = a.Payload
		s.LastSyncTime = stamp(now)

	case ExpenseActionReceived:
		s.LastExpenseAction = a.Payload
		s.LastSyncTime = stamp(now)

	case ResolvePending:
		if s.PendingConflict != nil {
			if a.KeepRemote {
				s.GameState = s.PendingConflict.Remote
			} else {
				s.GameState = s.PendingConflict.Local
			}
			s.PendingConflict = nil
		}

	case AddEditor:
		if a.Email != "" && !slices.Contains(s.Editors, a.Email) {
			s.Editors = append(slices.Clone(s.Editors), a.Email)
		}

	case RemoveEditor:
		if i := slices.Index(s.Editors, a.Email); i >= 0 {
			s.Editors = slices.Delete(slices.Clone(s.Editors), i, i+1)
		}

	case Reset:
		s = InitialState()
	}
	return s
}

func stamp(now time.Time) *time.Time {
	t := now
	return &t
}

// Store holds the current State and serializes transitions
type Store struct {
	mu         sync.Mutex
	state      State
	now        func() time.Time
	conflictID func() string

	subMu     sync.Mutex
	subs      map[int]func(State)
	nextSubID int
	notifyMu  sync.Mutex
}

// NewStore creates a store at InitialState
func NewStore(now func() time.Time, conflictID func() string) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		state:      InitialState(),
		now:        now,
		conflictID: conflictID,
		subs:       make(map[int]func(State)),
	}
}

// State returns the current snapshot
func (st *Store) State() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// Dispatch applies a and notifies subscribers with the resulting state.
// It returns the state before and after the transition.
func (st *Store) Dispatch(a Action) (before, after State) {
	// notifyMu keeps notifications in transition order
	st.notifyMu.Lock()
	defer st.notifyMu.Unlock()

	st.mu.Lock()
	before = st.state
	st.state = Reduce(st.state, a, st.now(), st.conflictID)
	after = st.state
	st.mu.Unlock()

	st.subMu.Lock()
	subs := make([]func(State), 0, len(st.subs))
	for _, fn := range st.subs {
		subs = append(subs, fn)
	}
	st.subMu.Unlock()

	for _, fn := range subs {
		fn(after)
	}
	return before, after
}

// Subscribe registers fn for every future transition. Subscribers must
// not call Dispatch. The returned func unsubscribes.
func (st *Store) Subscribe(fn func(State)) func() {
	st.subMu.Lock()
	id := st.nextSubID
	st.nextSubID++
	st.subs[id] = fn
	st.subMu.Unlock()

	return func() {
		st.subMu.Lock()
		delete(st.subs, id)
		st.subMu.Unlock()
	}
}
