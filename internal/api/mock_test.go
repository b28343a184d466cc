package api

import (
	"strings"
	"sync"

	"gamesync/internal/models"
	"gamesync/internal/services/collaboration"
)

// mockSession records calls and serves a canned state
type mockSession struct {
	mu sync.Mutex

	enabled   bool
	sendOK    bool
	state     collaboration.State
	calls     []string
	payloads  []any
	resolved  *bool
	subs      []func(collaboration.State)
	resolveFn func(bool) error
}

func newMockSession() *mockSession {
	return &mockSession{
		enabled: true,
		sendOK:  true,
		state:   collaboration.InitialState(),
	}
}

func (m *mockSession) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockSession) called(call string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c == call {
			return true
		}
	}
	return false
}

// firstCall returns the index of the first call named call, or -1
func (m *mockSession) firstCall(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.calls {
		if c == call {
			return i
		}
	}
	return -1
}

func (m *mockSession) GameID() string         { return "game-1" }
func (m *mockSession) Connect()               { m.record("Connect") }
func (m *mockSession) Disconnect()            { m.record("Disconnect") }
func (m *mockSession) Leave()                 { m.record("Leave") }
func (m *mockSession) ReconnectAttempts() int { return 2 }

func (m *mockSession) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *mockSession) State() collaboration.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "State")
	return m.state
}

func (m *mockSession) Subscribe(fn func(collaboration.State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
	m.calls = append(m.calls, "Subscribe")
	return func() { m.record("Unsubscribe") }
}

// publish sets the state and notifies subscribers like Store.Dispatch
func (m *mockSession) publish(s collaboration.State) {
	m.mu.Lock()
	m.state = s
	subs := append([]func(collaboration.State){}, m.subs...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

func (m *mockSession) subscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *mockSession) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Online = online
}

func (m *mockSession) SetConflictMode(mode models.ConflictMode) error {
	if !mode.Valid() {
		return collaboration.ErrInvalidConflictMode
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ConflictMode = mode
	return nil
}

func (m *mockSession) ResolvePendingConflict(keepRemote bool) error {
	m.mu.Lock()
	m.resolved = &keepRemote
	fn := m.resolveFn
	m.mu.Unlock()
	if fn != nil {
		return fn(keepRemote)
	}
	return nil
}

func (m *mockSession) send(call string, payload any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	m.payloads = append(m.payloads, payload)
	return m.sendOK
}

func (m *mockSession) BroadcastGameState(state any) bool {
	return m.send("BroadcastGameState", state)
}

func (m *mockSession) SendPlayerAction(action any) bool {
	return m.send("SendPlayerAction", action)
}

func (m *mockSession) SendExpenseAction(action any) bool {
	return m.send("SendExpenseAction", action)
}

func (m *mockSession) RequestSync() bool {
	return m.send("RequestSync", nil)
}

func (m *mockSession) AddEditor(email string) bool {
	if !strings.Contains(email, "@") {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Editors = append(m.state.Editors, strings.ToLower(email))
	return true
}

func (m *mockSession) RemoveEditor(email string) bool {
	if !strings.Contains(email, "@") {
		return false
	}
	m.record("RemoveEditor:" + strings.ToLower(email))
	return true
}

func (m *mockSession) GenerateInviteLink(sessionID string) string {
	if sessionID == "" {
		sessionID = "game-1"
	}
	return "gamesync://join/" + sessionID
}
