package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gamesync/internal/models"

	"github.com/gorilla/websocket"
)

func readState(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read state frame: %v", err)
	}
	var state map[string]any
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("Invalid state frame %q: %v", data, err)
	}
	return state
}

func TestStateStream(t *testing.T) {
	m := newMockSession()
	srv := httptest.NewServer(SetupRoutes(NewHandler(m, nil)))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial state stream: %v", err)
	}
	defer conn.Close()

	first := readState(t, conn)
	if first["connection_status"] != "disconnected" {
		t.Errorf("Expected initial state first, got %v", first)
	}

	// The initial frame is read after subscribing, so the subscriber exists by now
	if m.subscriberCount() != 1 {
		t.Fatalf("Expected one subscriber, got %d", m.subscriberCount())
	}
	if sub, st := m.firstCall("Subscribe"), m.firstCall("State"); sub < 0 || sub > st {
		t.Errorf("Stream must subscribe before reading state (Subscribe at %d, State at %d)", sub, st)
	}

	next := m.State()
	next.ConnectionStatus = models.StatusConnected
	next.ActiveUsers = []string{"alice"}
	m.publish(next)

	got := readState(t, conn)
	if got["connection_status"] != "connected" || got["is_connected"] != true {
		t.Errorf("Expected connected state, got %v", got)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !m.called("Unsubscribe") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !m.called("Unsubscribe") {
		t.Error("Closing the stream should unsubscribe")
	}
}
