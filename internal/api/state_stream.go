package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"gamesync/internal/middleware"
	"gamesync/internal/services/collaboration"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

/*
LEARNING: PUSHING STATE TO THE UI

GET /ws/state upgrades to a WebSocket and sends the session state as JSON:
once on connect, then after every transition.

The store calls subscribers while it holds its notify lock, so the
subscriber must never block. It drops frames into a buffered channel and
the write pump drains it. A slow UI loses intermediate states, never the
newest one it eventually reads.
*/

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 54 * time.Second
	streamBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local UI only; the daemon binds to localhost
		return true
	},
}

// HandleStateStream streams session state over a WebSocket
func (h *Handler) HandleStateStream(w http.ResponseWriter, r *http.Request) {
	ctx, span := middleware.StartSpan(r.Context(), "StateStream.Connect",
		attribute.String("game.id", h.session.GameID()),
	)
	defer span.End()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		middleware.AddSpanError(ctx, err)
		return
	}

	send := make(chan []byte, streamBuffer)
	done := make(chan struct{})

	push := func(s collaboration.State) {
		data, err := json.Marshal(s)
		if err != nil {
			return
		}
		select {
		case send <- data:
		default:
			// Drop the oldest queued frame to make room
			select {
			case <-send:
			default:
			}
			select {
			case send <- data:
			default:
			}
		}
	}

	// Subscribe before reading the current state so no transition falls between
	unsubscribe := h.session.Subscribe(push)
	push(h.session.State())

	go func() {
		defer close(done)
		readPump(conn)
	}()
	writePump(conn, send, done)

	unsubscribe()
	log.Printf("✓ State stream closed (%s)", r.RemoteAddr)
}

// readPump discards client frames and keeps the read deadline fresh
func readPump(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

// writePump writes queued state frames until the reader goes away
func writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message := <-send:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
