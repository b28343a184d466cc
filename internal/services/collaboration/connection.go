package collaboration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"gamesync/internal/middleware"
	"gamesync/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

/*
LEARNING: ONE CONNECTION, ONE RETRY POLICY

ConnectionManager owns exactly one physical connection and one reconnect
timer. State machine:

	disconnected → connecting → connected | error
	connected → disconnected (close) → connecting (if retries remain) → ...

Every dial bumps a generation counter. Events (read errors, closes, timer
fires) carry the generation they belong to, and anything from an older
generation is ignored. That is how Disconnect cancels work that is already
in flight without waiting for it.

Handlers are called without holding mu, so they may read Status().
*/

// Handlers receive connection events. Any field may be nil.
type Handlers struct {
	OnMessage      func(data []byte)
	OnConnect      func()
	OnDisconnect   func()
	OnError        func(err error)
	OnStatusChange func(status models.ConnectionStatus)
}

// ConnectionManager manages the lifecycle of the collaboration socket
type ConnectionManager struct {
	url              string
	gameID           string
	userID           string
	interval         time.Duration
	maxAttempts      int
	handshakeTimeout time.Duration

	dialer    Dialer
	scheduler Scheduler
	handlers  Handlers

	emitMu sync.Mutex

	mu              sync.Mutex
	enabled         bool
	conn            Conn
	status          models.ConnectionStatus
	attempts        int
	shouldReconnect bool
	timer           Timer
	generation      uint64
	dialCancel      context.CancelFunc
}

// NewConnectionManager creates a manager in the disconnected state.
// Nothing is dialed until Connect is called.
func NewConnectionManager(cfg Config, dialer Dialer, scheduler Scheduler, handlers Handlers) *ConnectionManager {
	cfg = cfg.withDefaults()
	if scheduler == nil {
		scheduler = RealScheduler{}
	}

	return &ConnectionManager{
		url:              cfg.URL,
		gameID:           cfg.GameID,
		userID:           cfg.UserID,
		interval:         cfg.ReconnectInterval,
		maxAttempts:      cfg.MaxReconnectAttempts,
		handshakeTimeout: cfg.HandshakeTimeout,
		dialer:           dialer,
		scheduler:        scheduler,
		handlers:         handlers,
		enabled:          cfg.Enabled && dialer != nil,
		status:           models.StatusDisconnected,
	}
}

// Connect starts dialing unless disabled, open, or already dialing.
// An explicit Connect re-arms reconnection and resets the attempt counter.
func (m *ConnectionManager) Connect() {
	m.mu.Lock()
	if !m.enabled || m.conn != nil || m.status == models.StatusConnecting {
		m.mu.Unlock()
		return
	}

	m.shouldReconnect = true
	m.attempts = 0
	m.stopTimerLocked()
	gen, ctx := m.beginDialLocked()
	m.mu.Unlock()

	log.Printf("🔄 Connecting to %s (game %s)", m.url, m.gameID)
	m.emitStatus()
	go m.dial(gen, ctx)
}

// Send writes msg if the connection is open. Messages sent while the
// connection is down are dropped, never queued.
func (m *ConnectionManager) Send(msg models.Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("⚠️  Failed to encode %s: %v", msg.Type, err)
		return false
	}

	_, span := middleware.StartSpan(context.Background(), "Connection.Send",
		attribute.String("message.type", string(msg.Type)),
		attribute.Int("message.size", len(data)),
	)
	defer span.End()

	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return false
	}
	if m.conn == nil {
		m.mu.Unlock()
		log.Printf("⚠️  Dropping %s: connection is not open", msg.Type)
		return false
	}

	// Writing under mu keeps frames in call order
	gen := m.generation
	err = m.conn.WriteMessage(data)
	m.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		m.handleError(gen, fmt.Errorf("failed to send %s: %w", msg.Type, err))
		return false
	}
	return true
}

// Disconnect suppresses reconnection, cancels the pending timer and any
// in-flight dial, closes the socket and leaves status disconnected.
// Calling it again is a no-op.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	m.shouldReconnect = false
	m.stopTimerLocked()
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	conn := m.conn
	m.conn = nil
	prev := m.status
	m.generation++
	m.status = models.StatusDisconnected
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Printf("⚠️  Error closing connection: %v", err)
		}
		log.Printf("✓ Disconnected from game %s", m.gameID)
	}
	if prev != models.StatusDisconnected {
		m.emitStatus()
	}
	if conn != nil && m.handlers.OnDisconnect != nil {
		m.handlers.OnDisconnect()
	}
}

// SetEnabled turns the manager on or off. Disabling disconnects.
func (m *ConnectionManager) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled && m.dialer != nil
	m.mu.Unlock()

	if !enabled {
		m.Disconnect()
	}
}

// Enabled reports whether Connect and Send do anything
func (m *ConnectionManager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Status returns the current connection status
func (m *ConnectionManager) Status() models.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Attempts returns how many reconnects have been scheduled since the last
// successful open or explicit Connect
func (m *ConnectionManager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// IsOpen reports whether a physical connection is currently held
func (m *ConnectionManager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// beginDialLocked starts a new generation in the connecting state
func (m *ConnectionManager) beginDialLocked() (uint64, context.Context) {
	m.generation++
	m.status = models.StatusConnecting
	ctx, cancel := context.WithTimeout(context.Background(), m.handshakeTimeout)
	m.dialCancel = cancel
	return m.generation, ctx
}

func (m *ConnectionManager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *ConnectionManager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.generation
}

func (m *ConnectionManager) dial(gen uint64, ctx context.Context) {
	ctx, span := middleware.StartSpan(ctx, "Connection.Dial",
		attribute.String("game.id", m.gameID),
	)
	defer span.End()

	conn, err := m.dialer.Dial(ctx, m.url)

	m.mu.Lock()
	if gen != m.generation {
		// Disconnected (or superseded) while dialing
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	if err != nil {
		m.mu.Unlock()
		middleware.AddSpanError(ctx, err)
		// A failed open reports an error, then a close, like a socket would
		m.handleError(gen, err)
		m.handleClose(gen)
		return
	}

	m.conn = conn
	m.attempts = 0

	join, err := newOutbound(models.MessageTypeJoinGame, m.gameID, models.JoinPayload{
		GameID: m.gameID,
		UserID: m.userID,
	})
	if err == nil {
		var data []byte
		if data, err = json.Marshal(join); err == nil {
			err = conn.WriteMessage(data)
		}
	}
	if err != nil {
		m.mu.Unlock()
		middleware.AddSpanError(ctx, err)
		m.handleError(gen, fmt.Errorf("failed to join game %s: %w", m.gameID, err))
		m.handleClose(gen)
		return
	}

	m.status = models.StatusConnected
	m.mu.Unlock()

	log.Printf("✓ Connected to game %s", m.gameID)
	m.emitStatus()
	if m.handlers.OnConnect != nil {
		m.handlers.OnConnect()
	}

	go m.readLoop(gen, conn)
}

// readLoop delivers inbound frames in wire order until the connection ends
func (m *ConnectionManager) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if !isCleanClose(err) && !errors.Is(err, io.EOF) {
				m.handleError(gen, err)
			}
			m.handleClose(gen)
			return
		}

		if !m.isCurrent(gen) {
			return
		}
		if m.handlers.OnMessage != nil {
			m.handlers.OnMessage(data)
		}
	}
}

// handleError surfaces a transport error. It does not close anything;
// the close that follows decides about reconnecting.
func (m *ConnectionManager) handleError(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.status = models.StatusError
	m.mu.Unlock()

	log.Printf("⚠️  Collaboration transport error: %v", err)
	m.emitStatus()
	if m.handlers.OnError != nil {
		m.handlers.OnError(err)
	}
}

// handleClose moves to disconnected and schedules a reconnect if the
// policy still allows one
func (m *ConnectionManager) handleClose(gen uint64) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}

	conn := m.conn
	m.conn = nil
	m.status = models.StatusDisconnected

	scheduled := false
	attempt := 0
	if m.shouldReconnect && m.attempts < m.maxAttempts {
		m.attempts++
		attempt = m.attempts
		m.stopTimerLocked()
		m.timer = m.scheduler.AfterFunc(m.interval, func() { m.reconnect(gen) })
		scheduled = true
	}
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	if scheduled {
		log.Printf("🔄 Connection closed, reconnect %d/%d in %v", attempt, m.maxAttempts, m.interval)
	} else {
		log.Printf("Connection to game %s closed", m.gameID)
	}

	m.emitStatus()
	if m.handlers.OnDisconnect != nil {
		m.handlers.OnDisconnect()
	}
}

// reconnect runs when the reconnect timer fires
func (m *ConnectionManager) reconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || !m.shouldReconnect || !m.enabled {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	next, ctx := m.beginDialLocked()
	m.mu.Unlock()

	m.emitStatus()
	go m.dial(next, ctx)
}

// emitStatus reports the status as of now. emitMu serializes reports so
// the last one delivered always matches the manager's final state.
func (m *ConnectionManager) emitStatus() {
	if m.handlers.OnStatusChange == nil {
		return
	}
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	m.handlers.OnStatusChange(m.Status())
}
