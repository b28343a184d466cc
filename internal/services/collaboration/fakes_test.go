package collaboration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"gamesync/internal/models"
)

const waitTimeout = 2 * time.Second

// fakeConn is an in-memory Conn. serverClose simulates the peer hanging up.
type fakeConn struct {
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	written  [][]byte
	closes   int
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 32),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	select {
	case <-c.closed:
		return errors.New("write on closed connection")
	default:
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) serverClose() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *fakeConn) push(t *testing.T, msg any) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to encode test frame: %v", err)
	}
	c.inbound <- data
}

func (c *fakeConn) setWriteErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeConn) sent(t *testing.T) []models.Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Message, 0, len(c.written))
	for _, data := range c.written {
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Client wrote invalid JSON %q: %v", data, err)
		}
		out = append(out, msg)
	}
	return out
}

// fakeDialer hands out fakeConns, or fails every dial while err is set
type fakeDialer struct {
	mu    sync.Mutex
	err   error
	dials int
	conns chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	err := d.err
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// blockingDialer waits until its context is cancelled
type blockingDialer struct {
	started   chan struct{}
	cancelled chan struct{}
}

func (d *blockingDialer) Dial(ctx context.Context, url string) (Conn, error) {
	close(d.started)
	<-ctx.Done()
	close(d.cancelled)
	return nil, ctx.Err()
}

// fakeScheduler only runs tasks when fireNext is called
type fakeScheduler struct {
	mu        sync.Mutex
	timers    []*fakeTimer
	scheduled chan time.Duration
}

type fakeTimer struct {
	s       *fakeScheduler
	f       func()
	stopped bool
	fired   bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(chan time.Duration, 32)}
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	t := &fakeTimer{s: s, f: f}
	s.timers = append(s.timers, t)
	s.mu.Unlock()

	s.scheduled <- d
	return t
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fireNext runs the oldest pending task. Returns false if none is pending.
func (s *fakeScheduler) fireNext() bool {
	s.mu.Lock()
	var next *fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			next = t
			break
		}
	}
	if next != nil {
		next.fired = true
	}
	s.mu.Unlock()

	if next == nil {
		return false
	}
	next.f()
	return true
}

func (s *fakeScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// recorder turns Handlers callbacks into channels
type recorder struct {
	statuses    chan models.ConnectionStatus
	connects    chan struct{}
	disconnects chan struct{}
	errs        chan error
	messages    chan []byte
}

func newRecorder() *recorder {
	return &recorder{
		statuses:    make(chan models.ConnectionStatus, 64),
		connects:    make(chan struct{}, 16),
		disconnects: make(chan struct{}, 16),
		errs:        make(chan error, 16),
		messages:    make(chan []byte, 64),
	}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnMessage:      func(data []byte) { r.messages <- data },
		OnConnect:      func() { r.connects <- struct{}{} },
		OnDisconnect:   func() { r.disconnects <- struct{}{} },
		OnError:        func(err error) { r.errs <- err },
		OnStatusChange: func(s models.ConnectionStatus) { r.statuses <- s },
	}
}

func waitFor[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("Timed out waiting for %s", what)
		var zero T
		return zero
	}
}

func expectNone[T any](t *testing.T, ch chan T, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("Unexpected %s", what)
	case <-time.After(50 * time.Millisecond):
	}
}

// eventually polls cond until it holds or the wait times out
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Condition never held: %s", what)
}

func testConfig() Config {
	cfg := DefaultConfig("ws://collab.test/ws", "game-1")
	cfg.UserID = "user-local"
	return cfg
}
