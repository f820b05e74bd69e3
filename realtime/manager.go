package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// Conn is the subset of the WebSocket connection the manager uses.
// *websocket.Conn satisfies it; tests substitute a scripted fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens connections. The default wraps gorilla's dialer.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

type wsDialer struct {
	d *websocket.Dialer
}

func (w wsDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := w.d.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Config configures a Manager.
type Config struct {
	// URL is the full WebSocket endpoint, token included.
	URL string
	// BaseDelay is the first reconnect delay (default 1s). Subsequent
	// attempts double it.
	BaseDelay time.Duration
	// MaxAttempts bounds consecutive reconnect attempts (default 5).
	MaxAttempts int
	// Dialer overrides the transport; nil means gorilla/websocket.
	Dialer Dialer
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Manager owns a single duplex connection to the AI backend. On
// unexpected close it reconnects with exponential backoff; once the
// attempt budget is exhausted it emits KindReconnectFailed and stays
// down until Connect is called again. The reconnect timer is the only
// background resource besides the read goroutine, and both are torn
// down by Disconnect or exhaustion.
type Manager struct {
	cfg      Config
	dialer   Dialer
	logger   *slog.Logger
	registry *registry

	mu        sync.Mutex
	state     State
	conn      Conn
	attempts  int
	timer     *time.Timer
	closed    bool
	exhausted bool
}

// NewManager creates a manager; it does not connect.
func NewManager(cfg Config) *Manager {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = wsDialer{d: websocket.DefaultDialer}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		dialer:   dialer,
		logger:   logger,
		registry: newRegistry(),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a handler for a lifecycle event kind and returns
// a handle that removes exactly that handler.
func (m *Manager) Subscribe(kind EventKind, fn Handler) func() {
	return m.registry.subscribe(kind, fn)
}

// SubscribeMessage registers a handler for a server-declared message
// type carried in inbound frames.
func (m *Manager) SubscribeMessage(msgType string, fn Handler) func() {
	return m.registry.subscribeType(msgType, fn)
}

// Connect opens the connection. It is a no-op while a connection is
// live or an attempt is already in flight, and returns the dial error
// when the transport fails to open.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.closed = false
	m.mu.Unlock()

	conn, err := m.dialer.Dial(ctx, m.cfg.URL, nil)
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()

		m.registry.emit(Event{Kind: KindError, Err: err})
		m.scheduleReconnect()
		return errors.Wrap(err, "realtime dial")
	}

	m.mu.Lock()
	m.conn = conn
	m.state = StateConnected
	m.attempts = 0
	m.exhausted = false
	m.mu.Unlock()

	m.logger.Debug("realtime connected", "url", m.cfg.URL)
	m.registry.emit(Event{Kind: KindConnected})

	go m.readLoop(conn)
	return nil
}

// Disconnect closes the connection and cancels any pending reconnect.
// Safe to call when already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Send marshals v and transmits it when connected. While disconnected
// the payload is silently dropped: nothing is queued and the transport
// is never touched. Callers needing delivery confirmation must watch
// the event stream.
func (m *Manager) Send(v any) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal realtime payload")
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop pumps inbound frames until the connection dies.
func (m *Manager) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.onClosed(conn, err)
			return
		}
		m.dispatch(data)
	}
}

// dispatch parses a frame and routes it under its declared type.
// Unparsable payloads fall back to the generic message event; a bad
// frame never crashes the loop.
func (m *Manager) dispatch(data []byte) {
	var frame struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &frame); err == nil && frame.Type != "" {
		m.registry.emit(Event{Kind: KindMessage, Type: frame.Type, Payload: data})
		return
	}
	m.registry.emit(Event{Kind: KindMessage, Raw: data})
}

// onClosed handles an unexpectedly dead connection. Deliberate closes
// never reach the emit path: Disconnect swaps the conn out first, so
// the identity check below drops them.
func (m *Manager) onClosed(conn Conn, err error) {
	m.mu.Lock()
	if m.conn != conn {
		// A Disconnect or a newer connection already replaced us.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	m.logger.Debug("realtime connection lost", "error", err)
	m.registry.emit(Event{Kind: KindError, Err: err})
	m.registry.emit(Event{Kind: KindDisconnected})
	m.scheduleReconnect()
}

// backoffDelay returns the delay before the given attempt (1-based):
// BaseDelay * 2^(attempt-1).
func (m *Manager) backoffDelay(attempt int) time.Duration {
	return m.cfg.BaseDelay << (attempt - 1)
}

// scheduleReconnect arms the reconnect timer for the next attempt, or
// emits KindReconnectFailed once when the budget is spent.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.closed || m.exhausted || m.timer != nil {
		m.mu.Unlock()
		return
	}
	m.attempts++
	if m.attempts > m.cfg.MaxAttempts {
		m.exhausted = true
		m.mu.Unlock()

		m.logger.Debug("realtime reconnect attempts exhausted", "max_attempts", m.cfg.MaxAttempts)
		m.registry.emit(Event{Kind: KindReconnectFailed})
		return
	}
	attempt := m.attempts
	delay := m.backoffDelay(attempt)
	m.timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.timer = nil
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		// A failed dial schedules the next attempt itself.
		_ = m.Connect(context.Background())
	})
	m.mu.Unlock()

	m.logger.Debug("realtime reconnect scheduled", "attempt", attempt, "delay", delay)
}
