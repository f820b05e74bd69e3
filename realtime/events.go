// Package realtime manages the persistent WebSocket channel to the AI
// backend: a single duplex connection with exponential-backoff
// reconnection and typed event fan-out to local subscribers.
package realtime

import (
	"encoding/json"
	"sync"
)

// EventKind identifies the lifecycle events a Manager emits.
type EventKind int

const (
	// KindConnected fires after the open handshake completes.
	KindConnected EventKind = iota
	// KindDisconnected fires when the connection closes, deliberately
	// or not.
	KindDisconnected
	// KindError fires when the transport reports an error.
	KindError
	// KindMessage fires for inbound frames that could not be parsed
	// into a typed message; the raw payload is attached.
	KindMessage
	// KindReconnectFailed fires once when the reconnect attempt budget
	// is exhausted.
	KindReconnectFailed
)

func (k EventKind) String() string {
	switch k {
	case KindConnected:
		return "connected"
	case KindDisconnected:
		return "disconnected"
	case KindError:
		return "error"
	case KindMessage:
		return "message"
	case KindReconnectFailed:
		return "reconnect_failed"
	}
	return "unknown"
}

// Event is the payload delivered to subscribers.
type Event struct {
	Kind EventKind

	// Type is the server-declared message type for parsed frames.
	Type string

	// Payload is the parsed frame body for typed messages.
	Payload json.RawMessage

	// Raw is the unparsed frame for KindMessage fallbacks.
	Raw []byte

	// Err is set for KindError.
	Err error
}

// Handler receives events. Handlers run on the manager's dispatch
// goroutine and should not block.
type Handler func(Event)

// registry maps event kinds and server message types to subscribers.
type registry struct {
	mu     sync.RWMutex
	nextID int
	byKind map[EventKind]map[int]Handler
	byType map[string]map[int]Handler
}

func newRegistry() *registry {
	return &registry{
		byKind: make(map[EventKind]map[int]Handler),
		byType: make(map[string]map[int]Handler),
	}
}

// subscribe registers fn for a kind and returns a handle removing
// exactly that registration.
func (r *registry) subscribe(kind EventKind, fn Handler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	if r.byKind[kind] == nil {
		r.byKind[kind] = make(map[int]Handler)
	}
	r.byKind[kind][id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.byKind[kind], id)
	}
}

// subscribeType registers fn for a server-declared message type.
func (r *registry) subscribeType(msgType string, fn Handler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	if r.byType[msgType] == nil {
		r.byType[msgType] = make(map[int]Handler)
	}
	r.byType[msgType][id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.byType[msgType], id)
	}
}

// emit fans an event out. Typed messages go to their type's
// subscribers only; everything else goes to its kind's subscribers, so
// the generic KindMessage stream carries exactly the frames that could
// not be parsed. Handlers are snapshotted so an unsubscribe during
// dispatch is safe.
func (r *registry) emit(ev Event) {
	r.mu.RLock()
	handlers := make([]Handler, 0, 4)
	if ev.Type != "" {
		for _, fn := range r.byType[ev.Type] {
			handlers = append(handlers, fn)
		}
	} else {
		for _, fn := range r.byKind[ev.Kind] {
			handlers = append(handlers, fn)
		}
	}
	r.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
