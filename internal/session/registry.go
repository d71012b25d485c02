// internal/session/registry.go
package session

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// ConnState tracks where a connection is in its lifecycle. Transitions only
// move forward: connecting -> assigned -> active -> closed.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateAssigned
	StateActive
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAssigned:
		return "assigned"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn is a single participant's presence in a session. Outbound messages are
// queued on Out and drained by the connection's write pump; Write never
// blocks the caller.
type Conn struct {
	ID        uuid.UUID
	UserID    int64
	SessionID int64
	Out       chan interface{}
	Cancel    func()

	mu    sync.Mutex
	state ConnState
}

// NewConn builds a registry connection for a participant assigned to the
// given session. cancel stops the goroutines tied to the underlying socket.
func NewConn(userID, sessionID int64, cancel func()) *Conn {
	return &Conn{
		ID:        uuid.New(),
		UserID:    userID,
		SessionID: sessionID,
		Out:       make(chan interface{}, 16),
		Cancel:    cancel,
		state:     StateAssigned,
	}
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState advances the lifecycle state. Backward transitions are ignored.
func (c *Conn) SetState(s ConnState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s > c.state {
		c.state = s
	}
}

// Write pushes a message onto the connection's outbound queue without
// blocking. Messages for a closed or saturated connection are dropped and
// logged, never retried.
func (c *Conn) Write(msg interface{}) {
	if c.State() == StateClosed {
		return
	}
	select {
	case c.Out <- msg:
	default:
		log.Printf("registry: outbound queue for user %d (conn %s) closed or full, dropping message", c.UserID, c.ID)
	}
}

// WriteError sends an error notification to this connection only.
func (c *Conn) WriteError(msg string) {
	c.Write(ErrorMessage{Error: msg})
}

// Registry maps session ids to the set of live connections belonging to that
// session. It is the only shared mutable structure in the core; membership
// mutation and broadcast iteration are serialized per session.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*sessionEntry
}

type sessionEntry struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*Conn
}

// NewRegistry initializes an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int64]*sessionEntry),
	}
}

// Join admits conn to the given session, creating the session entry if this
// is its first member.
func (r *Registry) Join(sessionID int64, conn *Conn) {
	// The outer lock is held across the insertion so a concurrent Leave
	// cannot reap the entry between lookup and insert.
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		entry = &sessionEntry{conns: make(map[uuid.UUID]*Conn)}
		r.sessions[sessionID] = entry
	}
	entry.mu.Lock()
	entry.conns[conn.ID] = conn
	entry.mu.Unlock()
}

// Leave removes conn from the session and drops the session entry once its
// last member is gone. Safe to call for a connection that never joined.
func (r *Registry) Leave(sessionID int64, conn *Conn) {
	r.mu.Lock()
	entry, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	delete(entry.conns, conn.ID)
	empty := len(entry.conns) == 0
	entry.mu.Unlock()

	conn.SetState(StateClosed)

	if empty {
		r.mu.Lock()
		// Re-check under the outer lock; a concurrent Join may have re-added
		// a member to the same session id.
		entry.mu.Lock()
		if len(entry.conns) == 0 && r.sessions[sessionID] == entry {
			delete(r.sessions, sessionID)
		}
		entry.mu.Unlock()
		r.mu.Unlock()
	}
}

// BroadcastExcept delivers msg to every member of the session other than
// sender. Delivery to an unready connection is skipped, not retried, and does
// not abort delivery to the remaining members.
func (r *Registry) BroadcastExcept(sessionID int64, sender *Conn, msg interface{}) {
	r.mu.Lock()
	entry, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	targets := make([]*Conn, 0, len(entry.conns))
	for _, c := range entry.conns {
		if sender != nil && c.ID == sender.ID {
			continue
		}
		targets = append(targets, c)
	}
	entry.mu.Unlock()

	for _, c := range targets {
		c.Write(msg)
	}
}

// Members returns the number of live connections in a session.
func (r *Registry) Members(sessionID int64) int {
	r.mu.Lock()
	entry, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.conns)
}
