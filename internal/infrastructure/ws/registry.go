package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/farmsight/relay/internal/infrastructure/auth"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrTenantRoom        = errors.New("tenant room cannot be left")
)

// ConnectionInfo is a read-only snapshot of one registered connection.
type ConnectionInfo struct {
	ID       string
	Identity auth.Identity
	Rooms    []RoomKey
	LastSeen time.Time
}

// Stats aggregates registry sizes for the metrics reporter.
type Stats struct {
	Connections int
	Sessions    int
	Rooms       int
}

type connEntry struct {
	client   *Client
	identity auth.Identity
	rooms    map[RoomKey]struct{}
	lastSeen time.Time
}

// Registry owns the canonical connection set, the per-user session grouping
// and the room membership index. A single lock guards all three maps so the
// bidirectional room/connection invariant is never observable mid-mutation:
// a connection is either fully present or fully absent.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*connEntry
	sessions map[string]map[string]struct{} // userID -> connection ids
	rooms    map[RoomKey]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[string]*connEntry),
		sessions: make(map[string]map[string]struct{}),
		rooms:    make(map[RoomKey]map[string]struct{}),
	}
}

// Register stores the connection, adds it to its user's session and joins the
// tenant room derived from the authenticated identity.
func (r *Registry) Register(cl *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &connEntry{
		client:   cl,
		identity: cl.Identity,
		rooms:    make(map[RoomKey]struct{}),
		lastSeen: time.Now(),
	}
	r.conns[cl.ID] = entry

	session, ok := r.sessions[cl.Identity.UserID]
	if !ok {
		session = make(map[string]struct{})
		r.sessions[cl.Identity.UserID] = session
	}
	session[cl.ID] = struct{}{}

	r.joinLocked(cl.ID, entry, TenantRoom(cl.Identity.TenantID))
}

// Unregister removes the connection from every room it belongs to, from its
// user's session and from the registry, all in one critical section. It is
// idempotent and reports whether the connection was present.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok {
		return false
	}

	for room := range entry.rooms {
		r.leaveLocked(connID, entry, room)
	}

	if session, ok := r.sessions[entry.identity.UserID]; ok {
		delete(session, connID)
		if len(session) == 0 {
			delete(r.sessions, entry.identity.UserID)
		}
	}

	delete(r.conns, connID)
	return true
}

// Join adds the connection to a room, creating the room lazily. Joining a
// room twice is a no-op. Unregistered connections are rejected.
func (r *Registry) Join(connID string, room RoomKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}

	r.joinLocked(connID, entry, room)
	return nil
}

// Leave removes the connection from a room and deletes the room when its
// membership becomes empty. Leaving a room the connection is not a member of
// is a no-op. Tenant rooms cannot be left while registered.
func (r *Registry) Leave(connID string, room RoomKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if room.IsTenant() {
		return ErrTenantRoom
	}

	r.leaveLocked(connID, entry, room)
	return nil
}

func (r *Registry) joinLocked(connID string, entry *connEntry, room RoomKey) {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[connID] = struct{}{}
	entry.rooms[room] = struct{}{}
}

func (r *Registry) leaveLocked(connID string, entry *connEntry, room RoomKey) {
	delete(entry.rooms, room)
	if members, ok := r.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}

// Members returns a snapshot of the clients currently in the room.
func (r *Registry) Members(room RoomKey) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[room]
	if !ok {
		return nil
	}

	clients := make([]*Client, 0, len(members))
	for connID := range members {
		if entry, ok := r.conns[connID]; ok {
			clients = append(clients, entry.client)
		}
	}
	return clients
}

func (r *Registry) MemberCount(room RoomKey) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Clients returns a snapshot of every registered client.
func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.conns))
	for _, entry := range r.conns {
		clients = append(clients, entry.client)
	}
	return clients
}

func (r *Registry) Get(connID string) (ConnectionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.conns[connID]
	if !ok {
		return ConnectionInfo{}, false
	}

	rooms := make([]RoomKey, 0, len(entry.rooms))
	for room := range entry.rooms {
		rooms = append(rooms, room)
	}

	return ConnectionInfo{
		ID:       connID,
		Identity: entry.identity,
		Rooms:    rooms,
		LastSeen: entry.lastSeen,
	}, true
}

// Touch refreshes the connection's liveness timestamp.
func (r *Registry) Touch(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.conns[connID]; ok {
		entry.lastSeen = time.Now()
	}
}

// SessionConnections returns the connection ids of one user's session.
func (r *Registry) SessionConnections(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[userID]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(session))
	for id := range session {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Connections: len(r.conns),
		Sessions:    len(r.sessions),
		Rooms:       len(r.rooms),
	}
}
