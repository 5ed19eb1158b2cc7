// Package presence tracks which users are online, through which live
// connections, and which channel each user is currently viewing.
//
// State is process-local and not durable. A user may hold several
// connections; the active channel is per user and is cleared only when the
// user's last connection goes away.
//
// Locking: per-user state lives in a fixed array of shards picked by hashing
// the user key, so operations on different users rarely contend. The
// connection → user reverse index has its own lock. When both are needed
// the shard lock is taken first. Nothing here blocks on I/O.
package presence

import (
	"hash/fnv"
	"sync"
)

const shardCount = 64

type userState struct {
	conns  map[string]struct{}
	active string // "" means no active channel
}

type shard struct {
	mu    sync.Mutex
	users map[string]*userState
}

// Registry is the presence registry. Construct with New and share one per process.
type Registry struct {
	shards [shardCount]shard

	revMu  sync.RWMutex
	byConn map[string]string // connectionID → userID
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{byConn: make(map[string]string)}
	for i := range r.shards {
		r.shards[i].users = make(map[string]*userState)
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &r.shards[h.Sum32()%shardCount]
}

// Register records connID as a live connection of userID.
func (r *Registry) Register(connID, userID string) {
	s := r.shardFor(userID)
	s.mu.Lock()
	st, ok := s.users[userID]
	if !ok {
		st = &userState{conns: make(map[string]struct{})}
		s.users[userID] = st
	}
	st.conns[connID] = struct{}{}

	r.revMu.Lock()
	r.byConn[connID] = userID
	r.revMu.Unlock()
	s.mu.Unlock()
}

// Unregister drops connID. When it was the user's last connection the user
// goes offline and the active channel is cleared. Returns the owning user
// and whether that user is now offline. Unknown ids are a no-op.
func (r *Registry) Unregister(connID string) (userID string, offline bool) {
	r.revMu.RLock()
	userID, ok := r.byConn[connID]
	r.revMu.RUnlock()
	if !ok {
		return "", false
	}

	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	r.revMu.Lock()
	if _, still := r.byConn[connID]; !still {
		// A concurrent Unregister of the same connection got here first.
		r.revMu.Unlock()
		return "", false
	}
	delete(r.byConn, connID)
	r.revMu.Unlock()

	st, ok := s.users[userID]
	if !ok {
		return userID, true
	}
	delete(st.conns, connID)
	if len(st.conns) == 0 {
		delete(s.users, userID)
		return userID, true
	}
	return userID, false
}

// SetActiveChannel records the channel the user is viewing. An empty
// channelID clears it. No-op for offline users.
func (r *Registry) SetActiveChannel(userID, channelID string) bool {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.users[userID]
	if !ok {
		return false
	}
	st.active = channelID
	return true
}

// ActiveChannel returns the channel the user is viewing, if any.
func (r *Registry) ActiveChannel(userID string) (string, bool) {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.users[userID]
	if !ok || st.active == "" {
		return "", false
	}
	return st.active, true
}

// IsViewing reports whether userID is online and its active channel is channelID.
func (r *Registry) IsViewing(userID, channelID string) bool {
	active, ok := r.ActiveChannel(userID)
	return ok && active == channelID
}

// IsOnline reports whether userID holds at least one connection.
func (r *Registry) IsOnline(userID string) bool {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.users[userID]
	return ok && len(st.conns) > 0
}

// ConnectionsFor returns a snapshot of the user's connection ids.
func (r *Registry) ConnectionsFor(userID string) []string {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.users[userID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(st.conns))
	for id := range st.conns {
		out = append(out, id)
	}
	return out
}

// UserFor returns the user owning connID.
func (r *Registry) UserFor(connID string) (string, bool) {
	r.revMu.RLock()
	defer r.revMu.RUnlock()
	u, ok := r.byConn[connID]
	return u, ok
}

// OnlineCount returns the number of users with at least one connection.
func (r *Registry) OnlineCount() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		n += len(s.users)
		s.mu.Unlock()
	}
	return n
}

// Close drops all state. The registry stays usable afterwards.
func (r *Registry) Close() {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		s.users = make(map[string]*userState)
		s.mu.Unlock()
	}
	r.revMu.Lock()
	r.byConn = make(map[string]string)
	r.revMu.Unlock()
}
