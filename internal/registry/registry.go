package registry

import (
	"sync"

	"github.com/carebridge/realtime-service/internal/models"
)

// Conn is the live transport handle the registry holds for each user. The
// registry owns the handle; no other component stores it.
type Conn interface {
	WriteJSON(v interface{}) error
}

// Entry is the process-lifetime record for one connected user.
type Entry struct {
	UserID    string
	Conn      Conn
	Role      models.Role
	DoctorID  string
	PatientID string
}

// Registry maps user ids to their live connection. At most one entry exists
// per user id; a rejoin replaces the previous entry (last join wins).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register inserts or overwrites the entry for e.UserID. A missing user id is
// ignored; callers log the dropped join.
func (r *Registry) Register(e Entry) {
	if e.UserID == "" {
		return
	}
	r.mu.Lock()
	r.entries[e.UserID] = e
	r.mu.Unlock()
}

func (r *Registry) Lookup(userID string) (Entry, bool) {
	r.mu.RLock()
	e, ok := r.entries[userID]
	r.mu.RUnlock()
	return e, ok
}

// Unregister removes the entry holding conn and returns it so the caller can
// broadcast the offline status. Unknown handles are a no-op: a stale socket
// closing after its user rejoined must not evict the fresh entry.
func (r *Registry) Unregister(conn Conn) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		if e.Conn == conn {
			delete(r.entries, id)
			return e, true
		}
	}
	return Entry{}, false
}

// OnlineUserIDs returns a snapshot of the currently registered user ids.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}
