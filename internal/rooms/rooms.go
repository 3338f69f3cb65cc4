package rooms

import "sync"

// Kind names the scope of a broadcast channel.
type Kind string

const (
	KindUser    Kind = "user"
	KindDoctor  Kind = "doctor"
	KindPatient Kind = "patient"
)

// ChannelName builds the channel key for a (kind, id) pair. Publish and
// subscribe sides both go through this function so the naming cannot drift.
func ChannelName(kind Kind, id string) string {
	return string(kind) + ":" + id
}

// Conn is the minimal write surface the manager needs from a subscriber.
type Conn interface {
	WriteJSON(v interface{}) error
}

// Manager tracks which connections are subscribed to which named channels.
// Membership is tied to the connection lifetime: Drop removes a connection
// from every channel at once when its socket closes.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]map[Conn]struct{}
	byConn   map[Conn][]string
}

func NewManager() *Manager {
	return &Manager{
		channels: make(map[string]map[Conn]struct{}),
		byConn:   make(map[Conn][]string),
	}
}

func (m *Manager) Subscribe(channel string, c Conn) {
	if channel == "" || c == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.channels[channel]
	if !ok {
		set = make(map[Conn]struct{})
		m.channels[channel] = set
	}
	if _, already := set[c]; already {
		return
	}
	set[c] = struct{}{}
	m.byConn[c] = append(m.byConn[c], channel)
}

// Drop removes c from every channel it joined.
func (m *Manager) Drop(c Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, channel := range m.byConn[c] {
		if set, ok := m.channels[channel]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(m.channels, channel)
			}
		}
	}
	delete(m.byConn, c)
}

// Broadcast writes v to every connection subscribed to channel. Write errors
// are the socket writer's problem; a dead subscriber is cleaned up when its
// read loop exits.
func (m *Manager) Broadcast(channel string, v interface{}) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for c := range m.channels[channel] {
		_ = c.WriteJSON(v)
	}
}

// BroadcastAll writes v to every subscribed connection exactly once.
func (m *Manager) BroadcastAll(v interface{}) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for c := range m.byConn {
		_ = c.WriteJSON(v)
	}
}
