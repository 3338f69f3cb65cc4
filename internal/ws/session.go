package ws

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

// session wraps a socket with a write lock so the gateway's broadcasts and
// the ping loop can share the connection safely. It is the connection handle
// the registry and rooms hold.
type session struct {
	id            string
	conn          *websocket.Conn
	mu            sync.Mutex
	writeDeadline time.Duration
	done          chan struct{}
	closeOnce     sync.Once
}

func newSession(id string, conn *websocket.Conn, writeDeadline time.Duration) *session {
	return &session{
		id:            id,
		conn:          conn,
		writeDeadline: writeDeadline,
		done:          make(chan struct{}),
	}
}

func (s *session) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeDeadline))
	return s.conn.WriteJSON(v)
}

func (s *session) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
