package chat

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/realtime-service/internal/eligibility"
	"github.com/carebridge/realtime-service/internal/models"
	"github.com/carebridge/realtime-service/internal/registry"
	"github.com/carebridge/realtime-service/internal/rooms"
)

var (
	// ErrNotInitialized distinguishes "the presence subsystem was never
	// started" from "no one is online".
	ErrNotInitialized = errors.New("presence registry not initialized")

	// ErrEligibilityDenied means the pair may not currently exchange messages.
	ErrEligibilityDenied = errors.New("chat not allowed between these parties")

	ErrInvalidMessage = errors.New("invalid message")
	ErrNoMessageIDs   = errors.New("no message ids given")
)

// Conn is a live client connection as the gateway sees it.
type Conn interface {
	WriteJSON(v interface{}) error
}

// MessageStore is the durable message collaborator. The gateway never writes
// history itself; it relays and broadcasts around the store.
type MessageStore interface {
	Insert(ctx context.Context, m *models.Message) (*models.Message, error)
	History(ctx context.Context, doctorID, patientID string, limit int64, before time.Time) ([]*models.Message, error)
	MarkDelivered(ctx context.Context, ids []string) ([]models.ThreadUpdate, error)
	MarkRead(ctx context.Context, ids []string) ([]models.ThreadUpdate, error)
}

// Publisher emits an audit event after a message was durably stored.
type Publisher interface {
	PublishMessageSent(ctx context.Context, m *models.Message) error
}

// PresenceMirror reflects online flags into a shared store so sibling
// services can read presence without a socket.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID string, online bool) error
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// Gateway is the realtime core: it owns the connection registry and room
// membership, relays chat events between exactly two parties, and propagates
// typing and delivery status. All failures are logged and absorbed; nothing
// here propagates a panic or error back into the transport.
type Gateway struct {
	log    *zap.SugaredLogger
	reg    *registry.Registry
	rooms  *rooms.Manager
	store  MessageStore
	gate   eligibility.Checker
	events Publisher
	mirror PresenceMirror
}

// New builds a gateway. events and mirror may be nil; both are best-effort
// side channels.
func New(log *zap.SugaredLogger, store MessageStore, gate eligibility.Checker, events Publisher, mirror PresenceMirror) *Gateway {
	return &Gateway{
		log:    log,
		reg:    registry.New(),
		rooms:  rooms.NewManager(),
		store:  store,
		gate:   gate,
		events: events,
		mirror: mirror,
	}
}

// Join registers a connection under a user identity, subscribes its channels
// and broadcasts the online status. A join without a user id is dropped.
// A rejoin replaces the previous registration (last join wins); the displaced
// socket is not notified.
func (g *Gateway) Join(c Conn, userID string, role models.Role, doctorID, patientID string) {
	if userID == "" {
		g.log.Warnw("join without user id dropped", "role", role)
		return
	}
	_, rejoining := g.reg.Lookup(userID)
	g.reg.Register(registry.Entry{
		UserID:    userID,
		Conn:      c,
		Role:      role,
		DoctorID:  doctorID,
		PatientID: patientID,
	})
	g.rooms.Subscribe(rooms.ChannelName(rooms.KindUser, userID), c)

	switch role {
	case models.RoleDoctor:
		if doctorID != "" {
			g.rooms.Subscribe(rooms.ChannelName(rooms.KindDoctor, doctorID), c)
		}
		// A rejoin swaps the connection but is a no-op ONLINE transition;
		// listeners already saw this user come online.
		if !rejoining {
			g.rooms.BroadcastAll(models.Envelope{
				Event: models.EventDoctorOnline,
				Data:  map[string]any{"doctorId": doctorID, "userId": userID},
			})
		}
	case models.RolePatient:
		if patientID != "" {
			g.rooms.Subscribe(rooms.ChannelName(rooms.KindPatient, patientID), c)
		}
		if !rejoining {
			g.rooms.BroadcastAll(models.Envelope{
				Event: models.EventPatientOnline,
				Data:  map[string]any{"patientId": patientID, "userId": userID},
			})
		}
	}

	g.setMirror(userID, true)
	g.log.Infow("user joined", "userId", userID, "role", role)
}

// Leave removes the connection's registration and room membership and
// broadcasts the offline status. Leaving with an unknown handle is a no-op,
// so a stale socket closing after a rejoin cannot evict the fresh session.
func (g *Gateway) Leave(c Conn) {
	g.rooms.Drop(c)
	e, ok := g.reg.Unregister(c)
	if !ok {
		return
	}
	g.rooms.BroadcastAll(models.Envelope{
		Event: models.EventUserOffline,
		Data:  map[string]any{"userId": e.UserID, "role": e.Role},
	})
	g.setMirror(e.UserID, false)
	g.log.Infow("user left", "userId", e.UserID, "role", e.Role)
}

func (g *Gateway) setMirror(userID string, online bool) {
	if g.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.mirror.SetOnline(ctx, userID, online); err != nil {
		g.log.Warnw("presence mirror update failed", "userId", userID, "err", err)
	}
}

// CheckStatus answers whether userID is online right now. It fails fast when
// the registry was never created, so callers can tell "no one online" from
// "subsystem never started".
func (g *Gateway) CheckStatus(userID string) (bool, error) {
	if g == nil || g.reg == nil {
		return false, ErrNotInitialized
	}
	_, ok := g.reg.Lookup(userID)
	return ok, nil
}

// PresenceStatus is the HTTP-facing presence query: the local registry is
// consulted first, then the shared mirror, so presence written by other
// writers is still visible. Mirror read failures are logged and absorbed;
// the registry answer stands.
func (g *Gateway) PresenceStatus(ctx context.Context, userID string) (bool, error) {
	online, err := g.CheckStatus(userID)
	if err != nil || online {
		return online, err
	}
	if g.mirror == nil {
		return false, nil
	}
	mirrored, err := g.mirror.IsOnline(ctx, userID)
	if err != nil {
		g.log.Warnw("presence mirror read failed", "userId", userID, "err", err)
		return false, nil
	}
	return mirrored, nil
}

// OnlineUsers returns a snapshot of registered user ids.
func (g *Gateway) OnlineUsers() ([]string, error) {
	if g == nil || g.reg == nil {
		return nil, ErrNotInitialized
	}
	return g.reg.OnlineUserIDs(), nil
}
