package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebridge/realtime-service/internal/auth"
	"github.com/carebridge/realtime-service/internal/chat"
	"github.com/carebridge/realtime-service/internal/models"
)

// Handler owns one socket's lifecycle: authenticate, read, dispatch, clean
// up. Every dispatched event runs behind a recover boundary so a bad payload
// can never take the connection's read loop (or the process) down.
type Handler struct {
	gw            *chat.Gateway
	validator     *auth.Validator
	log           *zap.SugaredLogger
	pingInterval  time.Duration
	readDeadline  time.Duration
	writeDeadline time.Duration
	maxMsgSize    int64
}

func NewHandler(gw *chat.Gateway, validator *auth.Validator, log *zap.SugaredLogger, pingInterval, readDeadline, writeDeadline time.Duration, maxMsgSize int64) *Handler {
	return &Handler{
		gw:            gw,
		validator:     validator,
		log:           log,
		pingInterval:  pingInterval,
		readDeadline:  readDeadline,
		writeDeadline: writeDeadline,
		maxMsgSize:    maxMsgSize,
	}
}

// Handle runs the connection until the client goes away. It blocks; the
// fiber websocket middleware calls it on its own goroutine per connection.
func (h *Handler) Handle(conn *websocket.Conn) {
	claims, err := h.validator.Validate(conn.Query("token"))
	if err != nil {
		h.log.Warnw("socket rejected: bad token", "err", err)
		_ = conn.Close()
		return
	}

	s := newSession(uuid.NewString(), conn, h.writeDeadline)
	defer func() {
		h.gw.Leave(s)
		s.close()
	}()

	go h.pingLoop(s)

	conn.SetReadLimit(h.maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readDeadline))
	})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.log.Debugw("unparseable frame dropped", "socket", s.id)
			continue
		}
		h.dispatch(s, claims, env)
	}
}

func (h *Handler) pingLoop(s *session) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.ping(); err != nil {
				return
			}
		}
	}
}

// dispatch routes one inbound envelope. Handlers never propagate errors or
// panics back to the read loop.
func (h *Handler) dispatch(s *session, claims *auth.Claims, env models.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorw("event handler panic absorbed", "event", env.Event, "panic", r)
		}
	}()
	data := env.Data

	switch env.Event {
	case models.EventJoin:
		userID := models.CoerceID(data["userId"])
		if userID == "" {
			h.log.Warnw("join without user id ignored", "socket", s.id)
			return
		}
		if userID != claims.UserID {
			h.log.Warnw("join identity does not match token", "socket", s.id, "userId", userID)
			return
		}
		role := models.Role(models.CoerceID(data["role"]))
		if role == "" {
			role = claims.Role
		}
		doctorID := models.CoerceID(data["doctorId"])
		if doctorID == "" {
			doctorID = claims.DoctorID
		}
		patientID := models.CoerceID(data["patientId"])
		if patientID == "" {
			patientID = claims.PatientID
		}
		h.gw.Join(s, userID, role, doctorID, patientID)

	case models.EventChatSend:
		h.gw.Relay(models.CoerceID(data["senderId"]), models.CoerceID(data["recipientId"]), data["message"])

	case models.EventChatTyping:
		isTyping, _ := data["isTyping"].(bool)
		h.gw.Typing(models.CoerceID(data["senderId"]), models.CoerceID(data["recipientId"]), isTyping)

	case models.EventCheckStatus:
		userID := models.CoerceID(data["userId"])
		online, err := h.gw.CheckStatus(userID)
		if err != nil {
			h.log.Errorw("presence query failed", "userId", userID, "err", err)
			return
		}
		if err := s.WriteJSON(models.Envelope{
			Event: models.EventStatusResponse,
			Data:  map[string]any{"userId": userID, "isOnline": online},
		}); err != nil {
			h.log.Warnw("status response write failed", "socket", s.id, "err", err)
		}

	case models.EventChatStatus:
		h.handleStatus(data)

	default:
		h.log.Debugw("unknown event ignored", "event", env.Event, "socket", s.id)
	}
}

func (h *Handler) handleStatus(data map[string]any) {
	ids := stringIDs(data["messageIds"])
	if single := models.CoerceID(data["messageId"]); single != "" {
		ids = append(ids, single)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch models.Status(models.CoerceID(data["status"])) {
	case models.StatusDelivered:
		err = h.gw.MarkDelivered(ctx, ids)
	case models.StatusRead:
		err = h.gw.MarkRead(ctx, ids)
	default:
		h.log.Warnw("status update with unknown status ignored", "status", data["status"])
		return
	}
	if err != nil {
		h.log.Warnw("status update failed", "err", err)
	}
}

func stringIDs(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if id := models.CoerceID(r); id != "" {
			out = append(out, id)
		}
	}
	return out
}
