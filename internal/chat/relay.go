package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/carebridge/realtime-service/internal/models"
	"github.com/carebridge/realtime-service/internal/rooms"
)

// Relay forwards a socket-originated message to the recipient's live
// connection. It is fire-and-forget: malformed input and an offline recipient
// are both absorbed with a log line, never surfaced to the sender. Durability
// is the HTTP send path's job, so dropping the realtime push loses nothing.
func (g *Gateway) Relay(senderID, recipientID string, message any) {
	if senderID == "" || recipientID == "" {
		g.log.Warnw("relay dropped: missing ids", "senderId", senderID, "recipientId", recipientID)
		return
	}
	entry, ok := g.reg.Lookup(recipientID)
	if !ok {
		g.log.Debugw("relay skipped: recipient offline", "recipientId", recipientID)
		return
	}
	err := entry.Conn.WriteJSON(models.Envelope{
		Event: models.EventChatReceive,
		Data: map[string]any{
			"senderId":    senderID,
			"recipientId": recipientID,
			"message":     message,
		},
	})
	if err != nil {
		g.log.Warnw("relay write failed", "recipientId", recipientID, "err", err)
	}
}

// Typing forwards a typing indicator to the other party's user channel.
// Nothing is persisted and nothing is acknowledged.
func (g *Gateway) Typing(senderID, recipientID string, isTyping bool) {
	if senderID == "" || recipientID == "" {
		g.log.Warnw("typing dropped: missing ids", "senderId", senderID, "recipientId", recipientID)
		return
	}
	g.rooms.Broadcast(rooms.ChannelName(rooms.KindUser, recipientID), models.Envelope{
		Event: models.EventChatTyping,
		Data: map[string]any{
			"senderId":    senderID,
			"recipientId": recipientID,
			"isTyping":    isTyping,
		},
	})
}

// Send is the request-originated path: gate, persist, then broadcast to the
// recipient's role room. Persistence happens before the broadcast, so a
// client that reconnects and re-fetches history never sees a message that
// was pushed but not stored. The eligibility gate is re-checked on every
// send because appointment state changes over time.
func (g *Gateway) Send(ctx context.Context, m *models.Message) (*models.Message, error) {
	if m == nil || m.Text == "" || m.DoctorID == "" || m.PatientID == "" {
		return nil, ErrInvalidMessage
	}
	if m.SenderRole != models.RoleDoctor && m.SenderRole != models.RolePatient {
		return nil, ErrInvalidMessage
	}

	allowed, err := g.gate.IsChatAllowed(ctx, m.PatientID, m.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("eligibility check: %w", err)
	}
	if !allowed {
		return nil, ErrEligibilityDenied
	}

	stored, err := g.store.Insert(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	senderID, recipientID := stored.DoctorID, stored.PatientID
	channel := rooms.ChannelName(rooms.KindPatient, stored.PatientID)
	if stored.SenderRole == models.RolePatient {
		senderID, recipientID = stored.PatientID, stored.DoctorID
		channel = rooms.ChannelName(rooms.KindDoctor, stored.DoctorID)
	}
	g.rooms.Broadcast(channel, models.Envelope{
		Event: models.EventChatReceive,
		Data: map[string]any{
			"senderId":    senderID,
			"recipientId": recipientID,
			"message":     stored,
		},
	})

	if g.events != nil {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.events.PublishMessageSent(pubCtx, stored); err != nil {
			g.log.Warnw("message.sent event publish failed", "messageId", stored.ID, "err", err)
		}
	}
	return stored, nil
}

// History returns thread history in chronological order.
func (g *Gateway) History(ctx context.Context, doctorID, patientID string, limit int64, before time.Time) ([]*models.Message, error) {
	return g.store.History(ctx, doctorID, patientID, limit, before)
}
