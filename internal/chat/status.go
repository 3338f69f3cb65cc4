package chat

import (
	"context"
	"fmt"

	"github.com/carebridge/realtime-service/internal/models"
	"github.com/carebridge/realtime-service/internal/rooms"
)

// MarkDelivered transitions the given messages from SENT to DELIVERED and
// notifies each touched thread's author. Messages already past SENT are left
// alone; the status never regresses.
func (g *Gateway) MarkDelivered(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return ErrNoMessageIDs
	}
	updates, err := g.store.MarkDelivered(ctx, messageIDs)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	g.broadcastStatus(updates)
	return nil
}

// MarkRead transitions the given messages to READ (from SENT or DELIVERED)
// and notifies each touched thread's author.
func (g *Gateway) MarkRead(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return ErrNoMessageIDs
	}
	updates, err := g.store.MarkRead(ctx, messageIDs)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	g.broadcastStatus(updates)
	return nil
}

// broadcastStatus emits one chat:status event per touched thread, targeted at
// the room of the messages' original author, so the author's UI reflects the
// receipt. Batching by thread avoids one event per message.
func (g *Gateway) broadcastStatus(updates []models.ThreadUpdate) {
	for _, u := range updates {
		channel := rooms.ChannelName(rooms.KindDoctor, u.DoctorID)
		recipient := u.DoctorID
		if u.SenderRole == models.RolePatient {
			channel = rooms.ChannelName(rooms.KindPatient, u.PatientID)
			recipient = u.PatientID
		}
		g.rooms.Broadcast(channel, models.Envelope{
			Event: models.EventChatStatus,
			Data: map[string]any{
				"doctorId":    u.DoctorID,
				"patientId":   u.PatientID,
				"messageIds":  u.MessageIDs,
				"status":      u.Status,
				"recipientId": recipient,
			},
		})
	}
}
