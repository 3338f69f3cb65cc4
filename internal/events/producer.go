package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/carebridge/realtime-service/internal/models"
)

// Producer emits message lifecycle events for downstream consumers
// (notifications, audit). Delivery here is best-effort from the caller's
// point of view; the caller logs and continues on failure.
type Producer struct {
	writer *kafkago.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		Async:        false,
	}
	return &Producer{writer: w}
}

func (p *Producer) PublishMessageSent(ctx context.Context, m *models.Message) error {
	b, err := json.Marshal(map[string]any{
		"type":    "message.sent",
		"payload": m,
		"sentAt":  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(m.DoctorID + ":" + m.PatientID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
