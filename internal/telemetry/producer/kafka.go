// Package producer emits session-transition events to Kafka for downstream
// observability consumers.
package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"edu-admin-console/internal/telemetry"
)

// kafkaEvent is the JSON wire form of a transition event.
type kafkaEvent struct {
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	State     string    `json:"state,omitempty"`
	EventType string    `json:"event_type"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// KafkaProducer implements telemetry.EventEmitter using segmentio/kafka-go.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a producer that writes transition events to topic.
// Returns nil if brokers is empty or topic is blank. Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Emit writes the event to Kafka, keyed by user id so one user's transitions
// stay in partition order.
func (p *KafkaProducer) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	value, err := json.Marshal(kafkaEvent{
		UserID:    event.UserID,
		Email:     event.Email,
		Role:      event.Role,
		State:     event.State,
		EventType: event.EventType,
		Source:    event.Source,
		CreatedAt: createdAt,
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
	})
}

// Close flushes and closes the underlying writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
