// Package notification publishes user and operator notifications.
// Delivery is fire-and-forget: failures are logged and swallowed so a
// broken notification pipeline can never block an order transition.
package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Severity classifies operator alerts.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Message is a notification payload.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notifier delivers notifications best-effort.
type Notifier interface {
	// Notify sends a message to a user.
	Notify(ctx context.Context, userID uuid.UUID, msg Message)

	// Alert sends a message to the operator channel with a severity.
	Alert(ctx context.Context, severity Severity, msg Message)
}

// envelope is the wire format published to the notification topic.
type envelope struct {
	UserID    string   `json:"userId,omitempty"`
	Severity  Severity `json:"severity,omitempty"`
	Message   Message  `json:"message"`
	CreatedAt string   `json:"createdAt"`
}

// kafkaNotifier publishes notifications to a Kafka topic consumed by
// the downstream notification service.
type kafkaNotifier struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewKafkaNotifier creates a Kafka-backed notifier.
func NewKafkaNotifier(brokers []string, topic string, logger zerolog.Logger) Notifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &kafkaNotifier{
		writer: writer,
		logger: logger.With().Str("component", "kafka-notifier").Logger(),
	}
}

func (n *kafkaNotifier) Notify(ctx context.Context, userID uuid.UUID, msg Message) {
	n.publish(ctx, "user-"+userID.String(), envelope{
		UserID:    userID.String(),
		Message:   msg,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (n *kafkaNotifier) Alert(ctx context.Context, severity Severity, msg Message) {
	n.publish(ctx, "operator", envelope{
		Severity:  severity,
		Message:   msg,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (n *kafkaNotifier) publish(ctx context.Context, key string, env envelope) {
	value, err := json.Marshal(env)
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to encode notification")
		return
	}

	// A short independent timeout so a slow broker cannot hold up the
	// caller's request or job.
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := n.writer.WriteMessages(publishCtx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	}); err != nil {
		n.logger.Warn().
			Err(err).
			Str("key", key).
			Str("title", env.Message.Title).
			Msg("failed to publish notification, dropping")
	}
}

// Close flushes and closes the underlying writer.
func (n *kafkaNotifier) Close() error {
	return n.writer.Close()
}

// nopNotifier discards everything. Used when notifications are disabled.
type nopNotifier struct{}

// NewNopNotifier creates a notifier that discards all messages.
func NewNopNotifier() Notifier {
	return nopNotifier{}
}

func (nopNotifier) Notify(context.Context, uuid.UUID, Message) {}
func (nopNotifier) Alert(context.Context, Severity, Message)   {}
