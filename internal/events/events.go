// Package events publishes content change notifications so downstream
// consumers (static site rebuilds, caches) can react to admin edits.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/segmentio/kafka-go"
)

const (
	TimelineReordered    = "timeline.reordered"
	TimelineEntryCreated = "timeline.entry.created"
	TimelineEntryUpdated = "timeline.entry.updated"
	TimelineEntryDeleted = "timeline.entry.deleted"
	FooterSettingsSaved  = "settings.footer.saved"
	SiteSettingsSaved    = "settings.site.saved"
)

// Event is the JSON envelope written to the topic. Key is the entity id and
// becomes the message key so events for one entity stay ordered.
type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// New returns a Kafka publisher, or a no-op one when brokers is empty.
func New(brokers []string, topic string, logger *log.Logger) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafkaPublisher(brokers, topic, logger)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	logger *log.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *log.Logger) *KafkaPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		logger: logger.WithPrefix("events"),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	p.logger.Debug("published", "type", event.Type, "key", event.Key)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(event Event) (kafka.Message, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %s: %w", event.Type, err)
	}
	return kafka.Message{
		Key:     []byte(event.Key),
		Value:   value,
		Headers: []kafka.Header{{Key: "type", Value: []byte(event.Type)}},
	}, nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }
