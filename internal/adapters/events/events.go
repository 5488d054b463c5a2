// Package events publishes review transitions to a Kafka topic.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// TransitionEvent is the wire form of one committed transition.
type TransitionEvent struct {
	EventID       string    `json:"event_id"`
	ApplicationID string    `json:"application_id"`
	Action        string    `json:"action"`
	From          string    `json:"from_stage"`
	To            string    `json:"to_stage"`
	Actor         string    `json:"actor"`
	Assignee      string    `json:"assignee,omitempty"`
	Outcome       string    `json:"outcome,omitempty"`
	Version       int64     `json:"version"`
	At            time.Time `json:"at"`
}

// Publisher emits transition events.
type Publisher interface {
	Publish(ctx context.Context, ev TransitionEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by application id, so events of one
// application stay ordered within a partition.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher returns a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, ev TransitionEvent) error {
	msg, err := encode(ev)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

func encode(ev TransitionEvent) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.ApplicationID),
		Value: value,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("application.transition")},
			{Key: "action", Value: []byte(ev.Action)},
		},
	}, nil
}

// NopPublisher drops events. Used when no brokers are configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, TransitionEvent) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
