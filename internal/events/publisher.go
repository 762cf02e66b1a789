// Package events publishes ticket lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"branchqueue/internal/queue"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Event is the record value written for every committed queue change.
type Event struct {
	ID          string           `json:"id"`
	Kind        queue.ChangeKind `json:"kind"`
	DivisionID  uint             `json:"division_id"`
	TicketID    uint             `json:"ticket_id,omitempty"`
	QueueNumber string           `json:"queue_number,omitempty"`
	Status      string           `json:"status,omitempty"`
	TerminalID  *uint            `json:"terminal_id,omitempty"`
	Count       int64            `json:"count,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
	Source      string           `json:"source"`
}

// NewEvent describes change as an event.
func NewEvent(change queue.Change, source string) Event {
	e := Event{
		ID:         uuid.NewString(),
		Kind:       change.Kind,
		DivisionID: change.DivisionID,
		Count:      change.Count,
		OccurredAt: change.At,
		Source:     source,
	}
	if t := change.Ticket; t != nil {
		e.TicketID = t.ID
		e.QueueNumber = t.QueueNumber
		e.Status = string(t.Status)
		e.TerminalID = t.TerminalID
	}
	return e
}

// producer is the part of *kgo.Client the publisher needs.
type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Close()
}

type Config struct {
	Brokers     []string
	Topic       string
	ClientID    string
	ServiceName string
}

// KafkaPublisher writes queue changes asynchronously, keyed by division so a
// division's events stay ordered within one partition.
type KafkaPublisher struct {
	client producer
	topic  string
	source string
	log    *zap.Logger
}

func NewKafkaPublisher(cfg Config, log *zap.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "branchqueue.tickets"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "branchqueue-producer"
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return newKafkaPublisher(client, cfg.Topic, cfg.ServiceName, log), nil
}

func newKafkaPublisher(client producer, topic, source string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic, source: source, log: log}
}

// OnQueueChange enqueues the change without waiting for the broker.
func (p *KafkaPublisher) OnQueueChange(_ context.Context, change queue.Change) {
	event := NewEvent(change, p.source)
	value, err := json.Marshal(event)
	if err != nil {
		p.log.Error("failed to marshal queue event", zap.Error(err))
		return
	}

	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(strconv.FormatUint(uint64(change.DivisionID), 10)),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Kind)},
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "content_type", Value: []byte("application/json")},
		},
		Timestamp: event.OccurredAt,
	}

	// The request context ends with the HTTP response; delivery must outlive it.
	p.client.Produce(context.Background(), rec, func(r *kgo.Record, err error) {
		if err != nil {
			p.log.Warn("failed to publish queue event",
				zap.String("event_id", event.ID),
				zap.String("kind", string(event.Kind)),
				zap.Error(err))
		}
	})
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
