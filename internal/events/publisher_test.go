package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"branchqueue/internal/models"
	"branchqueue/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeProducer) Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.mu.Lock()
	f.records = append(f.records, r)
	f.mu.Unlock()
	if ctx.Err() != nil {
		promise(r, ctx.Err())
		return
	}
	promise(r, f.err)
}

func (f *fakeProducer) Close() { f.closed = true }

func header(r *kgo.Record, key string) string {
	for _, h := range r.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishesChangeKeyedByDivision(t *testing.T) {
	p := &fakeProducer{}
	pub := newKafkaPublisher(p, "branchqueue.tickets", "branchqueue", zap.NewNop())

	term := uint(3)
	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub.OnQueueChange(ctx, queue.Change{
		Kind:       queue.TicketCalled,
		DivisionID: 12,
		Ticket: &models.Ticket{
			Model:       gorm.Model{ID: 40},
			QueueNumber: "A-007",
			Status:      models.StatusInProgress,
			TerminalID:  &term,
		},
		At: at,
	})

	require.Len(t, p.records, 1)
	r := p.records[0]
	assert.Equal(t, "branchqueue.tickets", r.Topic)
	assert.Equal(t, "12", string(r.Key))
	assert.Equal(t, at, r.Timestamp)
	assert.Equal(t, "ticket.called", header(r, "event_type"))
	assert.Equal(t, "application/json", header(r, "content_type"))

	var e Event
	require.NoError(t, json.Unmarshal(r.Value, &e))
	assert.Equal(t, header(r, "event_id"), e.ID)
	assert.Equal(t, uint(40), e.TicketID)
	assert.Equal(t, "A-007", e.QueueNumber)
	assert.Equal(t, "in_progress", e.Status)
	assert.Equal(t, &term, e.TerminalID)
	assert.Equal(t, "branchqueue", e.Source)
}

func TestExpiryEventCarriesCount(t *testing.T) {
	e := NewEvent(queue.Change{Kind: queue.TicketsExpired, DivisionID: 2, Count: 9}, "sweeper")
	assert.EqualValues(t, 9, e.Count)
	assert.Zero(t, e.TicketID)
	assert.NotEmpty(t, e.ID)
}

func TestDeliveryFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := &fakeProducer{err: errors.New("broker unavailable")}
	pub := newKafkaPublisher(p, "t", "s", zap.New(core))

	pub.OnQueueChange(context.Background(), queue.Change{Kind: queue.TicketCreated, DivisionID: 1})
	require.Equal(t, 1, logs.FilterMessage("failed to publish queue event").Len())

	pub.Close()
	assert.True(t, p.closed)
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(Config{}, zap.NewNop())
	assert.Error(t, err)
}
