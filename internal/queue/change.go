package queue

import (
	"context"
	"time"

	"branchqueue/internal/models"
)

type ChangeKind string

const (
	TicketCreated   ChangeKind = "ticket.created"
	TicketCalled    ChangeKind = "ticket.called"
	TicketSkipped   ChangeKind = "ticket.skipped"
	TicketCompleted ChangeKind = "ticket.completed"
	TicketDeleted   ChangeKind = "ticket.deleted"
	TicketsExpired  ChangeKind = "tickets.expired"
)

// Change describes one committed mutation of a division's queue.
type Change struct {
	Kind       ChangeKind
	DivisionID uint
	Ticket     *models.Ticket // nil for TicketsExpired
	Count      int64          // tickets affected by TicketsExpired
	At         time.Time
}

// Invalidator drops cached state of a division. It runs synchronously after
// every commit, before any listener is told about the change.
type Invalidator interface {
	Invalidate(ctx context.Context, divisionID uint)
}

// ChangeListener is notified after a mutation committed and the division's
// cache entry was invalidated. Implementations must not block.
type ChangeListener interface {
	OnQueueChange(ctx context.Context, change Change)
}

// ChangeListenerFunc adapts a function to ChangeListener.
type ChangeListenerFunc func(ctx context.Context, change Change)

func (f ChangeListenerFunc) OnQueueChange(ctx context.Context, change Change) {
	f(ctx, change)
}
