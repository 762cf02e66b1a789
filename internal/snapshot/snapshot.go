// Package snapshot holds the derived per-division queue view and the short-lived
// cache that keeps broadcast ticks from hammering the store.
package snapshot

import (
	"time"

	"branchqueue/internal/models"
)

// TicketView is a ticket with its display fields denormalized.
type TicketView struct {
	ID              uint                `json:"id"`
	DivisionID      uint                `json:"division_id"`
	QueueNumber     string              `json:"queue_number"`
	CustomerName    string              `json:"customer_name,omitempty"`
	CustomerAccount string              `json:"customer_account,omitempty"`
	PriorityLevel   int                 `json:"priority_level"`
	Status          models.TicketStatus `json:"status"`
	IsSkipped       bool                `json:"is_skipped"`
	Position        int                 `json:"position"`
	TerminalID      *uint               `json:"terminal_id,omitempty"`
	TerminalNumber  *int                `json:"terminal_number,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	CalledAt        *time.Time          `json:"called_at,omitempty"`
}

// NewTicketView copies the displayable fields of t. The terminal association
// is used when it was preloaded.
func NewTicketView(t *models.Ticket) TicketView {
	v := TicketView{
		ID:              t.ID,
		DivisionID:      t.DivisionID,
		QueueNumber:     t.QueueNumber,
		CustomerName:    t.CustomerName,
		CustomerAccount: t.CustomerAccount,
		PriorityLevel:   t.PriorityLevel,
		Status:          t.Status,
		IsSkipped:       t.IsSkipped,
		Position:        t.Position,
		TerminalID:      t.TerminalID,
		CreatedAt:       t.CreatedAt,
		CalledAt:        t.CalledAt,
	}
	if t.Terminal != nil {
		n := t.Terminal.Number
		v.TerminalNumber = &n
	}
	return v
}

// Snapshot is the view of one division pushed to subscribers. It is always a
// full replacement of the previous one.
type Snapshot struct {
	DivisionID uint         `json:"division_id"`
	Waiting    []TicketView `json:"waiting"`     // serving order
	Skipped    []TicketView `json:"skipped"`     // oldest first
	InProgress []TicketView `json:"in_progress"` // most recently called first
	BuiltAt    time.Time    `json:"built_at"`
}

// Current returns the most recently called ticket of the division.
func (s *Snapshot) Current() *TicketView {
	if len(s.InProgress) == 0 {
		return nil
	}
	v := s.InProgress[0]
	return &v
}

// CurrentFor returns the ticket being served at the given terminal.
func (s *Snapshot) CurrentFor(terminalID uint) *TicketView {
	for i := range s.InProgress {
		if id := s.InProgress[i].TerminalID; id != nil && *id == terminalID {
			v := s.InProgress[i]
			return &v
		}
	}
	return nil
}

// WaitingTicket is a waiting ticket as listed on multi-division displays.
type WaitingTicket struct {
	TicketView
	DivisionName  string `json:"division_name"`
	EstimatedWait int    `json:"estimated_wait"` // minutes
}
