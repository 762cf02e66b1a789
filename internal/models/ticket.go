package models

import (
	"time"

	"gorm.io/gorm"
)

type TicketStatus string

const (
	StatusWaiting    TicketStatus = "waiting"
	StatusInProgress TicketStatus = "in_progress"
	StatusCompleted  TicketStatus = "completed"
	StatusExpired    TicketStatus = "expired"
)

// Ticket is one customer's place in a division's line.
type Ticket struct {
	gorm.Model
	DivisionID      uint         `gorm:"not null;uniqueIndex:idx_ticket_division_day_number,priority:1;index:idx_ticket_division_status"`
	Division        Division     `gorm:"foreignKey:DivisionID"`
	QueueDate       string       `gorm:"size:10;not null;uniqueIndex:idx_ticket_division_day_number,priority:2"` // YYYY-MM-DD
	QueueNumber     string       `gorm:"size:32;not null;uniqueIndex:idx_ticket_division_day_number,priority:3"`
	CustomerName    string
	CustomerAccount string
	PriorityLevel   int          `gorm:"not null;default:0"`
	Status          TicketStatus `gorm:"size:16;not null;index:idx_ticket_division_status"`
	IsSkipped       bool         `gorm:"not null;default:false"`
	Position        int          `gorm:"index;not null"` // Serving order among the division's waiting tickets
	TerminalID      *uint        `gorm:"index"`
	Terminal        *Terminal    `gorm:"foreignKey:TerminalID"`
	CalledAt        *time.Time
	CompletedAt     *time.Time
}

// InWaitingOrder reports whether the ticket takes part in the normal serving order.
func (t *Ticket) InWaitingOrder() bool {
	return t.Status == StatusWaiting && !t.IsSkipped
}

// Finished reports whether the ticket reached a terminal status.
func (t *Ticket) Finished() bool {
	return t.Status == StatusCompleted || t.Status == StatusExpired
}
