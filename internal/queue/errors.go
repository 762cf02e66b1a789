package queue

import "errors"

var (
	ErrDivisionNotFound  = errors.New("division not found")
	ErrTerminalNotFound  = errors.New("terminal not found")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrQueueEmpty        = errors.New("no waiting tickets in division")
	ErrInvalidTransition = errors.New("ticket status does not allow this action")
	ErrTerminalDivision  = errors.New("terminal belongs to another division")
	ErrInvalidPriority   = errors.New("priority level must not be negative")
)
