// Package protocol defines the JSON messages exchanged over the queue
// broadcast websocket. Every frame is an envelope {"type": ..., "payload": ...}.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"branchqueue/internal/snapshot"
)

type Type string

// Client to server.
const (
	TypeSubscribeDivision   Type = "SUBSCRIBE_DIVISION"
	TypeGetAllWaitingQueues Type = "GET_ALL_WAITING_QUEUES"
)

// Server to client.
const (
	TypeConnectionAck       Type = "CONNECTION_ACK"
	TypeQueueUpdate         Type = "QUEUE_UPDATE"
	TypeWaitingQueuesUpdate Type = "WAITING_QUEUES_UPDATE"
)

// TypeTransactionAnnounced travels both ways: a display sends it and the
// server relays it to every other connection.
const TypeTransactionAnnounced Type = "TRANSACTION_ANNOUNCED"

var (
	// ErrUnknownType is returned for a well-formed envelope whose type is not
	// valid in the decoding direction. Receivers ignore such messages.
	ErrUnknownType = errors.New("unknown message type")
	ErrMalformed   = errors.New("malformed message")
)

// Message is implemented by every payload type.
type Message interface {
	MessageType() Type
}

type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SubscribeDivision struct {
	DivisionID     uint  `json:"division_id"`
	TerminalID     *uint `json:"terminal_id,omitempty"`
	TerminalNumber *int  `json:"terminal_number,omitempty"`
}

func (SubscribeDivision) MessageType() Type { return TypeSubscribeDivision }

func (m SubscribeDivision) validate() error {
	if m.DivisionID == 0 {
		return fmt.Errorf("%w: division_id is required", ErrMalformed)
	}
	return nil
}

// GetAllWaitingQueues asks for a one-shot waiting list of one division, or of
// all divisions when DivisionID is nil.
type GetAllWaitingQueues struct {
	DivisionID *uint `json:"division_id,omitempty"`
}

func (GetAllWaitingQueues) MessageType() Type { return TypeGetAllWaitingQueues }

type ConnectionAck struct {
	Message      string `json:"message"`
	ConnectionID string `json:"connection_id,omitempty"`
}

func (ConnectionAck) MessageType() Type { return TypeConnectionAck }

// QueueUpdate is the full state of one division. Receivers replace their
// previous state with it; it is never a delta.
type QueueUpdate struct {
	DivisionID    uint                  `json:"division_id"`
	Queues        []snapshot.TicketView `json:"queues"`
	CurrentQueue  *snapshot.TicketView  `json:"current_queue"`
	SkippedQueues []snapshot.TicketView `json:"skipped_queues"`
	InProgress    []snapshot.TicketView `json:"in_progress"`
	TerminalID    *uint                 `json:"terminal_id,omitempty"`
	TerminalQueue *snapshot.TicketView  `json:"terminal_queue,omitempty"`
	Timestamp     time.Time             `json:"timestamp"`
}

func (QueueUpdate) MessageType() Type { return TypeQueueUpdate }

// NewQueueUpdate renders snap for one connection. With a terminal id the
// terminal's own current ticket is included.
func NewQueueUpdate(snap *snapshot.Snapshot, terminalID *uint, now time.Time) QueueUpdate {
	u := QueueUpdate{
		DivisionID:    snap.DivisionID,
		Queues:        nonNil(snap.Waiting),
		CurrentQueue:  snap.Current(),
		SkippedQueues: nonNil(snap.Skipped),
		InProgress:    nonNil(snap.InProgress),
		TerminalID:    terminalID,
		Timestamp:     now,
	}
	if terminalID != nil {
		u.TerminalQueue = snap.CurrentFor(*terminalID)
	}
	return u
}

func nonNil(v []snapshot.TicketView) []snapshot.TicketView {
	if v == nil {
		return []snapshot.TicketView{}
	}
	return v
}

type WaitingQueuesUpdate struct {
	Total  int                      `json:"total"`
	Queues []snapshot.WaitingTicket `json:"queues"`
}

func (WaitingQueuesUpdate) MessageType() Type { return TypeWaitingQueuesUpdate }

// TransactionAnnounced asks displays to call out a ticket. Transaction is
// opaque to the server.
type TransactionAnnounced struct {
	QueueID        uint            `json:"queue_id"`
	Transaction    json.RawMessage `json:"transaction,omitempty"`
	AnnouncedAt    time.Time       `json:"announced_at"`
	AnnouncementID string          `json:"announcement_id"`
}

func (TransactionAnnounced) MessageType() Type { return TypeTransactionAnnounced }

func (m TransactionAnnounced) validate() error {
	if m.AnnouncementID == "" {
		return fmt.Errorf("%w: announcement_id is required", ErrMalformed)
	}
	return nil
}

// Encode wraps m in its envelope.
func Encode(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", m.MessageType(), err)
	}
	return json.Marshal(Envelope{Type: m.MessageType(), Payload: payload})
}

// DecodeClient parses a frame sent by a client.
func DecodeClient(data []byte) (Message, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case TypeSubscribeDivision:
		return decodePayload[SubscribeDivision](env)
	case TypeGetAllWaitingQueues:
		return decodePayload[GetAllWaitingQueues](env)
	case TypeTransactionAnnounced:
		return decodePayload[TransactionAnnounced](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// DecodeServer parses a frame sent by the server.
func DecodeServer(data []byte) (Message, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case TypeConnectionAck:
		return decodePayload[ConnectionAck](env)
	case TypeQueueUpdate:
		return decodePayload[QueueUpdate](env)
	case TypeWaitingQueuesUpdate:
		return decodePayload[WaitingQueuesUpdate](env)
	case TypeTransactionAnnounced:
		return decodePayload[TransactionAnnounced](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

type validator interface {
	validate() error
}

func decodePayload[T Message](env Envelope) (Message, error) {
	var m T
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
		}
	}
	if v, ok := any(m).(validator); ok {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}
	return m, nil
}
