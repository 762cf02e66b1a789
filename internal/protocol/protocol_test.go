package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"branchqueue/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClient(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    Message
		wantErr error
	}{
		{
			name:  "subscribe",
			frame: `{"type":"SUBSCRIBE_DIVISION","payload":{"division_id":3}}`,
			want:  SubscribeDivision{DivisionID: 3},
		},
		{
			name:    "subscribe without division",
			frame:   `{"type":"SUBSCRIBE_DIVISION","payload":{}}`,
			wantErr: ErrMalformed,
		},
		{
			name:  "waiting list of every division",
			frame: `{"type":"GET_ALL_WAITING_QUEUES"}`,
			want:  GetAllWaitingQueues{},
		},
		{
			name:    "announcement without id",
			frame:   `{"type":"TRANSACTION_ANNOUNCED","payload":{"queue_id":9}}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "server only type",
			frame:   `{"type":"QUEUE_UPDATE","payload":{}}`,
			wantErr: ErrUnknownType,
		},
		{
			name:    "unknown type",
			frame:   `{"type":"PING"}`,
			wantErr: ErrUnknownType,
		},
		{
			name:    "not json",
			frame:   `hello`,
			wantErr: ErrMalformed,
		},
		{
			name:    "missing type",
			frame:   `{"payload":{}}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "wrong payload shape",
			frame:   `{"type":"SUBSCRIBE_DIVISION","payload":{"division_id":"three"}}`,
			wantErr: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClient([]byte(tt.frame))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeSubscribeWithTerminal(t *testing.T) {
	msg, err := DecodeClient([]byte(`{"type":"SUBSCRIBE_DIVISION","payload":{"division_id":1,"terminal_id":4,"terminal_number":2}}`))
	require.NoError(t, err)

	sub := msg.(SubscribeDivision)
	require.NotNil(t, sub.TerminalID)
	assert.Equal(t, uint(4), *sub.TerminalID)
	require.NotNil(t, sub.TerminalNumber)
	assert.Equal(t, 2, *sub.TerminalNumber)
}

func TestEncodeWrapsPayload(t *testing.T) {
	raw, err := Encode(ConnectionAck{Message: "connected", ConnectionID: "c1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"CONNECTION_ACK","payload":{"message":"connected","connection_id":"c1"}}`, string(raw))

	msg, err := DecodeServer(raw)
	require.NoError(t, err)
	assert.Equal(t, ConnectionAck{Message: "connected", ConnectionID: "c1"}, msg)
}

func TestAnnouncementKeepsTransactionOpaque(t *testing.T) {
	frame := `{"type":"TRANSACTION_ANNOUNCED","payload":{"queue_id":9,"transaction":{"teller":"x","amount":[1,2]},"announced_at":"2024-03-15T10:00:00Z","announcement_id":"a-1"}}`

	msg, err := DecodeClient([]byte(frame))
	require.NoError(t, err)
	a := msg.(TransactionAnnounced)
	assert.Equal(t, uint(9), a.QueueID)
	assert.Equal(t, "a-1", a.AnnouncementID)
	assert.JSONEq(t, `{"teller":"x","amount":[1,2]}`, string(a.Transaction))

	again, err := DecodeServer([]byte(frame))
	require.NoError(t, err)
	assert.Equal(t, a, again)
}

func TestNewQueueUpdate(t *testing.T) {
	term := uint(2)
	other := uint(5)
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	snap := &snapshot.Snapshot{
		DivisionID: 1,
		Waiting:    []snapshot.TicketView{{QueueNumber: "A-004"}},
		InProgress: []snapshot.TicketView{
			{QueueNumber: "A-003", TerminalID: &other},
			{QueueNumber: "A-002", TerminalID: &term},
		},
	}

	u := NewQueueUpdate(snap, &term, now)
	assert.Equal(t, uint(1), u.DivisionID)
	assert.Equal(t, "A-003", u.CurrentQueue.QueueNumber)
	assert.Equal(t, "A-002", u.TerminalQueue.QueueNumber)
	assert.NotNil(t, u.SkippedQueues)
	assert.Equal(t, now, u.Timestamp)

	raw, err := Encode(u)
	require.NoError(t, err)
	var env struct {
		Type    Type                       `json:"type"`
		Payload map[string]json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, TypeQueueUpdate, env.Type)
	assert.JSONEq(t, `[]`, string(env.Payload["skipped_queues"]), "empty lists are sent as arrays")

	plain := NewQueueUpdate(&snapshot.Snapshot{DivisionID: 1}, nil, now)
	assert.Nil(t, plain.CurrentQueue)
	assert.Nil(t, plain.TerminalQueue)
	assert.Empty(t, plain.Queues)
}
