// Package ws is the queue broadcast server: it keeps the live websocket
// connections, their division subscriptions and pushes full queue state to
// them on subscribe, on every tick and right after mutations.
package ws

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"branchqueue/internal/protocol"
	"branchqueue/internal/queue"
	"branchqueue/internal/snapshot"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SnapshotSource returns a division's snapshot, cached or fresh.
type SnapshotSource interface {
	Get(ctx context.Context, divisionID uint) (*snapshot.Snapshot, error)
}

// WaitingSource lists waiting tickets across divisions straight from the store.
type WaitingSource interface {
	AllWaiting(ctx context.Context, divisionID *uint) (*queue.WaitingList, error)
}

type Config struct {
	TickInterval time.Duration
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	QueryTimeout time.Duration
	SendBuffer   int
	ReadLimit    int64
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongWait <= c.PingInterval {
		c.PongWait = c.PingInterval + c.PingInterval/3
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 5 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 8 << 10
	}
	return c
}

type subscribeRequest struct {
	client *Client
	sub    protocol.SubscribeDivision
}

type relayMessage struct {
	from *Client
	data []byte
}

// target is one connection of a division push, with the terminal it shows.
type target struct {
	client     *Client
	terminalID *uint
}

// Hub owns the connection registry. All registry state below is touched only
// by the Run goroutine.
type Hub struct {
	snapshots SnapshotSource
	waiting   WaitingSource
	cfg       Config
	log       *zap.Logger
	now       func() time.Time
	upgrader  websocket.Upgrader

	register   chan *Client
	unregister chan *Client
	subscribe  chan subscribeRequest
	notify     chan uint
	relay      chan relayMessage
	pushDone   chan uint
	stopped    chan struct{}

	clients   map[*Client]struct{}
	subs      map[*Client]protocol.SubscribeDivision
	divisions map[uint]map[*Client]struct{}
	inFlight  map[uint]bool

	connections atomic.Int64
}

func NewHub(snapshots SnapshotSource, waiting WaitingSource, cfg Config, log *zap.Logger) *Hub {
	cfg = cfg.withDefaults()
	return &Hub{
		snapshots: snapshots,
		waiting:   waiting,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscribeRequest),
		notify:     make(chan uint, 256),
		relay:      make(chan relayMessage, 64),
		pushDone:   make(chan uint),
		stopped:    make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		subs:       make(map[*Client]protocol.SubscribeDivision),
		divisions:  make(map[uint]map[*Client]struct{}),
		inFlight:   make(map[uint]bool),
	}
}

// Run processes registry events and broadcast ticks until ctx is cancelled,
// then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.TickInterval)
	defer func() {
		ticker.Stop()
		for c := range h.clients {
			c.close()
		}
		close(h.stopped)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.connections.Add(1)
		case c := <-h.unregister:
			h.remove(c)
		case req := <-h.subscribe:
			h.handleSubscribe(ctx, req)
		case id := <-h.notify:
			h.startPush(ctx, id)
		case id := <-h.pushDone:
			delete(h.inFlight, id)
		case m := <-h.relay:
			for c := range h.clients {
				if c != m.from {
					c.trySend(m.data)
				}
			}
		case <-ticker.C:
			for id := range h.divisions {
				h.startPush(ctx, id)
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.unindex(c)
	delete(h.clients, c)
	h.connections.Add(-1)
	c.close()
}

func (h *Hub) unindex(c *Client) {
	sub, ok := h.subs[c]
	if !ok {
		return
	}
	delete(h.subs, c)
	if set := h.divisions[sub.DivisionID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.divisions, sub.DivisionID)
		}
	}
}

func (h *Hub) handleSubscribe(ctx context.Context, req subscribeRequest) {
	c := req.client
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.unindex(c)
	h.subs[c] = req.sub
	set := h.divisions[req.sub.DivisionID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.divisions[req.sub.DivisionID] = set
	}
	set[c] = struct{}{}

	h.log.Debug("division subscribed",
		zap.String("conn_id", c.id),
		zap.Uint("division_id", req.sub.DivisionID))
	go h.push(ctx, req.sub.DivisionID, []target{{client: c, terminalID: req.sub.TerminalID}}, false)
}

// startPush schedules one push to every subscriber of the division unless the
// previous one has not finished yet.
func (h *Hub) startPush(ctx context.Context, divisionID uint) {
	set := h.divisions[divisionID]
	if len(set) == 0 || h.inFlight[divisionID] {
		return
	}
	targets := make([]target, 0, len(set))
	for c := range set {
		targets = append(targets, target{client: c, terminalID: h.subs[c].TerminalID})
	}
	h.inFlight[divisionID] = true
	go h.push(ctx, divisionID, targets, true)
}

// push runs off the event loop. A failing division only loses this cycle.
func (h *Hub) push(ctx context.Context, divisionID uint, targets []target, tracked bool) {
	if tracked {
		defer func() {
			select {
			case h.pushDone <- divisionID:
			case <-h.stopped:
			}
		}()
	}

	qctx, cancel := context.WithTimeout(ctx, h.cfg.QueryTimeout)
	snap, err := h.snapshots.Get(qctx, divisionID)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			h.log.Warn("build queue snapshot failed", zap.Uint("division_id", divisionID), zap.Error(err))
		}
		return
	}

	now := h.now()
	var shared []byte
	for _, t := range targets {
		var msg []byte
		if t.terminalID == nil && shared != nil {
			msg = shared
		} else {
			msg, err = protocol.Encode(protocol.NewQueueUpdate(snap, t.terminalID, now))
			if err != nil {
				h.log.Error("encode queue update", zap.Uint("division_id", divisionID), zap.Error(err))
				return
			}
			if t.terminalID == nil {
				shared = msg
			}
		}
		t.client.trySend(msg)
	}
}

// OnQueueChange pushes the changed division right away. The cache entry is
// already invalidated when it is called.
func (h *Hub) OnQueueChange(_ context.Context, change queue.Change) {
	h.Notify(change.DivisionID)
}

// Notify schedules an immediate push of the division. It never blocks; a
// dropped notification is covered by the next tick.
func (h *Hub) Notify(divisionID uint) {
	select {
	case h.notify <- divisionID:
	default:
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	return int(h.connections.Load())
}

// ServeWS upgrades the request to a websocket and serves it until it closes.
//
// @Summary      Queue broadcast websocket
// @Description  Upgrades to a websocket speaking the queue broadcast protocol
// @Tags         broadcast
// @Success      101
// @Router       /api/ws [get]
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
		done: make(chan struct{}),
	}

	ack, err := protocol.Encode(protocol.ConnectionAck{
		Message:      "connected to queue broadcast",
		ConnectionID: client.id,
	})
	if err == nil {
		client.send <- ack
	}

	select {
	case h.register <- client:
	case <-h.stopped:
		_ = conn.Close()
		return
	}
	h.log.Debug("websocket connected", zap.String("conn_id", client.id))

	go client.writePump()
	client.readPump()
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

func (h *Hub) subscribeClient(c *Client, sub protocol.SubscribeDivision) {
	select {
	case h.subscribe <- subscribeRequest{client: c, sub: sub}:
	case <-h.stopped:
	case <-c.done:
	}
}

func (h *Hub) relayFrom(c *Client, data []byte) {
	select {
	case h.relay <- relayMessage{from: c, data: data}:
	case <-h.stopped:
	case <-c.done:
	}
}

// pullWaiting answers GET_ALL_WAITING_QUEUES on the connection's own goroutine.
func (h *Hub) pullWaiting(c *Client, req protocol.GetAllWaitingQueues) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.QueryTimeout)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	list, err := h.waiting.AllWaiting(ctx, req.DivisionID)
	if err != nil {
		h.log.Warn("list waiting queues failed", zap.String("conn_id", c.id), zap.Error(err))
		return
	}
	msg, err := protocol.Encode(protocol.WaitingQueuesUpdate{Total: list.Total, Queues: list.Queues})
	if err != nil {
		h.log.Error("encode waiting queues", zap.Error(err))
		return
	}
	c.trySend(msg)
}
