package ws

import (
	"errors"
	"sync"
	"time"

	"branchqueue/internal/protocol"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one websocket connection. send is never closed; done marks the
// connection as gone and stops its writer.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// trySend queues msg for the writer. Sending to a closed connection is a
// no-op; a full buffer drops the message.
func (c *Client) trySend(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		c.hub.log.Debug("send buffer full, dropping message", zap.String("conn_id", c.id))
		return false
	}
}

// readPump handles inbound messages until the connection fails.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.close()
		_ = c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.log.Debug("websocket closed", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	msg, err := protocol.DecodeClient(data)
	if errors.Is(err, protocol.ErrUnknownType) {
		return
	}
	if err != nil {
		c.hub.log.Warn("ignoring malformed message", zap.String("conn_id", c.id), zap.Error(err))
		return
	}

	switch m := msg.(type) {
	case protocol.SubscribeDivision:
		c.hub.subscribeClient(c, m)
	case protocol.GetAllWaitingQueues:
		go c.hub.pullWaiting(c, m)
	case protocol.TransactionAnnounced:
		c.hub.relayFrom(c, data)
	}
}

// writePump writes queued messages and pings until the connection is done.
func (c *Client) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			// 1000 is reserved for a client's own disconnect; anything else
			// makes the client reconnect.
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
