// Package wsclient keeps one reconnecting websocket to the queue broadcast
// server and fans its messages out to local subscribers.
package wsclient

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"branchqueue/internal/protocol"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Send while the transport is not open.
var ErrNotConnected = errors.New("not connected")

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateFailed is entered after the last reconnection attempt failed. Only
	// an explicit Connect leaves it.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

// Target is what the manager subscribes to once connected.
type Target struct {
	DivisionID     uint
	TerminalID     *uint
	TerminalNumber *int
}

type Config struct {
	URL            string
	ConnectTimeout time.Duration
	Backoff        Backoff
	DedupSize      int
}

// Handler receives every decoded server message in arrival order.
type Handler func(protocol.Message)

// StatusHandler receives state transitions.
type StatusHandler func(State)

// DialFunc opens the transport. It must give up when ctx is done.
type DialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

type stopper interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) stopper

type Option func(*Manager)

// WithDialer replaces the gorilla dialer.
func WithDialer(d DialFunc) Option {
	return func(m *Manager) { m.dial = d }
}

// WithAfterFunc replaces time.AfterFunc for scheduling reconnections.
func WithAfterFunc(f AfterFunc) Option {
	return func(m *Manager) { m.afterFunc = f }
}

func defaultDial(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// Manager owns at most one transport at a time.
type Manager struct {
	cfg       Config
	log       *zap.Logger
	dial      DialFunc
	afterFunc AfterFunc
	seen      *lru.Cache[string, struct{}]

	mu       sync.Mutex
	state    State
	active   bool
	target   *Target
	conn     *websocket.Conn
	failures int
	retry    stopper
	epoch    uint64

	handlers       map[int]Handler
	statusHandlers map[int]StatusHandler
	nextID         int

	writeMu sync.Mutex
}

func New(cfg Config, log *zap.Logger, opts ...Option) *Manager {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 3 * time.Second
	}
	if cfg.DedupSize <= 0 {
		cfg.DedupSize = 256
	}
	cfg.Backoff = cfg.Backoff.withDefaults()

	seen, _ := lru.New[string, struct{}](cfg.DedupSize)
	m := &Manager{
		cfg:  cfg,
		log:  log,
		dial: defaultDial,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		seen:           seen,
		handlers:       make(map[int]Handler),
		statusHandlers: make(map[int]StatusHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect opens the transport and subscribes to target once it is open.
// It is a no-op while a transport is connecting or connected.
func (m *Manager) Connect(target *Target) {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return
	}
	m.active = true
	m.target = target
	m.failures = 0
	m.stopRetryLocked()
	emit := m.startLocked()
	m.mu.Unlock()
	emit()
}

// Disconnect stops reconnecting and closes the transport normally.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.active = false
	m.epoch++
	m.stopRetryLocked()
	conn := m.conn
	m.conn = nil
	emit := m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if conn != nil {
		m.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		m.writeMu.Unlock()
		_ = conn.Close()
	}
	emit()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

// Subscribe registers h for every message and returns its id.
func (m *Manager) Subscribe(h Handler) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.handlers[m.nextID] = h
	return m.nextID
}

// SubscribeStatus registers h for state transitions and returns its id.
func (m *Manager) SubscribeStatus(h StatusHandler) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.statusHandlers[m.nextID] = h
	return m.nextID
}

// Unsubscribe removes a message or status handler.
func (m *Manager) Unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, id)
	delete(m.statusHandlers, id)
}

// Send writes msg to the open transport.
func (m *Manager) Send(msg protocol.Message) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(m.cfg.ConnectTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) setStateLocked(s State) func() {
	if m.state == s {
		return func() {}
	}
	m.state = s
	hs := slices.Collect(maps.Values(m.statusHandlers))
	return func() {
		for _, h := range hs {
			h(s)
		}
	}
}

func (m *Manager) startLocked() func() {
	m.epoch++
	go m.open(m.epoch)
	return m.setStateLocked(StateConnecting)
}

func (m *Manager) open(epoch uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	conn, err := m.dial(ctx, m.cfg.URL)
	cancel()
	if err != nil {
		m.log.Debug("connect failed", zap.String("url", m.cfg.URL), zap.Error(err))
		m.fail(epoch)
		return
	}

	m.mu.Lock()
	if epoch != m.epoch || !m.active {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.failures = 0
	target := m.target
	emit := m.setStateLocked(StateConnected)
	m.mu.Unlock()
	emit()

	m.log.Info("connected to queue broadcast", zap.String("url", m.cfg.URL))
	if target != nil && target.DivisionID != 0 {
		err := m.Send(protocol.SubscribeDivision{
			DivisionID:     target.DivisionID,
			TerminalID:     target.TerminalID,
			TerminalNumber: target.TerminalNumber,
		})
		if err != nil {
			m.log.Warn("subscribe failed", zap.Uint("division_id", target.DivisionID), zap.Error(err))
		}
	}
	m.read(epoch, conn)
}

func (m *Manager) read(epoch uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				m.closed(epoch)
				return
			}
			m.fail(epoch)
			return
		}

		msg, err := protocol.DecodeServer(data)
		if errors.Is(err, protocol.ErrUnknownType) {
			continue
		}
		if err != nil {
			m.log.Warn("ignoring malformed message", zap.Error(err))
			continue
		}
		if a, ok := msg.(protocol.TransactionAnnounced); ok {
			if seen, _ := m.seen.ContainsOrAdd(a.AnnouncementID, struct{}{}); seen {
				continue
			}
		}
		m.dispatch(epoch, msg)
	}
}

func (m *Manager) dispatch(epoch uint64, msg protocol.Message) {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	ids := slices.Sorted(maps.Keys(m.handlers))
	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, m.handlers[id])
	}
	m.mu.Unlock()

	for _, h := range hs {
		h(msg)
	}
}

// closed handles a normal closure by the server: no reconnection. The queue
// server closes with 1001 when it shuts down or drops a silent peer, which
// goes through fail instead.
func (m *Manager) closed(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.active = false
	emit := m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
	emit()
}

// fail schedules the next attempt, or gives up after the last one.
func (m *Manager) fail(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || !m.active {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.failures++

	if m.failures >= m.cfg.Backoff.MaxAttempts {
		emit := m.setStateLocked(StateFailed)
		failures := m.failures
		m.mu.Unlock()
		m.log.Warn("giving up reconnecting", zap.Int("attempts", failures))
		emit()
		return
	}

	delay := m.cfg.Backoff.Delay(m.failures - 1)
	m.retry = m.afterFunc(delay, func() { m.retryNow(epoch) })
	emit := m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
	m.log.Debug("reconnect scheduled", zap.Duration("delay", delay))
	emit()
}

func (m *Manager) retryNow(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || !m.active || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.retry = nil
	emit := m.startLocked()
	m.mu.Unlock()
	emit()
}
