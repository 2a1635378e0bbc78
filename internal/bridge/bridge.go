package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"flyxion/internal/field"
	"flyxion/internal/telemetry"
	"flyxion/logging"
	"flyxion/logging/network"
)

const (
	DefaultInterval  = 100 * time.Millisecond
	DefaultWriteWait = 10 * time.Second

	// Inbound frames are discarded; the limit only bounds what a peer can make us buffer.
	readLimit = 512
)

// ErrClosed is returned when attaching to a bridge that has been shut down.
var ErrClosed = errors.New("bridge: closed")

// Conn is the write side of a subscriber connection. *websocket.Conn
// satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Source provides consistent lattice snapshots.
type Source interface {
	State() field.State
}

type Config struct {
	// Interval between snapshots pushed to each subscriber.
	Interval time.Duration
	// WriteWait bounds a single write; a stalled peer is dropped after it.
	WriteWait time.Duration
	Logger    telemetry.Logger
	Publisher logging.Publisher
}

func (c Config) normalized() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.WriteWait <= 0 {
		c.WriteWait = DefaultWriteWait
	}
	c.Logger = telemetry.OrDefault(c.Logger)
	if c.Publisher == nil {
		c.Publisher = logging.NopPublisher()
	}
	return c
}

// ClientInfo describes one registered subscriber.
type ClientInfo struct {
	ID           string    `json:"id"`
	State        ConnState `json:"state"`
	RemoteAddr   string    `json:"remoteAddr,omitempty"`
	ConnectedAt  int64     `json:"connectedAt"`
	MessagesSent uint64    `json:"messagesSent"`
}

type client struct {
	id          string
	conn        Conn
	remoteAddr  string
	connectedAt time.Time
	state       atomic.Int32
	sent        atomic.Uint64

	done      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
	reasonMu  sync.Mutex
	reason    string
}

func (c *client) setState(s ConnState) {
	c.state.Store(int32(s))
}

func (c *client) State() ConnState {
	return ConnState(c.state.Load())
}

// stop asks the delivery loop to finish and closes the connection so a
// blocked write returns. Only the first reason is kept.
func (c *client) stop(reason string) {
	c.stopOnce.Do(func() {
		c.reasonMu.Lock()
		c.reason = reason
		c.reasonMu.Unlock()
		c.setState(StateClosing)
		close(c.done)
		c.closeConn()
	})
}

func (c *client) stopReason() string {
	c.reasonMu.Lock()
	defer c.reasonMu.Unlock()
	return c.reason
}

func (c *client) closeConn() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}

// Bridge keeps the set of live subscribers and runs one delivery loop per
// subscriber. Its registry lock is independent of the solver's state lock.
type Bridge struct {
	source    Source
	cfg       Config
	upgrader  websocket.Upgrader
	telemetry *telemetryCounters

	mu      sync.Mutex
	clients map[string]*client
	closed  bool

	nextID atomic.Uint64
	wg     sync.WaitGroup
}

// New constructs a bridge streaming snapshots from src.
func New(src Source, cfg Config) *Bridge {
	return &Bridge{
		source: src,
		cfg:    cfg.normalized(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
		telemetry: &telemetryCounters{},
		clients:   make(map[string]*client),
	}
}

// Interval reports the per-subscriber delivery cadence.
func (b *Bridge) Interval() time.Duration {
	return b.cfg.Interval
}

// ServeUpgrade upgrades the request to a websocket and registers it. A failed
// upgrade is logged and leaves every other subscriber untouched.
func (b *Bridge) ServeUpgrade(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.telemetry.upgradeFailures.Add(1)
		b.cfg.Logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	c, err := b.attach(conn, r.RemoteAddr)
	if err != nil {
		message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		conn.Close()
		return
	}
	go b.readPump(c, conn)
}

// Attach registers an already established connection and starts its
// delivery loop. It returns the subscriber id.
func (b *Bridge) Attach(conn Conn) (string, error) {
	c, err := b.attach(conn, "")
	if err != nil {
		conn.Close()
		return "", err
	}
	return c.id, nil
}

func (b *Bridge) attach(conn Conn, remoteAddr string) (*client, error) {
	c := &client{
		id:          fmt.Sprintf("client-%d", b.nextID.Add(1)),
		conn:        conn,
		remoteAddr:  remoteAddr,
		connectedAt: time.Now(),
		done:        make(chan struct{}),
	}
	c.setState(StateConnecting)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.clients[c.id] = c
	count := len(b.clients)
	c.setState(StateOpen)
	b.wg.Add(1)
	b.mu.Unlock()

	b.telemetry.connectionsTotal.Add(1)
	b.cfg.Logger.Printf("[bridge] %s connected (%d subscribers)", c.id, count)
	network.SubscriberConnected(context.Background(), b.cfg.Publisher, c.id, network.SubscriberConnectedPayload{
		RemoteAddr:  remoteAddr,
		Subscribers: count,
	})

	go b.deliveryLoop(c)
	return c, nil
}

func (b *Bridge) deliveryLoop(c *client) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			b.finish(c, c.stopReason(), logging.SeverityInfo)
			return
		case <-ticker.C:
		}

		if err := b.deliver(c); err != nil {
			select {
			case <-c.done:
				// Closed from elsewhere while writing; keep the original reason.
				b.finish(c, c.stopReason(), logging.SeverityInfo)
			default:
				b.telemetry.writeFailures.Add(1)
				b.finish(c, fmt.Sprintf("write failed: %v", err), logging.SeverityWarn)
			}
			return
		}
	}
}

// deliver snapshots, serializes and writes one message. Serialization
// failures skip the tick; only write failures end the subscription.
func (b *Bridge) deliver(c *client) error {
	data, err := json.Marshal(b.source.State())
	if err != nil {
		b.telemetry.marshalFailures.Add(1)
		b.cfg.Logger.Printf("[bridge] failed to marshal state for %s: %v", c.id, err)
		return nil
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteWait)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.sent.Add(1)
	b.telemetry.RecordBroadcast(len(data))
	return nil
}

// finish closes the connection and removes the client. It runs exactly once
// per client, on the client's own delivery loop.
func (b *Bridge) finish(c *client, reason string, severity logging.Severity) {
	c.setState(StateClosing)
	c.closeConn()

	b.mu.Lock()
	if current, ok := b.clients[c.id]; ok && current == c {
		delete(b.clients, c.id)
	}
	count := len(b.clients)
	b.mu.Unlock()

	c.setState(StateClosed)
	b.telemetry.disconnects.Add(1)
	b.cfg.Logger.Printf("[bridge] %s disconnected: %s (%d subscribers)", c.id, reason, count)
	network.SubscriberDropped(context.Background(), b.cfg.Publisher, c.id, severity, network.SubscriberDroppedPayload{
		Reason:       reason,
		MessagesSent: c.sent.Load(),
		Subscribers:  count,
	})
}

// readPump discards inbound frames so control frames are processed, and
// treats a read error as the peer going away.
func (b *Bridge) readPump(c *client, conn *websocket.Conn) {
	conn.SetReadLimit(readLimit)
	for {
		if _, _, err := conn.NextReader(); err != nil {
			reason := "closed by peer"
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				reason = fmt.Sprintf("read failed: %v", err)
			}
			c.stop(reason)
			return
		}
	}
}

// Disconnect closes one subscriber. It reports false for unknown ids.
func (b *Bridge) Disconnect(id string) bool {
	b.mu.Lock()
	c, ok := b.clients[id]
	if ok {
		delete(b.clients, id)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	c.stop("disconnected by server")
	return true
}

// Close disconnects every subscriber, rejects new ones, and waits for all
// delivery loops to exit.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		c.stop("server shutdown")
	}
	b.wg.Wait()
}

// Len returns the number of registered subscribers.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Clients lists registered subscribers ordered by id.
func (b *Bridge) Clients() []ClientInfo {
	b.mu.Lock()
	infos := make([]ClientInfo, 0, len(b.clients))
	for _, c := range b.clients {
		infos = append(infos, ClientInfo{
			ID:           c.id,
			State:        c.State(),
			RemoteAddr:   c.remoteAddr,
			ConnectedAt:  c.connectedAt.UnixMilli(),
			MessagesSent: c.sent.Load(),
		})
	}
	b.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if len(infos[i].ID) != len(infos[j].ID) {
			return len(infos[i].ID) < len(infos[j].ID)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// TelemetrySnapshot returns the bridge counters.
func (b *Bridge) TelemetrySnapshot() TelemetrySnapshot {
	return b.telemetry.snapshot(b.Len())
}
