package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dkeye/Signal/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// Envelope is the wire shape of every message in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outbound struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type message struct {
	event   string
	payload core.Payload
}

// Options tune one WebSocket connection.
type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

func (o Options) pongWait() time.Duration { return o.PingPeriod * 10 / 9 }

// WsSignalConn is a signaling connection over WebSocket. It implements core.Conn.
type WsSignalConn struct {
	id   string
	conn *websocket.Conn
	opts Options

	send     chan []byte
	inbox    chan message
	readDone chan struct{}
	closing  chan struct{}

	mu     sync.RWMutex
	closed bool
}

var _ core.Conn = (*WsSignalConn)(nil)

func newWsSignalConn(ws *websocket.Conn, opts Options) *WsSignalConn {
	return &WsSignalConn{
		id:       uuid.NewString(),
		conn:     ws,
		opts:     opts,
		send:     make(chan []byte, opts.SendBuffer),
		inbox:    make(chan message),
		readDone: make(chan struct{}),
		closing:  make(chan struct{}),
	}
}

func (c *WsSignalConn) ID() string { return c.id }

// Next returns the next decoded inbound message, or an error once the peer
// is gone.
func (c *WsSignalConn) Next(ctx context.Context) (string, core.Payload, error) {
	select {
	case m := <-c.inbox:
		return m.event, m.payload, nil
	case <-c.readDone:
		return "", nil, ErrClosed
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

func (c *WsSignalConn) Emit(event string, payload any) error {
	b, err := json.Marshal(outbound{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	return c.TrySend(b)
}

func (c *WsSignalConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close stops accepting outbound messages. Queued messages are still
// flushed before the socket is closed.
func (c *WsSignalConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	close(c.closing)
	return nil
}

func (c *WsSignalConn) start() {
	go c.writePump()
	go c.readPump()
}
