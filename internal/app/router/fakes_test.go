package router

import (
	"context"
	"io"
	"sync"

	"github.com/dkeye/Signal/internal/core"
)

type inbound struct {
	event   string
	payload core.Payload
}

type outbound struct {
	event   string
	payload any
}

type fakeConn struct {
	id     string
	in     chan inbound
	closed chan struct{}
	once   sync.Once

	mu  sync.Mutex
	out []outbound
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, in: make(chan inbound, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Next(ctx context.Context) (string, core.Payload, error) {
	select {
	case m := <-c.in:
		return m.event, m.payload, nil
	case <-c.closed:
		return "", nil, io.EOF
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

func (c *fakeConn) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, outbound{event, payload})
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(event string, payload core.Payload) {
	c.in <- inbound{event, payload}
}

func (c *fakeConn) sent() []outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]outbound(nil), c.out...)
}

type fakeTransport struct {
	conns  chan core.Conn
	closed chan struct{}
	once   sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{conns: make(chan core.Conn), closed: make(chan struct{})}
}

func (t *fakeTransport) Accept(ctx context.Context) (core.Conn, error) {
	select {
	case c := <-t.conns:
		return c, nil
	case <-t.closed:
		return nil, ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) dial(c core.Conn) {
	t.conns <- c
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
