package signaling

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/dkeye/Signal/internal/app"
	"github.com/dkeye/Signal/internal/core"
	"github.com/dkeye/Signal/internal/core/mocks"
)

type emitted struct {
	event   string
	payload any
}

type fakeConn struct {
	id     string
	mu     sync.Mutex
	out    []emitted
	closed bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Next(ctx context.Context) (string, core.Payload, error) {
	<-ctx.Done()
	return "", nil, ctx.Err()
}

func (c *fakeConn) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, emitted{event, payload})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) sent() []emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]emitted(nil), c.out...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fixture struct {
	ledger   *mocks.MockLedger
	users    *mocks.MockUserDirectory
	notifier *mocks.MockNotifier
	hub      *app.Hub
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	return &fixture{
		ledger:   mocks.NewMockLedger(ctrl),
		users:    mocks.NewMockUserDirectory(ctrl),
		notifier: mocks.NewMockNotifier(ctrl),
		hub:      app.NewHub(nil),
	}
}

func (f *fixture) connect(id string) (*core.Session, *fakeConn) {
	conn := &fakeConn{id: id}
	return core.NewSession(core.SessionBase{ID: id, Conn: conn, CreatedAt: time.Now()}, f.hub), conn
}

// listener is a connection subscribed to user's personal group.
func (f *fixture) listener(id string, groups ...string) *fakeConn {
	conn := &fakeConn{id: id}
	f.hub.Join(conn, groups...)
	return conn
}

func codeOf(t *testing.T, err error) core.ErrorCode {
	t.Helper()
	return core.ErrorPayloadOf(err).Code
}
