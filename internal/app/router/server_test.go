package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Signal/internal/core"
)

const waitFor = 2 * time.Second

func nop(context.Context, *core.Session, core.Payload) error { return nil }

func startServer(t *testing.T, srv *Server) *fakeTransport {
	t.Helper()
	tr := newFakeTransport()
	require.NoError(t, srv.Start(context.Background(), tr))
	t.Cleanup(srv.Stop)
	return tr
}

func TestOnRejectsInvalidRegistrations(t *testing.T) {
	srv := NewServer(nil)

	assert.ErrorIs(t, srv.On("", HandlerFunc(nop)), ErrMissingEvent)
	assert.ErrorIs(t, srv.On("A", nil), ErrMissingHandler)

	require.NoError(t, srv.On("A", HandlerFunc(nop)))
	assert.ErrorIs(t, srv.On("A", HandlerFunc(nop)), ErrDuplicateEvent)

	startServer(t, srv)
	assert.ErrorIs(t, srv.On("B", HandlerFunc(nop)), ErrServerStarted)
	assert.ErrorIs(t, srv.Start(context.Background(), newFakeTransport()), ErrServerStarted)
}

func TestDispatchIsSequentialPerConnection(t *testing.T) {
	rec := &recorder{}
	srv := NewServer(nil)
	require.NoError(t, srv.On("STEP", HandlerFunc(func(_ context.Context, _ *core.Session, p core.Payload) error {
		rec.add(p.String("n"))
		return nil
	})))
	tr := startServer(t, srv)

	c := newFakeConn("c1")
	tr.dial(c)
	for _, n := range []string{"1", "2", "3", "4"} {
		c.send("STEP", core.Payload{"n": n})
	}

	require.Eventually(t, func() bool { return len(rec.list()) == 4 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"1", "2", "3", "4"}, rec.list())
}

func TestDefaultErrorHandlerEmitsServerToPeerError(t *testing.T) {
	srv := NewServer(nil)
	require.NoError(t, srv.On("BAD", HandlerFunc(func(context.Context, *core.Session, core.Payload) error {
		return core.NewSignalingError(core.CodeInvalidDialPayload, "Invalid payload. calleeId: <nil>")
	})))
	require.NoError(t, srv.On("BOOM", HandlerFunc(func(context.Context, *core.Session, core.Payload) error {
		return errors.New("db down")
	})))
	tr := startServer(t, srv)

	c := newFakeConn("c1")
	tr.dial(c)
	c.send("BAD", nil)
	c.send("BOOM", nil)

	require.Eventually(t, func() bool { return len(c.sent()) == 2 }, waitFor, 5*time.Millisecond)
	out := c.sent()
	assert.Equal(t, core.EventServerToPeerError, out[0].event)
	assert.Equal(t, core.ErrorPayload{
		Code:        core.CodeInvalidDialPayload,
		Description: "Invalid DIAL Payload",
		Message:     "Invalid payload. calleeId: <nil>",
	}, out[0].payload)
	assert.Equal(t, core.ErrorPayload{
		Code:        core.CodeInternal,
		Description: "Internal Server Error",
		Message:     "db down",
	}, out[1].payload)
}

func TestPanicIsIsolatedToConnection(t *testing.T) {
	rec := &recorder{}
	srv := NewServer(nil)
	require.NoError(t, srv.On("PANIC", HandlerFunc(func(context.Context, *core.Session, core.Payload) error {
		panic("kaboom")
	})))
	require.NoError(t, srv.On("OK", HandlerFunc(func(_ context.Context, sess *core.Session, _ core.Payload) error {
		rec.add(sess.ID())
		return nil
	})))
	tr := startServer(t, srv)

	a, b := newFakeConn("a"), newFakeConn("b")
	tr.dial(a)
	tr.dial(b)
	a.send("PANIC", nil)
	a.send("OK", nil)
	b.send("OK", nil)

	require.Eventually(t, func() bool { return len(rec.list()) == 2 }, waitFor, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"a", "b"}, rec.list())

	out := a.sent()
	require.Len(t, out, 1)
	assert.Equal(t, core.CodeInternal, out[0].payload.(core.ErrorPayload).Code)
	assert.Empty(t, b.sent())
}

func TestPerEventErrorHandlerAndPanickingErrorHandler(t *testing.T) {
	rec := &recorder{}
	srv := NewServer(nil)
	failing := HandlerFunc(func(context.Context, *core.Session, core.Payload) error { return errors.New("nope") })
	require.NoError(t, srv.On("CUSTOM", failing, func(_ context.Context, err error, ec ErrorContext) {
		rec.add(ec.Event + ":" + err.Error())
	}))
	require.NoError(t, srv.On("WORSE", failing, func(context.Context, error, ErrorContext) {
		panic("error handler broke")
	}))
	require.NoError(t, srv.On("PING", HandlerFunc(func(context.Context, *core.Session, core.Payload) error {
		rec.add("ping")
		return nil
	})))
	tr := startServer(t, srv)

	c := newFakeConn("c1")
	tr.dial(c)
	c.send("CUSTOM", nil)
	c.send("WORSE", nil)
	c.send("PING", nil)

	require.Eventually(t, func() bool { return len(rec.list()) == 2 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"CUSTOM:nope", "ping"}, rec.list())
	assert.Empty(t, c.sent(), "custom error handlers replace the default one")
}

func TestUnknownEventIsIgnored(t *testing.T) {
	rec := &recorder{}
	srv := NewServer(nil)
	require.NoError(t, srv.On("KNOWN", HandlerFunc(func(context.Context, *core.Session, core.Payload) error {
		rec.add("known")
		return nil
	})))
	tr := startServer(t, srv)

	c := newFakeConn("c1")
	tr.dial(c)
	c.send("WHAT", nil)
	c.send("KNOWN", nil)

	require.Eventually(t, func() bool { return len(rec.list()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Empty(t, c.sent())
}

func TestLifecycleHooksAndRelease(t *testing.T) {
	rec := &recorder{}
	released := make(chan *core.Session, 1)
	srv := NewServer(nil)
	srv.SetSessionFactory(func(base core.SessionBase) *core.Session {
		rec.add("factory:" + base.ID)
		return core.NewSession(base, nil)
	}).SetPostSessionHook(func(context.Context, *core.Session) error {
		rec.add("post_session")
		return nil
	}).SetPostHandlerSetupHook(func(context.Context, *core.Session) error {
		rec.add("post_handler_setup")
		return nil
	}).SetSessionReleaser(func(ctx context.Context, sess *core.Session) error {
		rec.add("release")
		assert.True(t, sess.Attached(), "release runs before detach")
		assert.NoError(t, ctx.Err())
		released <- sess
		return nil
	})
	require.NoError(t, srv.On("OPEN", HandlerFunc(func(_ context.Context, sess *core.Session, _ core.Payload) error {
		rec.add("handler")
		return sess.OpenRoom("r1", "alice")
	})))
	tr := startServer(t, srv)

	c := newFakeConn("c1")
	tr.dial(c)
	c.send("OPEN", nil)
	require.Eventually(t, func() bool { return len(rec.list()) == 4 }, waitFor, 5*time.Millisecond)
	require.NoError(t, c.Close())

	var sess *core.Session
	select {
	case sess = <-released:
	case <-time.After(waitFor):
		t.Fatal("releaser did not run")
	}
	assert.Equal(t, []string{"factory:c1", "post_session", "post_handler_setup", "handler", "release"}, rec.list())
	require.Eventually(t, func() bool { return !sess.Attached() }, waitFor, 5*time.Millisecond)
	assert.ErrorIs(t, sess.Emit("X", nil), core.ErrDetached)
	require.Eventually(t, func() bool { return srv.ActiveConnections() == 0 }, waitFor, 5*time.Millisecond)
}

func TestFailingPostSessionHookDropsConnection(t *testing.T) {
	released := make(chan struct{}, 1)
	srv := NewServer(nil)
	srv.SetPostSessionHook(func(context.Context, *core.Session) error {
		return errors.New("refused")
	}).SetSessionReleaser(func(context.Context, *core.Session) error {
		released <- struct{}{}
		return nil
	})
	tr := startServer(t, srv)

	c := newFakeConn("c1")
	tr.dial(c)

	select {
	case <-released:
	case <-time.After(waitFor):
		t.Fatal("releaser did not run")
	}
	select {
	case <-c.closed:
	case <-time.After(waitFor):
		t.Fatal("connection was not closed")
	}
}

func TestStopClosesLiveConnections(t *testing.T) {
	var releases int
	srv := NewServer(nil)
	srv.SetSessionReleaser(func(context.Context, *core.Session) error {
		releases++
		return nil
	})
	tr := newFakeTransport()
	require.NoError(t, srv.Start(context.Background(), tr))

	c := newFakeConn("c1")
	tr.dial(c)
	require.Eventually(t, func() bool { return srv.ActiveConnections() == 1 }, waitFor, 5*time.Millisecond)

	srv.Stop()

	assert.Equal(t, 1, releases)
	assert.Zero(t, srv.ActiveConnections())
	select {
	case <-c.closed:
	default:
		t.Fatal("connection still open")
	}
}
