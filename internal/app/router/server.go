// Package router binds transport connections to sessions and dispatches
// inbound events to registered handlers, one goroutine per connection.
package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dkeye/Signal/internal/core"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingEvent    = errors.New("event name is required")
	ErrMissingHandler  = errors.New("handler is required")
	ErrDuplicateEvent  = errors.New("event already registered")
	ErrServerStarted   = errors.New("server already started")
	ErrTransportClosed = errors.New("transport closed")
)

// Handler processes one inbound event for the session of its connection.
type Handler interface {
	Handle(ctx context.Context, sess *core.Session, payload core.Payload) error
}

type HandlerFunc func(ctx context.Context, sess *core.Session, payload core.Payload) error

func (f HandlerFunc) Handle(ctx context.Context, sess *core.Session, payload core.Payload) error {
	return f(ctx, sess, payload)
}

// ErrorContext describes the dispatch that failed.
type ErrorContext struct {
	Event   string
	Session *core.Session
	Payload core.Payload
}

type ErrorHandler func(ctx context.Context, err error, ec ErrorContext)

type SessionFactory func(base core.SessionBase) *core.Session

// SessionHook runs at a fixed point of a connection's lifecycle.
type SessionHook func(ctx context.Context, sess *core.Session) error

// Transport hands accepted connections to the server.
// Accept returns ErrTransportClosed once Close has been called.
type Transport interface {
	Accept(ctx context.Context) (core.Conn, error)
	Close() error
}

type registration struct {
	handler      Handler
	errorHandler ErrorHandler
}

type Server struct {
	mu            sync.Mutex
	started       bool
	stopping      bool
	registrations map[string]registration

	fabric           core.Fabric
	factory          SessionFactory
	releaser         SessionHook
	postSession      SessionHook
	postHandlerSetup SessionHook
	defaultError     ErrorHandler

	transport Transport
	cancel    context.CancelFunc
	conns     map[string]core.Conn
	wg        sync.WaitGroup
}

// NewServer returns a server whose default sessions broadcast through fabric.
func NewServer(fabric core.Fabric) *Server {
	if fabric == nil {
		fabric = core.NopFabric
	}
	return &Server{
		registrations: make(map[string]registration),
		fabric:        fabric,
		defaultError:  EmitError,
		conns:         make(map[string]core.Conn),
	}
}

func (s *Server) SetSessionFactory(fn SessionFactory) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factory = fn
	return s
}

func (s *Server) SetSessionReleaser(fn SessionHook) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaser = fn
	return s
}

func (s *Server) SetPostSessionHook(fn SessionHook) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postSession = fn
	return s
}

func (s *Server) SetPostHandlerSetupHook(fn SessionHook) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postHandlerSetup = fn
	return s
}

// SetDefaultErrorHandler replaces EmitError; nil restores it.
func (s *Server) SetDefaultErrorHandler(fn ErrorHandler) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = EmitError
	}
	s.defaultError = fn
	return s
}

// On registers handler for event. At most one error handler may be given.
func (s *Server) On(event string, handler Handler, errorHandler ...ErrorHandler) error {
	if event == "" {
		return ErrMissingEvent
	}
	if handler == nil {
		return fmt.Errorf("%w: %s", ErrMissingHandler, event)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("%w: cannot register %s", ErrServerStarted, event)
	}
	if _, ok := s.registrations[event]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, event)
	}
	reg := registration{handler: handler}
	if len(errorHandler) > 0 {
		reg.errorHandler = errorHandler[0]
	}
	s.registrations[event] = reg
	return nil
}

// Start runs the accept loop in the background until ctx ends or Stop is called.
func (s *Server) Start(ctx context.Context, t Transport) error {
	if t == nil {
		return errors.New("transport is required")
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrServerStarted
	}
	s.started = true
	ctx, cancel := context.WithCancel(ctx)
	s.transport = t
	s.cancel = cancel
	s.mu.Unlock()

	log.Info().Str("module", "app.router").Int("events", len(s.registrations)).Msg("server started")

	s.wg.Add(1)
	go s.acceptLoop(ctx, t)
	return nil
}

// Stop closes the transport and every live connection, then waits for
// connection goroutines to finish their release.
func (s *Server) Stop() {
	s.mu.Lock()
	s.stopping = true
	t, cancel := s.transport, s.cancel
	conns := make([]core.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if t != nil {
		if err := t.Close(); err != nil {
			log.Warn().Str("module", "app.router").Err(err).Msg("close transport")
		}
	}
	for _, c := range conns {
		_ = c.Close()
	}
	s.wg.Wait()
	if cancel != nil {
		cancel()
	}
	log.Info().Str("module", "app.router").Msg("server stopped")
}

// ActiveConnections reports the number of connections being served.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) acceptLoop(ctx context.Context, t Transport) {
	defer s.wg.Done()
	for {
		conn, err := t.Accept(ctx)
		if err != nil {
			if !errors.Is(err, ErrTransportClosed) && ctx.Err() == nil {
				log.Error().Str("module", "app.router").Err(err).Msg("accept failed")
			}
			return
		}
		if !s.track(conn) {
			_ = conn.Close()
			return
		}
		s.wg.Add(1)
		go s.serve(ctx, conn)
	}
}

func (s *Server) track(conn core.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.conns[conn.ID()] = conn
	return true
}

func (s *Server) untrack(conn core.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn.ID())
}

func (s *Server) serve(ctx context.Context, conn core.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer func() { _ = conn.Close() }()

	sid := conn.ID()
	sess, err := s.newSession(conn)
	if err != nil {
		log.Error().Str("module", "app.router").Str("sid", sid).Err(err).Msg("session factory failed")
		return
	}
	log.Info().Str("module", "app.router").Str("sid", sid).Msg("connection opened")

	defer func() {
		// Release must complete even if the server context is gone.
		s.runHook(context.WithoutCancel(ctx), "releaser", s.releaser, sess)
		sess.Detach()
		log.Info().Str("module", "app.router").Str("sid", sid).Msg("connection released")
	}()

	if !s.runHook(ctx, "post_session", s.postSession, sess) {
		return
	}
	if !s.runHook(ctx, "post_handler_setup", s.postHandlerSetup, sess) {
		return
	}

	for {
		event, payload, err := conn.Next(ctx)
		if err != nil {
			log.Debug().Str("module", "app.router").Str("sid", sid).Err(err).Msg("read loop finished")
			return
		}
		s.dispatch(ctx, sess, event, payload)
	}
}

func (s *Server) newSession(conn core.Conn) (sess *core.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	base := core.SessionBase{ID: conn.ID(), Conn: conn, CreatedAt: time.Now()}
	if s.factory != nil {
		sess = s.factory(base)
	}
	if sess == nil {
		sess = core.NewSession(base, s.fabric)
	}
	return sess, nil
}

// runHook reports whether the connection may proceed.
func (s *Server) runHook(ctx context.Context, name string, hook SessionHook, sess *core.Session) (ok bool) {
	if hook == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "app.router").Str("sid", sess.ID()).Str("hook", name).
				Interface("panic", r).Bytes("stack", debug.Stack()).Msg("hook panicked")
			ok = false
		}
	}()
	if err := hook(ctx, sess); err != nil {
		log.Error().Str("module", "app.router").Str("sid", sess.ID()).Str("hook", name).Err(err).Msg("hook failed")
		return false
	}
	return true
}

func (s *Server) dispatch(ctx context.Context, sess *core.Session, event string, payload core.Payload) {
	reg, ok := s.registrations[event]
	if !ok {
		log.Warn().Str("module", "app.router").Str("sid", sess.ID()).Str("event", event).Msg("unknown event ignored")
		return
	}
	log.Debug().Str("module", "app.router").Str("sid", sess.ID()).Str("event", event).Msg("dispatch")

	err := invoke(ctx, reg.handler, sess, payload)
	if err == nil {
		return
	}
	eh := reg.errorHandler
	if eh == nil {
		eh = s.defaultError
	}
	s.handleError(ctx, eh, err, ErrorContext{Event: event, Session: sess, Payload: payload})
}

func invoke(ctx context.Context, h Handler, sess *core.Session, payload core.Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "app.router").Str("sid", sess.ID()).
				Interface("panic", r).Bytes("stack", debug.Stack()).Msg("handler panicked")
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, sess, payload)
}

func (s *Server) handleError(ctx context.Context, eh ErrorHandler, err error, ec ErrorContext) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "app.router").Str("sid", ec.Session.ID()).Str("event", ec.Event).
				Interface("panic", r).Msg("error handler panicked")
		}
	}()
	eh(ctx, err, ec)
}

// EmitError reports err to the originating peer as SERVER_TO_PEER_ERROR.
func EmitError(_ context.Context, err error, ec ErrorContext) {
	p := core.ErrorPayloadOf(err)
	ev := log.Warn()
	if p.Code == core.CodeInternal {
		ev = log.Error()
	}
	ev.Str("module", "app.router").Str("sid", ec.Session.ID()).Str("event", ec.Event).
		Int("code", int(p.Code)).Err(err).Msg("handler failed")
	if emitErr := ec.Session.Emit(core.EventServerToPeerError, p); emitErr != nil {
		log.Warn().Str("module", "app.router").Str("sid", ec.Session.ID()).Err(emitErr).Msg("could not report error to peer")
	}
}
