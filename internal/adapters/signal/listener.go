package signal

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Signal/internal/app/router"
	"github.com/dkeye/Signal/internal/core"
)

// Listener turns upgraded HTTP requests into connections for the router.
// It implements router.Transport.
type Listener struct {
	opts     Options
	upgrader websocket.Upgrader
	conns    chan core.Conn
	done     chan struct{}
	once     sync.Once
}

var _ router.Transport = (*Listener)(nil)

func NewListener(opts Options) *Listener {
	return &Listener{
		opts: opts.withDefaults(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(chan core.Conn),
		done:  make(chan struct{}),
	}
}

func (l *Listener) Accept(ctx context.Context) (core.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, router.ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Listener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

// HandleSignal upgrades the request and hands the connection to Accept.
func (l *Listener) HandleSignal(c *gin.Context) {
	select {
	case <-l.done:
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	default:
	}

	ws, err := l.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	conn := newWsSignalConn(ws, l.opts)
	conn.start()
	log.Info().Str("module", "signal").Str("sid", conn.ID()).Str("remote", c.ClientIP()).Msg("new WS connection")

	select {
	case l.conns <- conn:
	case <-l.done:
		_ = conn.Close()
	case <-c.Request.Context().Done():
		_ = conn.Close()
	}
}
