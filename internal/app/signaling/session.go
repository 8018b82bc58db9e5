package signaling

import (
	"context"
	"errors"

	"github.com/dkeye/Signal/internal/app/router"
	"github.com/dkeye/Signal/internal/core"
	"github.com/rs/zerolog/log"
)

var errNotInitialized = errors.New("session not initialized")

func notInitialized(code core.ErrorCode) error {
	return core.WrapSignalingError(code, errNotInitialized, "Session is not initialized")
}

// NewSessionFactory builds sessions that broadcast through fabric.
func NewSessionFactory(fabric core.Fabric) router.SessionFactory {
	return func(base core.SessionBase) *core.Session {
		return core.NewSession(base, fabric)
	}
}

// Releaser tells the room a connection went away mid-call. The ledger
// record stays open so the peer can recover it with OFFER after reconnecting.
type Releaser struct {
	Ledger core.Ledger
}

func (r Releaser) Release(ctx context.Context, sess *core.Session) error {
	defer sess.Release()
	defer sess.LeaveAll()

	room, self := sess.Room(), sess.Self()
	if room == "" || self == "" {
		return nil
	}

	timeout, err := r.Ledger.IsOpenInRoom(ctx, self, room)
	if err != nil {
		log.Error().Str("module", "app.signaling").Str("sid", sess.ID()).Str("room", room.String()).
			Str("user", self.String()).Err(err).Msg("presence check on release failed")
	}
	res := sess.EmitTo(core.RoomGroup(room), core.EventNotifyEndOfCall, EndOfCallPayload{Sender: self, Timeout: timeout})
	log.Info().Str("module", "app.signaling").Str("sid", sess.ID()).Str("room", room.String()).
		Str("user", self.String()).Bool("timeout", timeout).Int("sent_to", res.SendTo).Msg("session released")
	return err
}

func logSessionCreated(_ context.Context, sess *core.Session) error {
	log.Debug().Str("module", "app.signaling").Str("sid", sess.ID()).Msg("session created")
	return nil
}

func logHandlersReady(_ context.Context, sess *core.Session) error {
	log.Debug().Str("module", "app.signaling").Str("sid", sess.ID()).Msg("handlers ready")
	return nil
}
