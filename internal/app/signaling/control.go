package signaling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Signal/internal/app"
	"github.com/dkeye/Signal/internal/app/router"
	"github.com/dkeye/Signal/internal/core"
	"github.com/dkeye/Signal/internal/domain"
	"github.com/rs/zerolog/log"
)

// DefaultEndOfCallDelay leaves time for NOTIFY_END_OF_CALL to be flushed
// before the hanging-up connection is closed.
const DefaultEndOfCallDelay = 100 * time.Millisecond

// CreateRoom opens a call as the caller.
type CreateRoom struct {
	Ledger core.Ledger
}

func (h CreateRoom) Handle(ctx context.Context, sess *core.Session, p core.Payload) error {
	if err := core.ValidatePayload(p, core.CodeInvalidCreateRoomPayload, "room", "callerId"); err != nil {
		return err
	}
	room, caller := domain.RoomID(p.String("room")), domain.UserID(p.String("callerId"))

	wasOpen := sess.State() == core.StateRoomOpen
	if err := sess.OpenRoom(room, caller); err != nil {
		return core.WrapSignalingError(core.CodeInvalidCreateRoomPayload, err, "Session is already in room %s", sess.Room())
	}
	if err := h.Ledger.Open(ctx, room, caller); err != nil {
		if !wasOpen {
			sess.Release()
		}
		var le *core.LedgerError
		if errors.As(err, &le) && le.Kind == core.LedgerUnknownUser {
			return core.WrapSignalingError(core.CodeInvalidCreateRoomPayload, err, "There is no user %s.", caller)
		}
		return fmt.Errorf("open call record: %w", err)
	}
	sess.Join(core.RoomGroup(room), core.PersonalGroup(caller))

	log.Info().Str("module", "app.signaling").Str("sid", sess.ID()).Str("room", room.String()).Str("user", caller.String()).Msg("room created")
	return nil
}

// Dial wakes the callee's device with a push notification.
type Dial struct {
	Users    core.UserDirectory
	Notifier core.Notifier
	Limiter  *app.DialLimiter
}

func (h Dial) Handle(ctx context.Context, sess *core.Session, p core.Payload) error {
	if err := core.ValidatePayload(p, core.CodeInvalidDialPayload, "calleeId"); err != nil {
		return err
	}
	if p.Bool("skipNotification") {
		return nil
	}
	if !sess.Initialized() {
		return notInitialized(core.CodeInvalidDialPayload)
	}
	callee := domain.UserID(p.String("calleeId"))
	caller, room := sess.Self(), sess.Room()

	user, err := h.Users.FindUserByID(ctx, callee)
	if err != nil {
		return fmt.Errorf("find callee %s: %w", callee, err)
	}
	if user == nil {
		return core.NewSignalingError(core.CodeInternal, "There is no user data for user %s", callee)
	}
	if user.DeviceToken == "" {
		return core.NewSignalingError(core.CodeInternal, "There is no available deviceToken for user %s", callee)
	}

	// Only dials that would reach a device count against the quota.
	if !h.Limiter.Allow(caller) {
		return core.WrapSignalingError(core.CodeInternal, app.ErrDialThrottled, "Too many calls from user %s", caller)
	}
	n := core.Notification{
		Data:     map[string]string{"room": room.String(), "callerId": caller.String()},
		Priority: core.PriorityHigh,
		Token:    user.DeviceToken,
	}
	if err := h.Notifier.Send(ctx, n); err != nil {
		return core.WrapSignalingError(core.CodeInternal, err, "Could not notify user %s", callee)
	}
	log.Info().Str("module", "app.signaling").Str("sid", sess.ID()).Str("room", room.String()).
		Str("user", caller.String()).Str("callee", callee.String()).Msg("callee notified")
	return nil
}

// Awaken binds a callee's fresh connection to the call it was woken for.
// The callee joins no group until it accepts.
type Awaken struct{}

func (Awaken) Handle(_ context.Context, sess *core.Session, p core.Payload) error {
	if err := core.ValidatePayload(p, core.CodeInvalidAwakenPayload, "room", "callerId", "calleeId"); err != nil {
		return err
	}
	room := domain.RoomID(p.String("room"))
	caller, callee := domain.UserID(p.String("callerId")), domain.UserID(p.String("calleeId"))
	if err := sess.Awaken(room, caller, callee); err != nil {
		return core.WrapSignalingError(core.CodeInvalidAwakenPayload, err, "Session is already in room %s", sess.Room())
	}
	log.Info().Str("module", "app.signaling").Str("sid", sess.ID()).Str("room", room.String()).Str("user", callee.String()).Msg("callee awakened")
	return nil
}

// EndOfCall hangs up: the call record is closed and the room is told.
type EndOfCall struct {
	Ledger core.Ledger
	Delay  time.Duration
}

func (h EndOfCall) Handle(ctx context.Context, sess *core.Session, _ core.Payload) error {
	if !sess.Initialized() {
		return notInitialized(core.CodeInternal)
	}
	room, self := sess.Room(), sess.Self()

	closeErr := h.Ledger.Close(ctx, self)
	sess.EmitTo(core.RoomGroup(room), core.EventNotifyEndOfCall, EndOfCallPayload{Sender: self, Timeout: false})
	sess.Leave(core.RoomGroup(room), core.PersonalGroup(self))
	sess.Terminate()
	if closeErr != nil {
		return fmt.Errorf("close call record: %w", closeErr)
	}
	sess.CloseConnAfter(h.Delay)

	log.Info().Str("module", "app.signaling").Str("sid", sess.ID()).Str("room", room.String()).Str("user", self.String()).Msg("call ended")
	return nil
}

// OnError reports the failure and still disconnects the peer.
func (h EndOfCall) OnError(ctx context.Context, err error, ec router.ErrorContext) {
	router.EmitError(ctx, err, ec)
	ec.Session.Terminate()
	ec.Session.CloseConnAfter(h.Delay)
}

// PeerError records an error reported by the client.
type PeerError struct{}

func (PeerError) Handle(_ context.Context, sess *core.Session, p core.Payload) error {
	log.Error().Str("module", "app.signaling").Str("sid", sess.ID()).Str("room", sess.Room().String()).
		Str("user", sess.Self().String()).Interface("payload", map[string]any(p)).Msg("peer reported error")
	return nil
}
