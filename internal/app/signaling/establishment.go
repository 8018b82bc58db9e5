package signaling

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Signal/internal/core"
	"github.com/dkeye/Signal/internal/domain"
	"github.com/rs/zerolog/log"
)

// Accept commits the callee to the call and tells it who is already there.
type Accept struct {
	Ledger core.Ledger
}

func (h Accept) Handle(ctx context.Context, sess *core.Session, _ core.Payload) error {
	if !sess.Initialized() {
		return notInitialized(core.CodeInvalidAcceptPayload)
	}
	room, self := sess.Room(), sess.Self()

	sess.Join(core.RoomGroup(room), core.PersonalGroup(self))
	others, err := h.Ledger.OpenAndListOthers(ctx, room, self)
	if err != nil {
		sess.Leave(core.RoomGroup(room), core.PersonalGroup(self))
		var le *core.LedgerError
		if errors.As(err, &le) && le.Kind == core.LedgerUnknownUser {
			return core.WrapSignalingError(core.CodeInvalidAcceptPayload, err, "There is no user %s.", self)
		}
		return fmt.Errorf("join call: %w", err)
	}
	if err := sess.MarkJoined(); err != nil {
		return err
	}

	log.Info().Str("module", "app.signaling").Str("sid", sess.ID()).Str("room", room.String()).
		Str("user", self.String()).Int("participants", len(others)).Msg("call accepted")
	return sess.Emit(core.EventParticipants, ParticipantsPayload{Participants: others, Length: len(others)})
}

// Offer relays an SDP offer. A connection that lost its session (reconnect)
// is restored from the sender's most recent call record first.
type Offer struct {
	Ledger core.Ledger
}

func (h Offer) Handle(ctx context.Context, sess *core.Session, p core.Payload) error {
	if err := core.ValidatePayload(p, core.CodeInternal, "sdp", "receiver", "sender"); err != nil {
		return err
	}
	receiver := domain.UserID(p.String("receiver"))

	if !sess.Initialized() {
		sender := domain.UserID(p.String("sender"))
		if !sess.CanRestore() {
			return core.WrapSignalingError(core.CodeInternal, core.ErrIllegalTransition, "Call of user %s has already ended", sender)
		}
		room, ok, err := h.Ledger.ReopenLastRoom(ctx, sender)
		if err != nil {
			return fmt.Errorf("recover session of %s: %w", sender, err)
		}
		if !ok {
			return core.NewSignalingError(core.CodeInternal, "There is no call to recover for user %s", sender)
		}
		if err := sess.Restore(room, sender); err != nil {
			return err
		}
		sess.Join(core.RoomGroup(room), core.PersonalGroup(sender))
		log.Info().Str("module", "app.signaling").Str("sid", sess.ID()).Str("room", room.String()).Str("user", sender.String()).Msg("session recovered")
	}
	if err := sess.MarkJoined(); err != nil {
		return err
	}

	res := sess.EmitTo(core.PersonalGroup(receiver), core.EventRelayOffer, RelayOfferPayload{SDP: p.Value("sdp"), Sender: sess.Self()})
	logRelay(sess, core.EventRelayOffer, receiver, res)
	return nil
}

type Answer struct{}

func (Answer) Handle(_ context.Context, sess *core.Session, p core.Payload) error {
	if err := core.ValidatePayload(p, core.CodeInvalidAnswerPayload, "sdp", "receiver"); err != nil {
		return err
	}
	if !sess.Initialized() {
		return notInitialized(core.CodeInvalidAnswerPayload)
	}
	receiver := domain.UserID(p.String("receiver"))
	_ = sess.MarkJoined()

	res := sess.EmitTo(core.PersonalGroup(receiver), core.EventRelayAnswer, RelayAnswerPayload{SDP: p.Value("sdp"), Sender: sess.Self()})
	logRelay(sess, core.EventRelayAnswer, receiver, res)
	return nil
}

// Reject declines the call on the callee's behalf and drops its connection.
type Reject struct{}

func (Reject) Handle(_ context.Context, sess *core.Session, p core.Payload) error {
	if err := core.ValidatePayload(p, core.CodeInvalidRejectPayload, "receiver"); err != nil {
		return err
	}
	if !sess.Initialized() {
		return notInitialized(core.CodeInvalidRejectPayload)
	}
	room, self := sess.Room(), sess.Self()
	receiver := domain.UserID(p.String("receiver"))

	res := sess.EmitTo(core.PersonalGroup(receiver), core.EventNotifyReject, RejectPayload{Sender: self, Receiver: receiver})
	logRelay(sess, core.EventNotifyReject, receiver, res)

	sess.Leave(core.RoomGroup(room), core.PersonalGroup(self))
	sess.Terminate()
	return sess.CloseConn()
}

// IceCandidate relays a connectivity candidate. Without a session the
// sender must still be present in the ledger, otherwise the candidate is
// dropped silently.
type IceCandidate struct {
	Ledger core.Ledger
}

func (h IceCandidate) Handle(ctx context.Context, sess *core.Session, p core.Payload) error {
	if err := core.ValidatePayload(p, core.CodeInvalidIceCandidatePayload, "iceCandidate", "receiver", "sender"); err != nil {
		return err
	}
	receiver := domain.UserID(p.String("receiver"))
	sender := sess.Self()

	if sess.Initialized() {
		sess.MarkInCall()
	} else {
		sender = domain.UserID(p.String("sender"))
		open, err := h.Ledger.IsOpen(ctx, sender)
		if err != nil {
			return fmt.Errorf("check presence of %s: %w", sender, err)
		}
		if !open {
			log.Debug().Str("module", "app.signaling").Str("sid", sess.ID()).Str("user", sender.String()).Msg("ice candidate from absent sender dropped")
			return nil
		}
	}

	res := sess.EmitTo(core.PersonalGroup(receiver), core.EventRelayIceCandidate,
		RelayIceCandidatePayload{IceCandidate: p.Value("iceCandidate"), Sender: sender})
	logRelay(sess, core.EventRelayIceCandidate, receiver, res)
	return nil
}

func logRelay(sess *core.Session, event string, receiver domain.UserID, res core.PublishResult) {
	log.Debug().Str("module", "app.signaling").Str("sid", sess.ID()).Str("event", event).
		Str("receiver", receiver.String()).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("relayed")
}
