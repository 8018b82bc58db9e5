// Package signaling implements the call-establishment protocol on top of
// the router: one handler per inbound event.
package signaling

import (
	"time"

	"github.com/dkeye/Signal/internal/app"
	"github.com/dkeye/Signal/internal/app/router"
	"github.com/dkeye/Signal/internal/core"
)

type Deps struct {
	Ledger         core.Ledger
	Users          core.UserDirectory
	Notifier       core.Notifier
	Limiter        *app.DialLimiter
	Fabric         core.Fabric
	EndOfCallDelay time.Duration
}

// Register installs the session lifecycle and every protocol handler on srv.
func Register(srv *router.Server, deps Deps) error {
	delay := deps.EndOfCallDelay
	if delay <= 0 {
		delay = DefaultEndOfCallDelay
	}
	releaser := Releaser{Ledger: deps.Ledger}
	endOfCall := EndOfCall{Ledger: deps.Ledger, Delay: delay}

	srv.SetSessionFactory(NewSessionFactory(deps.Fabric)).
		SetPostSessionHook(logSessionCreated).
		SetPostHandlerSetupHook(logHandlersReady).
		SetSessionReleaser(releaser.Release)

	registrations := []struct {
		event   string
		handler router.Handler
		onError []router.ErrorHandler
	}{
		{event: core.EventCreateRoom, handler: CreateRoom{Ledger: deps.Ledger}},
		{event: core.EventDial, handler: Dial{Users: deps.Users, Notifier: deps.Notifier, Limiter: deps.Limiter}},
		{event: core.EventAwaken, handler: Awaken{}},
		{event: core.EventAccept, handler: Accept{Ledger: deps.Ledger}},
		{event: core.EventOffer, handler: Offer{Ledger: deps.Ledger}},
		{event: core.EventAnswer, handler: Answer{}},
		{event: core.EventReject, handler: Reject{}},
		{event: core.EventSendIceCandidate, handler: IceCandidate{Ledger: deps.Ledger}},
		{event: core.EventEndOfCall, handler: endOfCall, onError: []router.ErrorHandler{endOfCall.OnError}},
		{event: core.EventPeerToServerError, handler: PeerError{}},
	}
	for _, r := range registrations {
		if err := srv.On(r.event, r.handler, r.onError...); err != nil {
			return err
		}
	}
	return nil
}
