package signaling

import "github.com/dkeye/Signal/internal/domain"

type ParticipantsPayload struct {
	Participants []domain.UserID `json:"participants"`
	Length       int             `json:"length"`
}

type EndOfCallPayload struct {
	Sender  domain.UserID `json:"sender"`
	Timeout bool          `json:"timeout"`
}

// RelayOfferPayload and RelayAnswerPayload carry the SDP exactly as received.
type RelayOfferPayload struct {
	SDP    any           `json:"sdp"`
	Sender domain.UserID `json:"sender"`
}

type RelayAnswerPayload struct {
	SDP    any           `json:"sdp"`
	Sender domain.UserID `json:"sender"`
}

type RelayIceCandidatePayload struct {
	IceCandidate any           `json:"iceCandidate"`
	Sender       domain.UserID `json:"sender"`
}

type RejectPayload struct {
	Sender   domain.UserID `json:"sender"`
	Receiver domain.UserID `json:"receiver"`
}
