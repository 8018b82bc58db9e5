package core

// Inbound events.
const (
	EventCreateRoom        = "CREATE_ROOM"
	EventDial              = "DIAL"
	EventAwaken            = "AWAKEN"
	EventAccept            = "ACCEPT"
	EventOffer             = "OFFER"
	EventAnswer            = "ANSWER"
	EventReject            = "REJECT"
	EventSendIceCandidate  = "SEND_ICE_CANDIDATE"
	EventEndOfCall         = "END_OF_CALL"
	EventPeerToServerError = "PEER_TO_SERVER_ERROR"
)

// Outbound events.
const (
	EventParticipants      = "PARTICIPANTS"
	EventNotifyEndOfCall   = "NOTIFY_END_OF_CALL"
	EventServerToPeerError = "SERVER_TO_PEER_ERROR"
	EventRelayOffer        = "RELAY_OFFER"
	EventRelayAnswer       = "RELAY_ANSWER"
	EventRelayIceCandidate = "RELAY_ICE_CANDIDATE"
	EventNotifyReject      = "NOTIFY_REJECT"
)
