package core

import (
	"errors"
	"fmt"
)

type ErrorCode int

const (
	CodeInternal                   ErrorCode = 300
	CodeInvalidCreateRoomPayload   ErrorCode = 301
	CodeInvalidDialPayload         ErrorCode = 302
	CodeInvalidAwakenPayload       ErrorCode = 303
	CodeInvalidAcceptPayload       ErrorCode = 304
	CodeInvalidAnswerPayload       ErrorCode = 305
	CodeInvalidIceCandidatePayload ErrorCode = 306
	CodeInvalidRejectPayload       ErrorCode = 307
)

var descriptions = map[ErrorCode]string{
	CodeInternal:                   "Internal Server Error",
	CodeInvalidCreateRoomPayload:   "Invalid CREATE_ROOM Payload",
	CodeInvalidDialPayload:         "Invalid DIAL Payload",
	CodeInvalidAwakenPayload:       "Invalid AWAKEN Payload",
	CodeInvalidAcceptPayload:       "Invalid ACCEPT Payload",
	CodeInvalidAnswerPayload:       "Invalid ANSWER Payload",
	CodeInvalidIceCandidatePayload: "Invalid SEND_ICE_CANDIDATE Payload",
	CodeInvalidRejectPayload:       "Invalid REJECT Payload",
}

// Description returns the fixed text for code; unknown codes fall back to
// the internal error text.
func (c ErrorCode) Description() string {
	if d, ok := descriptions[c]; ok {
		return d
	}
	return descriptions[CodeInternal]
}

// SignalingError is raised by validation and handlers and reported to the
// originating peer as SERVER_TO_PEER_ERROR.
type SignalingError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func NewSignalingError(code ErrorCode, format string, args ...any) *SignalingError {
	return &SignalingError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapSignalingError keeps err as the cause while reporting code.
func WrapSignalingError(code ErrorCode, err error, format string, args ...any) *SignalingError {
	return &SignalingError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *SignalingError) Error() string {
	return fmt.Sprintf("signaling error %d (%s): %s", e.Code, e.Code.Description(), e.Message)
}

func (e *SignalingError) Unwrap() error { return e.Err }

func (e *SignalingError) Description() string { return e.Code.Description() }

// ErrorPayload is the body of SERVER_TO_PEER_ERROR.
type ErrorPayload struct {
	Code        ErrorCode `json:"code"`
	Description string    `json:"description"`
	Message     string    `json:"message"`
}

// ErrorPayloadOf classifies err: signaling errors keep their code, anything
// else is reported as an internal error.
func ErrorPayloadOf(err error) ErrorPayload {
	var se *SignalingError
	if errors.As(err, &se) {
		return ErrorPayload{Code: se.Code, Description: se.Description(), Message: se.Message}
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ErrorPayload{Code: CodeInternal, Description: CodeInternal.Description(), Message: msg}
}
