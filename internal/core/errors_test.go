package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorPayloadOf(t *testing.T) {
	cause := errors.New("no such row")
	err := WrapSignalingError(CodeInvalidAcceptPayload, cause, "There is no user %s.", "bob")

	p := ErrorPayloadOf(err)
	assert.Equal(t, CodeInvalidAcceptPayload, p.Code)
	assert.Equal(t, "Invalid ACCEPT Payload", p.Description)
	assert.Equal(t, "There is no user bob.", p.Message)
	assert.ErrorIs(t, err, cause)

	p = ErrorPayloadOf(errors.New("boom"))
	assert.Equal(t, CodeInternal, p.Code)
	assert.Equal(t, "Internal Server Error", p.Description)
	assert.Equal(t, "boom", p.Message)
}

func TestErrorPayloadOfWrapped(t *testing.T) {
	inner := NewSignalingError(CodeInvalidDialPayload, "Invalid payload. calleeId: <nil>")
	p := ErrorPayloadOf(errors.Join(errors.New("dial"), inner))
	require.Equal(t, CodeInvalidDialPayload, p.Code)
	assert.Equal(t, "Invalid payload. calleeId: <nil>", p.Message)
}

func TestUnknownCodeDescription(t *testing.T) {
	assert.Equal(t, "Internal Server Error", ErrorCode(999).Description())
}
