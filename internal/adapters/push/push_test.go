package push

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Signal/internal/core"
)

type fakeSender struct {
	got []*messaging.Message
	err error
}

func (f *fakeSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.got = append(f.got, m)
	return "projects/p/messages/1", f.err
}

func TestFCMNotifierBuildsHighPriorityDataMessage(t *testing.T) {
	fs := &fakeSender{}
	n := &FCMNotifier{client: fs}

	err := n.Send(context.Background(), core.Notification{
		Data:     map[string]string{"room": "R1", "callerId": "alice"},
		Priority: core.PriorityHigh,
		Token:    "tok-bob",
	})

	require.NoError(t, err)
	require.Len(t, fs.got, 1)
	assert.Equal(t, &messaging.Message{
		Data:    map[string]string{"room": "R1", "callerId": "alice"},
		Token:   "tok-bob",
		Android: &messaging.AndroidConfig{Priority: "high"},
	}, fs.got[0])
}

func TestFCMNotifierErrors(t *testing.T) {
	fs := &fakeSender{err: errors.New("unregistered")}
	n := &FCMNotifier{client: fs}

	assert.ErrorIs(t, n.Send(context.Background(), core.Notification{}), ErrNoToken)
	assert.Empty(t, fs.got)

	err := n.Send(context.Background(), core.Notification{Token: "t"})
	assert.ErrorIs(t, err, fs.err)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Send(context.Background(), core.Notification{Token: "t"}))
	assert.ErrorIs(t, LogNotifier{}.Send(context.Background(), core.Notification{}), ErrNoToken)
}
