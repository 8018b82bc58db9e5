// Package push delivers wake-up notifications to callee devices.
package push

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/dkeye/Signal/internal/core"
)

var ErrNoToken = errors.New("notification has no device token")

type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier sends data messages through Firebase Cloud Messaging.
type FCMNotifier struct {
	client sender
}

var _ core.Notifier = (*FCMNotifier)(nil)

func NewFCMNotifier(ctx context.Context, credentialsFile string) (*FCMNotifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return &FCMNotifier{client: client}, nil
}

func (n *FCMNotifier) Send(ctx context.Context, note core.Notification) error {
	if note.Token == "" {
		return ErrNoToken
	}
	id, err := n.client.Send(ctx, buildMessage(note))
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	log.Debug().Str("module", "adapters.push").Str("message_id", id).Msg("push sent")
	return nil
}

func buildMessage(note core.Notification) *messaging.Message {
	msg := &messaging.Message{
		Data:  note.Data,
		Token: note.Token,
	}
	if note.Priority != "" {
		msg.Android = &messaging.AndroidConfig{Priority: note.Priority}
	}
	return msg
}

// LogNotifier only logs; used when push delivery is disabled.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, note core.Notification) error {
	if note.Token == "" {
		return ErrNoToken
	}
	log.Info().Str("module", "adapters.push").Interface("data", note.Data).Str("priority", note.Priority).Msg("push disabled, notification dropped")
	return nil
}
