package core

import "context"

// Conn abstracts one signaling transport connection.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	ID() string
	// Next blocks until the next inbound message arrives.
	Next(ctx context.Context) (event string, payload Payload, err error)
	// Emit queues an outbound message without blocking.
	Emit(event string, payload any) error
	Close() error
}
