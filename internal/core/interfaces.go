package core

//go:generate mockgen -destination=mocks/mock_core.go -package=mocks github.com/dkeye/Signal/internal/core Ledger,UserDirectory,Notifier

import (
	"context"

	"github.com/dkeye/Signal/internal/domain"
)

// UserDirectory resolves user ids to directory entries.
type UserDirectory interface {
	// FindUserByID returns nil, nil when the user does not exist.
	FindUserByID(ctx context.Context, id domain.UserID) (*domain.User, error)
}

const PriorityHigh = "high"

// Notification wakes a callee's device.
type Notification struct {
	Data     map[string]string
	Priority string
	Token    string
}

type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
