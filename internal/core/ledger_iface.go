package core

import (
	"context"
	"fmt"

	"github.com/dkeye/Signal/internal/domain"
)

// Ledger is the transactional record of call presence.
// Every method runs as its own transaction.
type Ledger interface {
	Open(ctx context.Context, room domain.RoomID, user domain.UserID) error
	// OpenAndListOthers atomically lists the users present in room (except
	// user) and records user as present.
	OpenAndListOthers(ctx context.Context, room domain.RoomID, user domain.UserID) ([]domain.UserID, error)
	Close(ctx context.Context, user domain.UserID) error
	// FindLastRoom returns the room of user's most recent record, open or closed.
	FindLastRoom(ctx context.Context, user domain.UserID) (domain.RoomID, bool, error)
	// ReopenLastRoom is FindLastRoom that also marks that record present again.
	ReopenLastRoom(ctx context.Context, user domain.UserID) (domain.RoomID, bool, error)
	IsOpen(ctx context.Context, user domain.UserID) (bool, error)
	IsOpenInRoom(ctx context.Context, user domain.UserID, room domain.RoomID) (bool, error)
}

type LedgerErrorKind int

const (
	LedgerOther LedgerErrorKind = iota
	LedgerUnknownUser
	LedgerConflict
)

func (k LedgerErrorKind) String() string {
	switch k {
	case LedgerUnknownUser:
		return "unknown_user"
	case LedgerConflict:
		return "conflict"
	default:
		return "other"
	}
}

// LedgerError tags ledger failures so callers can branch on Kind.
type LedgerError struct {
	Kind LedgerErrorKind
	User domain.UserID
	Err  error
}

func (e *LedgerError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ledger %s: user %s", e.Kind, e.User)
	}
	return fmt.Sprintf("ledger %s: user %s: %v", e.Kind, e.User, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }
