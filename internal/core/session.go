package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Signal/internal/domain"
)

var (
	ErrIllegalTransition = errors.New("illegal session transition")
	ErrDetached          = errors.New("session detached from transport")
)

// State is the call-lifecycle position of a session.
type State int

const (
	StateUninitialized State = iota
	StateRoomOpen
	StateAwakened
	StateEstablishing
	StateInCall
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateRoomOpen:
		return "ROOM_OPEN"
	case StateAwakened:
		return "AWAKENED"
	case StateEstablishing:
		return "ESTABLISHING"
	case StateInCall:
		return "IN_CALL"
	case StateTerminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SessionBase carries the defaults handed to a session factory.
type SessionBase struct {
	ID        string
	Conn      Conn
	CreatedAt time.Time
}

// Session is the per-connection call state. It is owned by the goroutine
// serving its connection and must not be shared.
type Session struct {
	id        string
	createdAt time.Time
	conn      Conn
	fabric    Fabric

	room     domain.RoomID
	self     domain.UserID
	callerID domain.UserID
	state    State
}

func NewSession(base SessionBase, fabric Fabric) *Session {
	if fabric == nil {
		fabric = NopFabric
	}
	createdAt := base.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Session{
		id:        base.ID,
		createdAt: createdAt,
		conn:      base.Conn,
		fabric:    fabric,
	}
}

func (s *Session) ID() string              { return s.id }
func (s *Session) CreatedAt() time.Time    { return s.createdAt }
func (s *Session) Room() domain.RoomID     { return s.room }
func (s *Session) Self() domain.UserID     { return s.self }
func (s *Session) CallerID() domain.UserID { return s.callerID }
func (s *Session) State() State            { return s.state }
func (s *Session) Conn() Conn              { return s.conn }
func (s *Session) Initialized() bool       { return s.room != "" && s.self != "" }
func (s *Session) Attached() bool          { return s.conn != nil }
func (s *Session) IsCallee() bool          { return s.callerID != "" }

// OpenRoom records this connection as the caller of room.
func (s *Session) OpenRoom(room domain.RoomID, caller domain.UserID) error {
	if s.state == StateRoomOpen && s.room == room && s.self == caller {
		return nil
	}
	if s.state != StateUninitialized {
		return fmt.Errorf("%w: open room from %s", ErrIllegalTransition, s.state)
	}
	s.room, s.self, s.callerID = room, caller, ""
	s.state = StateRoomOpen
	return nil
}

// Awaken records this connection as callee woken for room by caller.
func (s *Session) Awaken(room domain.RoomID, caller, callee domain.UserID) error {
	if s.state == StateAwakened && s.room == room && s.self == callee && s.callerID == caller {
		return nil
	}
	if s.state != StateUninitialized {
		return fmt.Errorf("%w: awaken from %s", ErrIllegalTransition, s.state)
	}
	s.room, s.self, s.callerID = room, callee, caller
	s.state = StateAwakened
	return nil
}

// CanRestore reports whether Restore would succeed. A session that hung up
// or rejected stays terminated until its connection closes.
func (s *Session) CanRestore() bool { return s.state == StateUninitialized }

// Restore rebuilds a session lost on reconnect from the ledger's view.
func (s *Session) Restore(room domain.RoomID, self domain.UserID) error {
	if !s.CanRestore() {
		return fmt.Errorf("%w: restore from %s", ErrIllegalTransition, s.state)
	}
	s.room, s.self = room, self
	s.state = StateEstablishing
	return nil
}

func (s *Session) MarkJoined() error {
	if !s.Initialized() {
		return fmt.Errorf("%w: join from %s", ErrIllegalTransition, s.state)
	}
	if s.state < StateEstablishing {
		s.state = StateEstablishing
	}
	return nil
}

func (s *Session) MarkInCall() {
	if s.Initialized() && s.state < StateInCall {
		s.state = StateInCall
	}
}

// Terminate clears the call fields after an explicit hang-up or reject.
func (s *Session) Terminate() {
	s.clear()
	s.state = StateTerminated
}

// Release clears the call fields on disconnect.
func (s *Session) Release() {
	s.clear()
	if s.state != StateTerminated {
		s.state = StateUninitialized
	}
}

// Detach drops the transport handles; later emits fail with ErrDetached.
func (s *Session) Detach() {
	s.conn = nil
	s.fabric = NopFabric
}

func (s *Session) clear() {
	s.room, s.self, s.callerID = "", "", ""
}

// Emit sends event to this session's own connection.
func (s *Session) Emit(event string, payload any) error {
	if s.conn == nil {
		return ErrDetached
	}
	return s.conn.Emit(event, payload)
}

func (s *Session) Join(groups ...string) {
	if s.conn == nil {
		return
	}
	s.fabric.Join(s.conn, groups...)
}

func (s *Session) Leave(groups ...string) {
	if s.conn == nil {
		return
	}
	s.fabric.Leave(s.conn, groups...)
}

func (s *Session) LeaveAll() {
	if s.conn == nil {
		return
	}
	s.fabric.LeaveAll(s.conn)
}

// EmitTo sends event to every member of group other than this connection.
func (s *Session) EmitTo(group, event string, payload any) PublishResult {
	return s.fabric.Emit(group, s.id, event, payload)
}

func (s *Session) CloseConn() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// CloseConnAfter closes the connection once d has elapsed.
func (s *Session) CloseConnAfter(d time.Duration) *time.Timer {
	conn := s.conn
	return time.AfterFunc(d, func() {
		if conn != nil {
			_ = conn.Close()
		}
	})
}
