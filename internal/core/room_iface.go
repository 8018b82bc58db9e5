package core

import "github.com/dkeye/Signal/internal/domain"

// PublishResult reports delivery stats/backpressure of a group emit.
type PublishResult struct {
	SendTo  int
	Dropped []Conn
}

type GroupInfo struct {
	Name        string `json:"name"`
	MemberCount int    `json:"client_count"`
}

// Fabric is the transport broadcast layer: named groups of connections.
// Rooms and personal channels are both groups.
type Fabric interface {
	Join(conn Conn, groups ...string)
	Leave(conn Conn, groups ...string)
	LeaveAll(conn Conn)
	// Emit sends to every member of group except the connection with id except.
	Emit(group, except, event string, payload any) PublishResult
}

// PersonalGroup is the group addressing whoever is connected as user.
func PersonalGroup(user domain.UserID) string {
	return "user:" + string(user)
}

// RoomGroup is the group of everyone in room. The prefix keeps room ids
// from colliding with personal groups.
func RoomGroup(room domain.RoomID) string {
	return "room:" + string(room)
}

type nopFabric struct{}

func (nopFabric) Join(Conn, ...string)                           {}
func (nopFabric) Leave(Conn, ...string)                          {}
func (nopFabric) LeaveAll(Conn)                                  {}
func (nopFabric) Emit(string, string, string, any) PublishResult { return PublishResult{} }

// NopFabric discards all group operations.
var NopFabric Fabric = nopFabric{}
