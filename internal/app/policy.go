package app

import "github.com/dkeye/Signal/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
)

// Policy decides what happens to a member whose outbound queue is full.
type Policy interface {
	OnBackPressure(group string, member core.Conn) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(string, core.Conn) BackpressureAction {
	return KickMember
}

// TolerantPolicy only logs slow members.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(string, core.Conn) BackpressureAction {
	return MarkSlow
}
