package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Signal/internal/core"
)

type sent struct {
	event   string
	payload any
}

type fakeConn struct {
	id string

	mu     sync.Mutex
	out    []sent
	full   bool
	closed bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Next(ctx context.Context) (string, core.Payload, error) {
	<-ctx.Done()
	return "", nil, ctx.Err()
}

func (c *fakeConn) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("queue full")
	}
	c.out = append(c.out, sent{event, payload})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.out))
	for _, s := range c.out {
		out = append(out, s.event)
	}
	return out
}

func TestHubEmitExcludesSender(t *testing.T) {
	h := NewHub(nil)
	a, b, c := &fakeConn{id: "a"}, &fakeConn{id: "b"}, &fakeConn{id: "c"}
	h.Join(a, "room-1")
	h.Join(b, "room-1")
	h.Join(c, "room-2")

	res := h.Emit("room-1", "a", "PING", nil)

	assert.Equal(t, 1, res.SendTo)
	assert.Empty(t, res.Dropped)
	assert.Empty(t, a.events())
	assert.Equal(t, []string{"PING"}, b.events())
	assert.Empty(t, c.events())
}

func TestHubLeaveAndLeaveAll(t *testing.T) {
	h := NewHub(nil)
	a := &fakeConn{id: "a"}
	h.Join(a, "room-1", core.PersonalGroup("alice"))
	require.Equal(t, []string{"a"}, h.Members("room-1"))

	h.Leave(a, "room-1")
	assert.Empty(t, h.Members("room-1"))
	assert.Equal(t, []string{"a"}, h.Members("user:alice"))

	h.LeaveAll(a)
	assert.Empty(t, h.Members("user:alice"))
	assert.Empty(t, h.List())
}

func TestHubList(t *testing.T) {
	h := NewHub(nil)
	h.Join(&fakeConn{id: "a"}, "r", "user:alice")
	h.Join(&fakeConn{id: "b"}, "r")

	assert.Equal(t, []core.GroupInfo{
		{Name: "r", MemberCount: 2},
		{Name: "user:alice", MemberCount: 1},
	}, h.List())
}

func TestHubKicksSlowMember(t *testing.T) {
	h := NewHub(SimplePolicy{})
	slow := &fakeConn{id: "slow", full: true}
	ok := &fakeConn{id: "ok"}
	h.Join(slow, "r")
	h.Join(ok, "r")

	res := h.Emit("r", "", "X", nil)

	assert.Equal(t, 1, res.SendTo)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, "slow", res.Dropped[0].ID())
	assert.True(t, slow.closed)
	assert.Equal(t, []string{"ok"}, h.Members("r"))
}

func TestHubTolerantPolicyKeepsSlowMember(t *testing.T) {
	h := NewHub(TolerantPolicy{})
	slow := &fakeConn{id: "slow", full: true}
	h.Join(slow, "r")

	res := h.Emit("r", "", "X", nil)

	assert.Len(t, res.Dropped, 1)
	assert.False(t, slow.closed)
	assert.Equal(t, []string{"slow"}, h.Members("r"))
}

func TestHubEmitToEmptyGroup(t *testing.T) {
	h := NewHub(nil)
	res := h.Emit("nobody", "", "X", nil)
	assert.Zero(t, res.SendTo)
	assert.Empty(t, res.Dropped)
}
