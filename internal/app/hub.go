package app

import (
	"sort"
	"sync"

	"github.com/dkeye/Signal/internal/core"
	"github.com/rs/zerolog/log"
)

// Hub is a threadsafe in-memory group fabric.
// It never closes adapter-owned connections unless the policy says so.
type Hub struct {
	mu          sync.RWMutex
	groups      map[string]map[string]core.Conn
	memberships map[string]map[string]struct{}
	policy      Policy
}

var _ core.Fabric = (*Hub)(nil)

func NewHub(policy Policy) *Hub {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Hub{
		groups:      make(map[string]map[string]core.Conn),
		memberships: make(map[string]map[string]struct{}),
		policy:      policy,
	}
}

func (h *Hub) Join(conn core.Conn, groups ...string) {
	if conn == nil {
		return
	}
	id := conn.ID()
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, g := range groups {
		if g == "" {
			continue
		}
		members, ok := h.groups[g]
		if !ok {
			members = make(map[string]core.Conn)
			h.groups[g] = members
		}
		members[id] = conn
		joined, ok := h.memberships[id]
		if !ok {
			joined = make(map[string]struct{})
			h.memberships[id] = joined
		}
		joined[g] = struct{}{}
		log.Debug().Str("module", "app.hub").Str("sid", id).Str("group", g).Msg("joined group")
	}
}

func (h *Hub) Leave(conn core.Conn, groups ...string) {
	if conn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, g := range groups {
		h.leaveLocked(conn.ID(), g)
	}
}

func (h *Hub) LeaveAll(conn core.Conn) {
	if conn == nil {
		return
	}
	id := conn.ID()
	h.mu.Lock()
	defer h.mu.Unlock()
	for g := range h.memberships[id] {
		h.leaveLocked(id, g)
	}
	delete(h.memberships, id)
}

func (h *Hub) leaveLocked(id, group string) {
	if members, ok := h.groups[group]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	if joined, ok := h.memberships[id]; ok {
		delete(joined, group)
		if len(joined) == 0 {
			delete(h.memberships, id)
		}
	}
	log.Debug().Str("module", "app.hub").Str("sid", id).Str("group", group).Msg("left group")
}

func (h *Hub) Emit(group, except, event string, payload any) core.PublishResult {
	h.mu.RLock()
	targets := make([]core.Conn, 0, len(h.groups[group]))
	for id, c := range h.groups[group] {
		if id == except {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	res := core.PublishResult{}
	for _, c := range targets {
		if err := c.Emit(event, payload); err != nil {
			res.Dropped = append(res.Dropped, c)
			h.onBackPressure(group, c, err)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.hub").Str("group", group).Str("event", event).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("emit result")
	return res
}

func (h *Hub) onBackPressure(group string, c core.Conn, err error) {
	switch h.policy.OnBackPressure(group, c) {
	case KickMember:
		log.Warn().Str("module", "app.hub").Err(err).Str("sid", c.ID()).Str("group", group).Msg("kicking slow member")
		h.LeaveAll(c)
		_ = c.Close()
	case MarkSlow:
		log.Warn().Str("module", "app.hub").Err(err).Str("sid", c.ID()).Str("group", group).Msg("member is slow")
	}
}

// Members returns the connection ids currently in group.
func (h *Hub) Members(group string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.groups[group]))
	for id := range h.groups[group] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (h *Hub) List() []core.GroupInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]core.GroupInfo, 0, len(h.groups))
	for name, members := range h.groups {
		out = append(out, core.GroupInfo{Name: name, MemberCount: len(members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
