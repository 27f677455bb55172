package transport

import (
	"context"
	"sort"
	"sync"

	"PriceArena/internal/game"
)

// MemoryHub is an in-process channel shared by several MemoryTransport
// nodes. It exists for tests and single-process demos: same contract as the
// NATS transport (no self-echo on broadcasts, full snapshots on presence
// change) without a broker.
type MemoryHub struct {
	mu    sync.Mutex
	nodes map[*MemoryTransport]struct{}
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{nodes: make(map[*MemoryTransport]struct{})}
}

// Join creates a node connected to the hub.
func (h *MemoryHub) Join() *MemoryTransport {
	t := &MemoryTransport{hub: h}
	h.mu.Lock()
	h.nodes[t] = struct{}{}
	h.mu.Unlock()
	return t
}

func (h *MemoryHub) broadcast(from *MemoryTransport, event string, payload []byte) {
	for _, node := range h.snapshot() {
		if node == from {
			continue
		}
		node.deliverBroadcast(event, payload)
	}
}

func (h *MemoryHub) presenceChanged() {
	members := h.members()
	for _, node := range h.snapshot() {
		node.deliverPresence(members)
	}
}

func (h *MemoryHub) members() []game.Participant {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]game.Participant, 0, len(h.nodes))
	for node := range h.nodes {
		node.mu.Lock()
		if node.self != nil {
			out = append(out, *node.self)
		}
		node.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *MemoryHub) snapshot() []*MemoryTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*MemoryTransport, 0, len(h.nodes))
	for node := range h.nodes {
		out = append(out, node)
	}
	return out
}

func (h *MemoryHub) leave(t *MemoryTransport) {
	h.mu.Lock()
	delete(h.nodes, t)
	h.mu.Unlock()
	h.presenceChanged()
}

// MemoryTransport is one node's handle on a MemoryHub.
type MemoryTransport struct {
	hub *MemoryHub

	mu      sync.Mutex
	self    *game.Participant
	handler Handlers
}

func (t *MemoryTransport) Subscribe(_ context.Context, h Handlers) error {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
	return nil
}

func (t *MemoryTransport) Track(self game.Participant) error {
	t.mu.Lock()
	s := self
	t.self = &s
	t.mu.Unlock()
	t.hub.presenceChanged()
	return nil
}

func (t *MemoryTransport) Publish(event string, payload []byte) error {
	t.hub.broadcast(t, event, payload)
	return nil
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	t.self = nil
	t.handler = Handlers{}
	t.mu.Unlock()
	t.hub.leave(t)
	return nil
}

func (t *MemoryTransport) deliverBroadcast(event string, payload []byte) {
	t.mu.Lock()
	fn := t.handler.OnBroadcast
	t.mu.Unlock()
	if fn != nil {
		fn(event, payload)
	}
}

func (t *MemoryTransport) deliverPresence(members []game.Participant) {
	t.mu.Lock()
	fn := t.handler.OnPresenceSync
	t.mu.Unlock()
	if fn != nil {
		fn(members)
	}
}
