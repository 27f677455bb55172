package transport_test

import (
	"context"
	"sync"
	"testing"

	"PriceArena/internal/game"
	"PriceArena/internal/transport"
)

type recorder struct {
	mu        sync.Mutex
	snapshots [][]game.Participant
	events    []string
	payloads  [][]byte
}

func (r *recorder) handlers() transport.Handlers {
	return transport.Handlers{
		OnPresenceSync: func(snapshot []game.Participant) {
			r.mu.Lock()
			r.snapshots = append(r.snapshots, snapshot)
			r.mu.Unlock()
		},
		OnBroadcast: func(event string, payload []byte) {
			r.mu.Lock()
			r.events = append(r.events, event)
			r.payloads = append(r.payloads, payload)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) lastSnapshot() []game.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

func TestMemoryHub_PresenceSnapshots(t *testing.T) {
	hub := transport.NewMemoryHub()
	ctx := context.Background()

	a, b := hub.Join(), hub.Join()
	var recA, recB recorder
	a.Subscribe(ctx, recA.handlers())
	b.Subscribe(ctx, recB.handlers())

	a.Track(game.Participant{ID: "a", Name: "ava", Team: game.TeamAlpha})
	b.Track(game.Participant{ID: "b", Name: "ben", Team: game.TeamBeta})

	snap := recA.lastSnapshot()
	if len(snap) != 2 || snap[0].ID != "a" || snap[1].ID != "b" {
		t.Fatalf("snapshot got %+v, want sorted a,b", snap)
	}

	// Leaving shrinks everyone's snapshot.
	b.Close()
	snap = recA.lastSnapshot()
	if len(snap) != 1 || snap[0].ID != "a" {
		t.Errorf("after leave snapshot got %+v, want just a", snap)
	}
}

func TestMemoryHub_BroadcastSkipsSender(t *testing.T) {
	hub := transport.NewMemoryHub()
	ctx := context.Background()

	a, b := hub.Join(), hub.Join()
	var recA, recB recorder
	a.Subscribe(ctx, recA.handlers())
	b.Subscribe(ctx, recB.handlers())

	a.Publish("game_tick", []byte(`{"seq":1}`))

	recB.mu.Lock()
	gotB := len(recB.events)
	recB.mu.Unlock()
	if gotB != 1 || recB.events[0] != "game_tick" {
		t.Fatalf("receiver events got %v, want one game_tick", recB.events)
	}

	recA.mu.Lock()
	gotA := len(recA.events)
	recA.mu.Unlock()
	if gotA != 0 {
		t.Errorf("sender must not receive its own broadcast, got %d", gotA)
	}
}
