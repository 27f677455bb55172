package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"PriceArena/internal/game"
	"PriceArena/internal/testutil"
	"PriceArena/internal/transport"
)

// Requires a NATS broker; gated behind INTEGRATION_TEST=1.
func TestNATSPresenceAndBroadcast(t *testing.T) {
	testutil.RequireIntegration(t)

	url := testutil.TestNATSURL()
	ncA, err := transport.ConnectNATS(url, zerolog.Nop())
	if err != nil {
		t.Skipf("nats not available: %v", err)
	}
	defer ncA.Close()
	ncB, err := transport.ConnectNATS(url, zerolog.Nop())
	if err != nil {
		t.Fatalf("second connect: %v", err)
	}
	defer ncB.Close()

	// A throwaway channel keeps parallel test runs from cross-talking.
	channel := "it-" + uuid.New().String()[:8]
	clock := clockwork.NewRealClock()
	trA := transport.NewNATS(ncA, channel, clock, zerolog.Nop())
	trB := transport.NewNATS(ncB, channel, clock, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var recA, recB recorder
	if err := trA.Subscribe(ctx, recA.handlers()); err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	if err := trB.Subscribe(ctx, recB.handlers()); err != nil {
		t.Fatalf("subscribe b: %v", err)
	}

	if err := trA.Track(game.Participant{ID: "a", Name: "ava", Team: game.TeamAlpha}); err != nil {
		t.Fatalf("track a: %v", err)
	}
	if err := trB.Track(game.Participant{ID: "b", Name: "ben", Team: game.TeamBeta}); err != nil {
		t.Fatalf("track b: %v", err)
	}

	waitFor(t, "membership convergence", func() bool {
		return len(recA.lastSnapshot()) == 2 && len(recB.lastSnapshot()) == 2
	})

	if err := trA.Publish("game_tick", []byte(`{"seq":1,"leader_id":"a"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitFor(t, "broadcast delivery", func() bool {
		recB.mu.Lock()
		defer recB.mu.Unlock()
		return len(recB.events) == 1 && recB.events[0] == "game_tick"
	})

	// No self-echo on the publisher.
	recA.mu.Lock()
	selfEchoed := len(recA.events)
	recA.mu.Unlock()
	if selfEchoed != 0 {
		t.Errorf("publisher received its own broadcast %d times", selfEchoed)
	}

	// Withdrawal shrinks the peer's membership ahead of the TTL.
	if err := trB.Close(); err != nil {
		t.Fatalf("close b: %v", err)
	}
	waitFor(t, "withdrawal", func() bool {
		snap := recA.lastSnapshot()
		return len(snap) == 1 && snap[0].ID == "a"
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
