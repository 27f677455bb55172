// Package transport abstracts the presence/broadcast channel the arena runs
// over. The contract mirrors what the game needs and nothing more: join a
// named channel, announce yourself into its presence set, receive full
// membership snapshots and best-effort broadcasts, publish best-effort
// broadcasts. No delivery acks, no cross-publisher ordering.
package transport

import (
	"context"

	"PriceArena/internal/game"
)

// Handlers receives transport callbacks. Both may be invoked from transport
// goroutines; implementations are expected to hand off to their own loop.
type Handlers struct {
	// OnPresenceSync delivers the full current membership. Each call
	// wholesale-replaces the previous snapshot.
	OnPresenceSync func(snapshot []game.Participant)

	// OnBroadcast delivers a named broadcast payload.
	OnBroadcast func(event string, payload []byte)
}

// Transport is one node's connection to the shared channel.
type Transport interface {
	// Subscribe registers handlers and starts delivery. Call once.
	Subscribe(ctx context.Context, h Handlers) error

	// Track announces the local participant into the presence set.
	Track(self game.Participant) error

	// Publish sends a best-effort broadcast to all other members. The
	// publisher does not receive its own broadcasts back.
	Publish(event string, payload []byte) error

	// Close withdraws presence and tears down subscriptions.
	Close() error
}
