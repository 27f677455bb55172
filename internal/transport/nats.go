package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"PriceArena/internal/game"
)

const (
	// HeartbeatInterval is how often a tracked node re-announces itself.
	HeartbeatInterval = 5 * time.Second

	// PresenceTTL is how long a member survives without a heartbeat before
	// the sweeper drops it from the synthesized snapshot.
	PresenceTTL = 15 * time.Second
)

// presenceMsg is the heartbeat/withdrawal wire format on the presence subject.
type presenceMsg struct {
	game.Participant
	Leaving bool `json:"leaving,omitempty"`
}

// NATSTransport implements Transport over plain core NATS pub/sub.
//
// NATS has no presence primitive, so it is emulated: every tracked node
// heartbeats its descriptor on the presence subject, a sweeper expires
// members unseen for PresenceTTL, and full membership snapshots (always
// including the tracked self) are synthesized on every change — preserving
// the last-snapshot-wins contract the presence consumer expects.
type NATSTransport struct {
	nc      *nats.Conn
	prefix  string
	clock   clockwork.Clock
	log     zerolog.Logger
	cancel  context.CancelFunc
	subs    []*nats.Subscription
	handler Handlers

	mu       sync.Mutex
	self     *game.Participant
	lastSeen map[string]presenceEntry
	lastSnap []game.Participant
}

type presenceEntry struct {
	member game.Participant
	seenAt time.Time
}

// ConnectNATS establishes a NATS connection with the retry/logging posture
// a long-lived game node wants. NoEcho keeps a node from consuming its own
// broadcasts; the local side of every action is applied directly.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.NoEcho(),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// NewNATS binds a transport to a channel name. Subjects are
// arena.<channel>.presence and arena.<channel>.<event>.
func NewNATS(nc *nats.Conn, channel string, clock clockwork.Clock, log zerolog.Logger) *NATSTransport {
	return &NATSTransport{
		nc:       nc,
		prefix:   "arena." + sanitizeChannel(channel),
		clock:    clock,
		log:      log,
		lastSeen: make(map[string]presenceEntry),
	}
}

func (t *NATSTransport) Subscribe(ctx context.Context, h Handlers) error {
	t.handler = h

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	presenceSub, err := t.nc.Subscribe(t.prefix+".presence", t.onPresenceMsg)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe presence: %w", err)
	}
	t.subs = append(t.subs, presenceSub)

	// One wildcard subscription covers every broadcast event; the event name
	// is recovered from the subject tail.
	broadcastSub, err := t.nc.Subscribe(t.prefix+".bcast.*", func(msg *nats.Msg) {
		event := msg.Subject[strings.LastIndexByte(msg.Subject, '.')+1:]
		if t.handler.OnBroadcast != nil {
			t.handler.OnBroadcast(event, msg.Data)
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe broadcasts: %w", err)
	}
	t.subs = append(t.subs, broadcastSub)

	go t.runPresenceLoop(loopCtx)
	return nil
}

func (t *NATSTransport) Track(self game.Participant) error {
	t.mu.Lock()
	s := self
	t.self = &s
	t.mu.Unlock()

	if err := t.publishPresence(presenceMsg{Participant: self}); err != nil {
		return fmt.Errorf("announce presence: %w", err)
	}
	t.syncSnapshot()
	return nil
}

func (t *NATSTransport) Publish(event string, payload []byte) error {
	if err := t.nc.Publish(t.prefix+".bcast."+event, payload); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

func (t *NATSTransport) Close() error {
	t.mu.Lock()
	self := t.self
	t.self = nil
	t.mu.Unlock()

	if self != nil {
		// Best-effort withdrawal so peers drop us before the TTL does.
		if err := t.publishPresence(presenceMsg{Participant: *self, Leaving: true}); err != nil {
			t.log.Debug().Err(err).Msg("presence withdrawal failed")
		}
	}
	if t.cancel != nil {
		t.cancel()
	}
	for _, sub := range t.subs {
		if err := sub.Unsubscribe(); err != nil {
			t.log.Debug().Err(err).Msg("unsubscribe failed")
		}
	}
	return t.nc.Flush()
}

func (t *NATSTransport) onPresenceMsg(msg *nats.Msg) {
	var pm presenceMsg
	if err := json.Unmarshal(msg.Data, &pm); err != nil {
		t.log.Warn().Err(err).Msg("malformed presence message dropped")
		return
	}
	if pm.ID == "" || !pm.Team.Valid() {
		t.log.Warn().Str("id", pm.ID).Msg("invalid presence descriptor dropped")
		return
	}

	t.mu.Lock()
	if pm.Leaving {
		delete(t.lastSeen, pm.ID)
	} else {
		t.lastSeen[pm.ID] = presenceEntry{member: pm.Participant, seenAt: t.clock.Now()}
	}
	t.mu.Unlock()

	t.syncSnapshot()
}

// runPresenceLoop heartbeats the tracked self and sweeps expired members.
func (t *NATSTransport) runPresenceLoop(ctx context.Context) {
	ticker := t.clock.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			t.mu.Lock()
			self := t.self
			t.mu.Unlock()

			if self != nil {
				if err := t.publishPresence(presenceMsg{Participant: *self}); err != nil {
					t.log.Debug().Err(err).Msg("heartbeat publish failed")
				}
			}
			if t.sweepExpired() {
				t.syncSnapshot()
			}
		}
	}
}

func (t *NATSTransport) sweepExpired() bool {
	cutoff := t.clock.Now().Add(-PresenceTTL)

	t.mu.Lock()
	defer t.mu.Unlock()
	swept := false
	for id, entry := range t.lastSeen {
		if entry.seenAt.Before(cutoff) {
			delete(t.lastSeen, id)
			swept = true
		}
	}
	return swept
}

// syncSnapshot synthesizes the full membership and delivers it when changed.
func (t *NATSTransport) syncSnapshot() {
	t.mu.Lock()
	members := make([]game.Participant, 0, len(t.lastSeen)+1)
	for _, entry := range t.lastSeen {
		members = append(members, entry.member)
	}
	if t.self != nil {
		if _, seen := t.lastSeen[t.self.ID]; !seen {
			members = append(members, *t.self)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	if equalSnapshots(t.lastSnap, members) {
		t.mu.Unlock()
		return
	}
	t.lastSnap = members
	handler := t.handler.OnPresenceSync
	t.mu.Unlock()

	if handler != nil {
		handler(members)
	}
}

func (t *NATSTransport) publishPresence(pm presenceMsg) error {
	data, err := json.Marshal(pm)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	return t.nc.Publish(t.prefix+".presence", data)
}

func equalSnapshots(a, b []game.Participant) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sanitizeChannel(channel string) string {
	if channel == "" {
		return "main"
	}
	return strings.ReplaceAll(channel, ".", "_")
}
