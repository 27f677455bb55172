// Package orchestrator runs the per-node game loop. A single goroutine owns
// the GameState; clock ticks, presence syncs, received broadcasts, local
// votes, and local chat all arrive as messages into that owner. Leadership is
// decided once per tick from the latest presence snapshot: the leader runs
// the authoritative tick pipeline and broadcasts, a follower merges what the
// leader publishes.
package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"PriceArena/internal/commentary"
	"PriceArena/internal/election"
	"PriceArena/internal/feed"
	"PriceArena/internal/game"
	"PriceArena/internal/observability"
	"PriceArena/internal/replication"
	"PriceArena/internal/transport"
)

const (
	// DefaultTickPeriod is the game clock cadence.
	DefaultTickPeriod = time.Second

	// DefaultFeedTimeout bounds the in-tick price fetch so a slow feed
	// cannot straddle two tick boundaries.
	DefaultFeedTimeout = 800 * time.Millisecond

	cmdBuffer = 128
)

// Config wires an Orchestrator.
type Config struct {
	Self        game.Participant
	Transport   transport.Transport
	Feed        *feed.Feed
	Clock       clockwork.Clock
	Log         zerolog.Logger
	Metrics     *observability.Metrics // optional
	TickPeriod  time.Duration
	FeedTimeout time.Duration
}

// Status is the read-only view handed to the presentation layer.
type Status struct {
	State    game.GameState     `json:"state"`
	Self     game.Participant   `json:"self"`
	Members  []game.Participant `json:"members"`
	LeaderID string             `json:"leader_id"`
	IsLeader bool               `json:"is_leader"`
}

type command struct {
	presence  []game.Participant
	event     string
	payload   []byte
	vote      game.Vote
	chatText  string
	statusReq chan Status
	kind      cmdKind
}

type cmdKind int

const (
	cmdPresence cmdKind = iota
	cmdBroadcast
	cmdVote
	cmdChat
	cmdStatus
)

type Orchestrator struct {
	self        game.Participant
	tr          transport.Transport
	feed        *feed.Feed
	clock       clockwork.Clock
	log         zerolog.Logger
	metrics     *observability.Metrics
	tickPeriod  time.Duration
	feedTimeout time.Duration

	cmds chan command

	// Everything below is owned by the run loop.
	state       game.GameState
	tracker     *election.Tracker
	guard       *replication.TickGuard
	leaderID    string
	hasLeader   bool
	wasLeader   bool
	seq         int64
	votedWindow time.Time
}

func New(cfg Config) *Orchestrator {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = DefaultTickPeriod
	}
	if cfg.FeedTimeout <= 0 {
		cfg.FeedTimeout = DefaultFeedTimeout
	}
	o := &Orchestrator{
		self:        cfg.Self,
		tr:          cfg.Transport,
		feed:        cfg.Feed,
		clock:       cfg.Clock,
		log:         cfg.Log,
		metrics:     cfg.Metrics,
		tickPeriod:  cfg.TickPeriod,
		feedTimeout: cfg.FeedTimeout,
		cmds:        make(chan command, cmdBuffer),
		state:       game.NewGameState(),
		guard:       replication.NewTickGuard(),
	}
	o.tracker = election.NewTracker(o.onMembershipChange)
	return o
}

// Run subscribes to the channel, announces presence, and drives the loop
// until ctx is canceled. The transport is closed on the way out.
func (o *Orchestrator) Run(ctx context.Context) error {
	handlers := transport.Handlers{
		OnPresenceSync: func(snapshot []game.Participant) {
			o.send(command{kind: cmdPresence, presence: snapshot})
		},
		OnBroadcast: func(event string, payload []byte) {
			o.send(command{kind: cmdBroadcast, event: event, payload: payload})
		},
	}
	if err := o.tr.Subscribe(ctx, handlers); err != nil {
		return err
	}
	if err := o.tr.Track(o.self); err != nil {
		return err
	}

	ticker := o.clock.NewTicker(o.tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := o.tr.Close(); err != nil {
				o.log.Debug().Err(err).Msg("transport close")
			}
			return ctx.Err()
		case <-ticker.Chan():
			o.onTick()
		case cmd := <-o.cmds:
			o.dispatch(cmd)
		}
	}
}

// SubmitVote records the local participant's vote, fire-and-forget.
func (o *Orchestrator) SubmitVote(v game.Vote) {
	o.send(command{kind: cmdVote, vote: v})
}

// SendChat publishes a chat line from the local participant, fire-and-forget.
func (o *Orchestrator) SendChat(text string) {
	o.send(command{kind: cmdChat, chatText: text})
}

// Snapshot returns a consistent view of the node, or an error if the loop
// is gone or ctx expires first.
func (o *Orchestrator) Snapshot(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	select {
	case o.cmds <- command{kind: cmdStatus, statusReq: reply}:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// send enqueues without blocking. Inputs are advisory; under a stalled loop
// dropping is better than wedging transport or HTTP goroutines.
func (o *Orchestrator) send(cmd command) {
	select {
	case o.cmds <- cmd:
	default:
		o.log.Warn().Int("kind", int(cmd.kind)).Msg("command dropped, loop backlogged")
	}
}

func (o *Orchestrator) dispatch(cmd command) {
	switch cmd.kind {
	case cmdPresence:
		o.tracker.ApplySync(cmd.presence)
	case cmdBroadcast:
		o.handleBroadcast(cmd.event, cmd.payload)
	case cmdVote:
		o.handleVote(cmd.vote)
	case cmdChat:
		o.handleChat(cmd.chatText)
	case cmdStatus:
		cmd.statusReq <- o.status()
	}
}

// onMembershipChange fires synchronously from tracker.ApplySync, inside the
// loop goroutine.
func (o *Orchestrator) onMembershipChange(members []game.Participant) {
	leaderID, ok := election.Elect(members)
	changed := ok != o.hasLeader || leaderID != o.leaderID
	o.leaderID, o.hasLeader = leaderID, ok

	if o.metrics != nil {
		o.metrics.Participants.Set(float64(len(members)))
		if changed {
			o.metrics.LeaderChanges.Inc()
		}
	}
	if changed {
		o.log.Info().
			Str("leader_id", leaderID).
			Bool("has_leader", ok).
			Int("members", len(members)).
			Msg("leadership changed")
	}
}

// onTick decides the node's role once and acts on it. Followers do nothing
// here: their state advances only through the leader's broadcasts.
func (o *Orchestrator) onTick() {
	if !o.hasLeader {
		o.state.Commentary = commentary.NoCommanderLine
		o.setLeaderGauge(false)
		o.countTick("suspended")
		return
	}

	isLeader := o.leaderID == o.self.ID
	if isLeader && !o.wasLeader {
		// Taking over: our own stale watermark must not gate the next reign.
		o.guard.Reset()
		o.log.Info().Msg("assuming leader role")
	}
	o.wasLeader = isLeader
	o.setLeaderGauge(isLeader)

	if !isLeader {
		o.countTick("follower")
		return
	}
	o.leaderTick()
	o.countTick("leader")
}

// leaderTick is the authoritative pipeline: price, phase, edge side effects,
// broadcast.
func (o *Orchestrator) leaderTick() {
	started := o.clock.Now()

	ctx, cancel := context.WithTimeout(context.Background(), o.feedTimeout)
	price, source := o.feed.Fetch(ctx)
	cancel()
	if source == game.SourceSimulated && o.metrics != nil {
		o.metrics.FeedFetchFailed.Inc()
	}

	now := o.clock.Now()
	o.state.CurrentPrice = price
	o.state.PriceSource = source
	o.state.Phase, o.state.PhaseEndTime = game.ComputePhase(now)

	switch {
	case game.IsVotingCloseEdge(now):
		o.closeVoting(price)
	case game.IsBattleCloseEdge(now):
		o.resolveRound(price)
	case game.IsCycleResetEdge(now):
		o.state.ResetRound()
		o.state.Commentary = commentary.ResetLine
	}

	o.seq++
	payload := replication.BuildTick(&o.state, o.self.ID, o.seq)
	data, err := json.Marshal(payload)
	if err != nil {
		o.log.Error().Err(err).Msg("marshal tick payload")
		return
	}
	if err := o.tr.Publish(replication.EventTick, data); err != nil {
		o.log.Warn().Err(err).Int64("seq", o.seq).Msg("tick broadcast failed")
	} else if o.metrics != nil {
		o.metrics.BroadcastsSent.WithLabelValues(replication.EventTick).Inc()
	}

	o.state.AppendPrice(game.PricePoint{Timestamp: now, Price: price})

	if o.metrics != nil {
		o.metrics.TickDuration.Observe(o.clock.Since(started).Seconds())
	}
}

// closeVoting locks the start price and both teams' stances at the
// VOTING to BATTLE edge.
func (o *Orchestrator) closeVoting(price float64) {
	o.state.StartPrice = price
	o.state.AlphaStats.Finalize()
	o.state.BetaStats.Finalize()
	o.state.Commentary = commentary.PickLine(commentary.Context{
		Phase:           commentary.PhaseStart,
		AlphaStance:     o.state.AlphaStats.Stance,
		AlphaConviction: o.state.AlphaStats.Conviction,
		BetaStance:      o.state.BetaStats.Stance,
		BetaConviction:  o.state.BetaStats.Conviction,
	})
}

// resolveRound fixes the winner at the BATTLE to RESULT edge.
func (o *Orchestrator) resolveRound(price float64) {
	w := game.Resolve(o.state.StartPrice, price, o.state.AlphaStats, o.state.BetaStats)
	o.state.Winner = &w

	delta := 0.0
	if o.state.StartPrice != 0 {
		delta = (price - o.state.StartPrice) / o.state.StartPrice * 100
	}
	o.state.Commentary = commentary.PickLine(commentary.Context{
		Phase:           commentary.PhaseResolved,
		PriceDelta:      delta,
		AlphaStance:     o.state.AlphaStats.Stance,
		AlphaConviction: o.state.AlphaStats.Conviction,
		BetaStance:      o.state.BetaStats.Stance,
		BetaConviction:  o.state.BetaStats.Conviction,
		Winner:          o.state.Winner,
	})

	if o.metrics != nil {
		o.metrics.RoundsResolved.WithLabelValues(string(w)).Inc()
	}
}

func (o *Orchestrator) handleBroadcast(event string, payload []byte) {
	switch event {
	case replication.EventTick:
		o.handleTickBroadcast(payload)
	case replication.EventChat:
		o.handleChatBroadcast(payload)
	default:
		o.rejectBroadcast(event, "unknown_event")
	}
}

func (o *Orchestrator) handleTickBroadcast(payload []byte) {
	p, err := replication.ParseTick(payload)
	if err != nil {
		o.log.Warn().Err(err).Msg("tick broadcast rejected")
		o.rejectBroadcast(replication.EventTick, "malformed")
		return
	}
	// A broadcast from anyone but the currently elected leader is a deposed
	// leader still ticking; drop it. Before the first presence sync there is
	// no election to check against, so admit.
	if o.hasLeader && p.LeaderID != o.leaderID {
		o.rejectBroadcast(replication.EventTick, "stale_leader")
		return
	}
	if !o.guard.Admit(p.LeaderID, p.Seq) {
		o.rejectBroadcast(replication.EventTick, "stale_seq")
		return
	}

	p.Apply(&o.state, o.clock.Now())
	if o.metrics != nil {
		o.metrics.BroadcastsApplied.WithLabelValues(replication.EventTick).Inc()
	}
}

func (o *Orchestrator) handleChatBroadcast(payload []byte) {
	msg, err := replication.ParseChat(payload)
	if err != nil {
		o.log.Warn().Err(err).Msg("chat broadcast rejected")
		o.rejectBroadcast(replication.EventChat, "malformed")
		return
	}
	o.state.AppendChat(*msg)
	if o.metrics != nil {
		o.metrics.BroadcastsApplied.WithLabelValues(replication.EventChat).Inc()
		o.metrics.ChatMessages.Inc()
	}
}

// handleVote applies the local participant's vote. Voting is cooperative:
// out-of-window, duplicate, or invalid votes are dropped without an error
// surfacing to the caller. A follower records optimistically; the leader's
// next broadcast overwrites with the authoritative counts.
func (o *Orchestrator) handleVote(v game.Vote) {
	if !v.Valid() {
		o.rejectVote("invalid")
		return
	}
	if o.state.Phase != game.PhaseVoting {
		o.rejectVote("closed_window")
		return
	}
	window := o.clock.Now().Truncate(time.Minute)
	if o.votedWindow.Equal(window) {
		o.rejectVote("duplicate")
		return
	}

	o.votedWindow = window
	o.state.StatsFor(o.self.Team).Record(v)
	if o.metrics != nil {
		o.metrics.VotesAccepted.WithLabelValues(string(o.self.Team), string(v)).Inc()
	}
}

func (o *Orchestrator) handleChat(text string) {
	if text == "" {
		return
	}
	msg := game.NewChatMessage(o.self.Name, o.self.Team, text, o.clock.Now())
	data, err := json.Marshal(msg)
	if err != nil {
		o.log.Error().Err(err).Msg("marshal chat message")
		return
	}
	if err := o.tr.Publish(replication.EventChat, data); err != nil {
		o.log.Warn().Err(err).Msg("chat broadcast failed")
	} else if o.metrics != nil {
		o.metrics.BroadcastsSent.WithLabelValues(replication.EventChat).Inc()
	}

	// The transport does not echo our own broadcasts back.
	o.state.AppendChat(msg)
	if o.metrics != nil {
		o.metrics.ChatMessages.Inc()
	}
}

func (o *Orchestrator) status() Status {
	return Status{
		State:    o.state.Snapshot(),
		Self:     o.self,
		Members:  o.tracker.CurrentMembers(),
		LeaderID: o.leaderID,
		IsLeader: o.hasLeader && o.leaderID == o.self.ID,
	}
}

func (o *Orchestrator) countTick(role string) {
	if o.metrics != nil {
		o.metrics.TicksTotal.WithLabelValues(role).Inc()
	}
}

func (o *Orchestrator) setLeaderGauge(isLeader bool) {
	if o.metrics == nil {
		return
	}
	if isLeader {
		o.metrics.IsLeader.Set(1)
	} else {
		o.metrics.IsLeader.Set(0)
	}
}

func (o *Orchestrator) rejectBroadcast(event, reason string) {
	if o.metrics != nil {
		o.metrics.BroadcastsRejected.WithLabelValues(event, reason).Inc()
	}
}

func (o *Orchestrator) rejectVote(reason string) {
	if o.metrics != nil {
		o.metrics.VotesRejected.WithLabelValues(reason).Inc()
	}
}
