// Package replication defines the wire contract between the leader's tick
// pipeline and every follower. Payloads cross an untrusted-in-shape boundary
// (best-effort broadcast), so each one is parsed into an explicit schema and
// validated wholesale at the receive edge: a payload either applies in full
// or is rejected with prior state retained.
package replication

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"PriceArena/internal/game"
)

// EventTick and EventChat name the broadcast events on the shared channel.
const (
	EventTick = "game_tick"
	EventChat = "chat_msg"
)

// TickPayload is the authoritative state the leader publishes once per tick.
// Price history and chat are deliberately absent — followers derive both
// locally. Seq and LeaderID let followers discard stale broadcasts from a
// since-deposed leader.
type TickPayload struct {
	Seq          int64            `json:"seq"`
	LeaderID     string           `json:"leader_id"`
	CurrentPrice float64          `json:"currentPrice"`
	PriceSource  game.PriceSource `json:"priceSource"`
	Phase        game.Phase       `json:"phase"`
	PhaseEndTime int64            `json:"phaseEndTime"` // unix milliseconds
	StartPrice   float64          `json:"startPrice"`
	AlphaStats   game.TeamStats   `json:"alphaStats"`
	BetaStats    game.TeamStats   `json:"betaStats"`
	Winner       *game.Winner     `json:"winner"`
	Commentary   string           `json:"commentary"`
}

// BuildTick packages the leader's authoritative state for broadcast.
func BuildTick(state *game.GameState, leaderID string, seq int64) TickPayload {
	p := TickPayload{
		Seq:          seq,
		LeaderID:     leaderID,
		CurrentPrice: state.CurrentPrice,
		PriceSource:  state.PriceSource,
		Phase:        state.Phase,
		PhaseEndTime: state.PhaseEndTime.UnixMilli(),
		StartPrice:   state.StartPrice,
		AlphaStats:   state.AlphaStats,
		BetaStats:    state.BetaStats,
		Commentary:   state.Commentary,
	}
	if state.Winner != nil {
		w := *state.Winner
		p.Winner = &w
	}
	return p
}

// ParseTick decodes and validates a received tick payload. Any field-level
// mismatch rejects the whole payload.
func ParseTick(data []byte) (*TickPayload, error) {
	var p TickPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode tick payload: %w", err)
	}
	if p.LeaderID == "" {
		return nil, fmt.Errorf("tick payload missing leader_id")
	}
	if p.Seq < 0 {
		return nil, fmt.Errorf("tick payload negative seq %d", p.Seq)
	}
	if !p.Phase.Valid() {
		return nil, fmt.Errorf("tick payload invalid phase %q", p.Phase)
	}
	if !p.PriceSource.Valid() {
		return nil, fmt.Errorf("tick payload invalid price source %q", p.PriceSource)
	}
	if err := validPrice("currentPrice", p.CurrentPrice); err != nil {
		return nil, err
	}
	if err := validPrice("startPrice", p.StartPrice); err != nil {
		return nil, err
	}
	if err := validStats("alphaStats", p.AlphaStats); err != nil {
		return nil, err
	}
	if err := validStats("betaStats", p.BetaStats); err != nil {
		return nil, err
	}
	if p.Winner != nil && !p.Winner.Valid() {
		return nil, fmt.Errorf("tick payload invalid winner %q", *p.Winner)
	}
	if p.Winner != nil && p.Phase != game.PhaseResult {
		return nil, fmt.Errorf("tick payload carries winner outside RESULT phase")
	}
	return &p, nil
}

// Apply merges the payload into local state wholesale (last-writer-wins over
// the replicated field set) and appends the received price to the local
// history stamped with the local receipt time. Receipt timestamps therefore
// drift slightly node-to-node; accepted as cosmetic.
func (p *TickPayload) Apply(state *game.GameState, receivedAt time.Time) {
	state.CurrentPrice = p.CurrentPrice
	state.PriceSource = p.PriceSource
	state.Phase = p.Phase
	state.PhaseEndTime = time.UnixMilli(p.PhaseEndTime)
	state.StartPrice = p.StartPrice
	state.AlphaStats = p.AlphaStats
	state.BetaStats = p.BetaStats
	state.Commentary = p.Commentary
	if p.Winner != nil {
		w := *p.Winner
		state.Winner = &w
	} else {
		state.Winner = nil
	}
	state.AppendPrice(game.PricePoint{Timestamp: receivedAt, Price: p.CurrentPrice})
}

// ParseChat decodes and validates a received chat broadcast.
func ParseChat(data []byte) (*game.ChatMessage, error) {
	var m game.ChatMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode chat payload: %w", err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("chat payload missing id")
	}
	if m.Sender == "" {
		return nil, fmt.Errorf("chat payload missing sender")
	}
	if !m.Team.Valid() {
		return nil, fmt.Errorf("chat payload invalid team %q", m.Team)
	}
	if m.Text == "" {
		return nil, fmt.Errorf("chat payload empty text")
	}
	return &m, nil
}

func validPrice(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("tick payload invalid %s %v", field, v)
	}
	return nil
}

func validStats(field string, s game.TeamStats) error {
	if s.TotalVotes != s.VotesUp+s.VotesDown {
		return fmt.Errorf("%s vote counts inconsistent: %d+%d != %d", field, s.VotesUp, s.VotesDown, s.TotalVotes)
	}
	if !s.Stance.Valid() {
		return fmt.Errorf("%s invalid stance %q", field, s.Stance)
	}
	if s.Conviction < 0 || s.Conviction > 100 {
		return fmt.Errorf("%s conviction %d outside [0,100]", field, s.Conviction)
	}
	return nil
}
