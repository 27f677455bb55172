package game

import "time"

const (
	// PriceHistoryLimit bounds the sliding price window (one minute at 1s ticks).
	PriceHistoryLimit = 60

	// ChatLimit bounds the chat window.
	ChatLimit = 30

	// FallbackPrice seeds the simulated feed before any live sample exists.
	FallbackPrice = 96000.0
)

// GameState is the single authoritative aggregate for a session. The elected
// leader owns writes; followers hold a replica reconciled by Merge. Access is
// serialized by the orchestrator loop — GameState itself is not safe for
// concurrent mutation.
type GameState struct {
	Phase        Phase       `json:"phase"`
	PhaseEndTime time.Time   `json:"phaseEndTime"`
	StartPrice   float64     `json:"startPrice"`
	CurrentPrice float64     `json:"currentPrice"`
	PriceSource  PriceSource `json:"priceSource"`
	AlphaStats   TeamStats   `json:"alphaStats"`
	BetaStats    TeamStats   `json:"betaStats"`
	Winner       *Winner     `json:"winner"`
	Commentary   string      `json:"commentary"`

	// Derived locally on every node, never replicated.
	PriceHistory []PricePoint  `json:"priceHistory"`
	Chat         []ChatMessage `json:"chat"`
}

// NewGameState returns the pre-connection state a node starts from.
func NewGameState() GameState {
	return GameState{
		Phase:       PhaseVoting,
		PriceSource: SourceSimulated,
		AlphaStats:  NewTeamStats(),
		BetaStats:   NewTeamStats(),
		Commentary:  "Connecting to global command core...",
	}
}

// StatsFor selects the mutable stats block for a team.
func (g *GameState) StatsFor(team Team) *TeamStats {
	if team == TeamAlpha {
		return &g.AlphaStats
	}
	return &g.BetaStats
}

// AppendPrice pushes a sample into the bounded history, evicting the oldest.
func (g *GameState) AppendPrice(p PricePoint) {
	g.PriceHistory = appendBounded(g.PriceHistory, p, PriceHistoryLimit)
}

// AppendChat pushes a message into the bounded chat window.
func (g *GameState) AppendChat(m ChatMessage) {
	g.Chat = appendBounded(g.Chat, m, ChatLimit)
}

// ResetRound clears the per-cycle fields at the RESULT→VOTING boundary.
// Price fields and the local windows carry across cycles.
func (g *GameState) ResetRound() {
	g.AlphaStats = NewTeamStats()
	g.BetaStats = NewTeamStats()
	g.Winner = nil
}

// Snapshot returns a deep copy safe to hand outside the owner loop.
func (g *GameState) Snapshot() GameState {
	cp := *g
	cp.PriceHistory = append([]PricePoint(nil), g.PriceHistory...)
	cp.Chat = append([]ChatMessage(nil), g.Chat...)
	if g.Winner != nil {
		w := *g.Winner
		cp.Winner = &w
	}
	return cp
}

func appendBounded[T any](window []T, item T, limit int) []T {
	window = append(window, item)
	if len(window) > limit {
		window = window[len(window)-limit:]
	}
	return window
}
