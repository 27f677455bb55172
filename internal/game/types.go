package game

import (
	"time"

	"github.com/google/uuid"
)

// Team is one of the two fixed squads every participant belongs to.
type Team string

const (
	TeamAlpha Team = "ALPHA"
	TeamBeta  Team = "BETA"
)

func (t Team) Valid() bool {
	return t == TeamAlpha || t == TeamBeta
}

// Stance is a team's locked directional bet, fixed at the VOTING→BATTLE edge.
type Stance string

const (
	StanceBull      Stance = "BULL"
	StanceBear      Stance = "BEAR"
	StanceUndecided Stance = "UNDECIDED"
)

func (s Stance) Valid() bool {
	return s == StanceBull || s == StanceBear || s == StanceUndecided
}

// Vote is a participant's ephemeral per-window choice.
type Vote string

const (
	VoteUp   Vote = "UP"
	VoteDown Vote = "DOWN"
)

func (v Vote) Valid() bool {
	return v == VoteUp || v == VoteDown
}

// Phase partitions the 60-second cycle.
type Phase string

const (
	PhaseVoting Phase = "VOTING"
	PhaseBattle Phase = "BATTLE"
	PhaseResult Phase = "RESULT"
)

func (p Phase) Valid() bool {
	return p == PhaseVoting || p == PhaseBattle || p == PhaseResult
}

// PriceSource records whether the current price came from the live feed
// or the degraded random-walk fallback.
type PriceSource string

const (
	SourceLive      PriceSource = "LIVE"
	SourceSimulated PriceSource = "SIMULATED"
)

func (ps PriceSource) Valid() bool {
	return ps == SourceLive || ps == SourceSimulated
}

// Winner is the round outcome. Draw exists in the wire schema for older
// payload consumers; the resolver never produces it.
type Winner string

const (
	WinnerAlpha Winner = "ALPHA"
	WinnerBeta  Winner = "BETA"
	WinnerDraw  Winner = "DRAW"
)

func (w Winner) Valid() bool {
	return w == WinnerAlpha || w == WinnerBeta || w == WinnerDraw
}

// Participant is a member of the presence set. The presence subsystem is
// authoritative; everything here just mirrors it.
type Participant struct {
	ID   string `json:"user_id"`
	Name string `json:"name"`
	Team Team   `json:"team"`
}

// PricePoint is one sample in the bounded price history window.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// ChatMessage is a team-tagged chat line delivered to every node.
type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Team      Team      `json:"team"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChatMessage stamps a fresh message from a participant.
func NewChatMessage(sender string, team Team, text string, at time.Time) ChatMessage {
	return ChatMessage{
		ID:        uuid.New().String(),
		Sender:    sender,
		Team:      team,
		Text:      text,
		Timestamp: at,
	}
}
