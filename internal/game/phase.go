package game

import "time"

// Phase window boundaries within the minute, in seconds.
const (
	votingEndSec = 30
	battleEndSec = 50
)

// ComputePhase derives the current phase and its end time purely from the
// wall clock. It is recomputed fresh every tick — never accumulated from a
// counter — so a node that missed ticks lands in the correct phase on its
// next observation with no catch-up replay.
func ComputePhase(now time.Time) (Phase, time.Time) {
	sec := now.Second()
	switch {
	case sec < votingEndSec:
		return PhaseVoting, now.Add(time.Duration(votingEndSec-sec) * time.Second)
	case sec < battleEndSec:
		return PhaseBattle, now.Add(time.Duration(battleEndSec-sec) * time.Second)
	default:
		return PhaseResult, now.Add(time.Duration(60-sec) * time.Second)
	}
}

// Phase transition edges. Side-effecting logic (finalize, resolve, reset)
// fires only when the tick's sampled second lands exactly on an edge; a tick
// gap that jumps over an edge skips that cycle's side effect, accepted at
// 1-second granularity.
func IsVotingCloseEdge(now time.Time) bool { return now.Second() == votingEndSec }
func IsBattleCloseEdge(now time.Time) bool { return now.Second() == battleEndSec }
func IsCycleResetEdge(now time.Time) bool  { return now.Second() == 0 }
