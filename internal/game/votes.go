package game

import "math"

// TeamStats accumulates a team's votes during the VOTING window and carries
// the locked stance/conviction through BATTLE and RESULT.
//
// The aggregator is a pure counter with no per-voter identity: single-vote
// enforcement belongs to the caller. A duplicate vote that slips past the
// caller's guard double-counts, indistinguishable from a second participant.
type TeamStats struct {
	VotesUp    uint   `json:"votesUp"`
	VotesDown  uint   `json:"votesDown"`
	TotalVotes uint   `json:"totalVotes"`
	Stance     Stance `json:"stance"`
	Conviction int    `json:"conviction"`
}

// NewTeamStats returns the zeroed stats a window opens with.
func NewTeamStats() TeamStats {
	return TeamStats{Stance: StanceUndecided}
}

// Record counts one vote. TotalVotes == VotesUp + VotesDown always.
func (s *TeamStats) Record(v Vote) {
	switch v {
	case VoteUp:
		s.VotesUp++
	case VoteDown:
		s.VotesDown++
	default:
		return
	}
	s.TotalVotes++
}

// Finalize collapses the counts into stance + conviction at the
// VOTING→BATTLE edge. With no votes the split is treated as 50/50, which
// favors BULL. Conviction is always the winning side's percentage, so it
// sits in [50,100] whenever votes exist.
func (s *TeamStats) Finalize() {
	upPct := 50.0
	if s.TotalVotes > 0 {
		upPct = float64(s.VotesUp) / float64(s.TotalVotes) * 100
	}
	if upPct >= 50 {
		s.Stance = StanceBull
		s.Conviction = int(math.Round(upPct))
	} else {
		s.Stance = StanceBear
		s.Conviction = int(math.Round(100 - upPct))
	}
}
