package replication

// TickGuard tracks the (leader, seq) watermark of applied broadcasts so a
// delayed payload from a deposed leader, or a duplicate delivery, is dropped
// instead of rewinding follower state. Gaps are tolerated — a follower that
// missed ticks self-corrects on the next one.
//
// Not thread-safe; owned by the orchestrator loop.
type TickGuard struct {
	leaderID string
	lastSeq  int64
	primed   bool
}

func NewTickGuard() *TickGuard {
	return &TickGuard{}
}

// Admit reports whether a payload from leaderID with seq should be applied,
// and advances the watermark when it should. A new leader id resets the
// watermark: reigns have independent sequence spaces.
func (g *TickGuard) Admit(leaderID string, seq int64) bool {
	if !g.primed || leaderID != g.leaderID {
		g.leaderID = leaderID
		g.lastSeq = seq
		g.primed = true
		return true
	}
	if seq <= g.lastSeq {
		return false
	}
	g.lastSeq = seq
	return true
}

// Reset clears the watermark, used when the local node takes over as leader
// so its own later demotion starts fresh.
func (g *TickGuard) Reset() {
	g.leaderID = ""
	g.lastSeq = 0
	g.primed = false
}
