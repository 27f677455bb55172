// Package election derives exactly one leader from the shared presence set.
//
// The rule is deliberately message-free: every node sorts the same membership
// snapshot and picks the lexicographically smallest participant id, so all
// nodes observing the same snapshot agree without a voting round. Leadership
// can flap during churn and two nodes may transiently both believe they lead
// while a presence sync propagates; downstream replication absorbs that.
package election

import (
	"sort"
	"sync"

	"PriceArena/internal/game"
)

// Elect returns the leader id for a membership snapshot. The second return
// is false for an empty set — leadership is a defined absence, never a
// sentinel id.
func Elect(members []game.Participant) (string, bool) {
	if len(members) == 0 {
		return "", false
	}
	leader := members[0].ID
	for _, m := range members[1:] {
		if m.ID < leader {
			leader = m.ID
		}
	}
	return leader, true
}

// Tracker mirrors the transport's presence set. Each sync event carries the
// full current membership and wholesale-replaces the previous snapshot
// (last-snapshot-wins, no diffing). OnChange fires synchronously whenever
// the snapshot changes so election is recomputed immediately.
type Tracker struct {
	mu       sync.RWMutex
	members  map[string]game.Participant
	onChange func([]game.Participant)
}

func NewTracker(onChange func([]game.Participant)) *Tracker {
	return &Tracker{
		members:  make(map[string]game.Participant),
		onChange: onChange,
	}
}

// ApplySync replaces the membership with a fresh full snapshot.
func (t *Tracker) ApplySync(snapshot []game.Participant) {
	t.mu.Lock()
	next := make(map[string]game.Participant, len(snapshot))
	for _, p := range snapshot {
		next[p.ID] = p
	}
	changed := !sameMembers(t.members, next)
	t.members = next
	t.mu.Unlock()

	if changed && t.onChange != nil {
		t.onChange(t.CurrentMembers())
	}
}

// CurrentMembers returns the mirrored set, sorted by id for determinism.
func (t *Tracker) CurrentMembers() []game.Participant {
	t.mu.RLock()
	out := make([]game.Participant, 0, len(t.members))
	for _, p := range t.members {
		out = append(out, p)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sameMembers(a, b map[string]game.Participant) bool {
	if len(a) != len(b) {
		return false
	}
	for id, p := range a {
		q, ok := b[id]
		if !ok || p != q {
			return false
		}
	}
	return true
}
