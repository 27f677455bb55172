// Package commentary produces the arena's flavor text. It is cosmetic only:
// a pure selection over fixed phrase pools, replicated verbatim from the
// leader so every node shows the same line.
package commentary

import (
	"fmt"
	"math/rand"

	"PriceArena/internal/game"
)

// BattlePhase positions a line within the cycle.
type BattlePhase string

const (
	PhaseStart    BattlePhase = "START"
	PhaseProgress BattlePhase = "PROGRESS"
	PhaseResolved BattlePhase = "RESOLVED"
)

// Context carries everything line selection may key on.
type Context struct {
	Phase           BattlePhase
	PriceDelta      float64 // percent move since the window locked
	AlphaStance     game.Stance
	AlphaConviction int
	BetaStance      game.Stance
	BetaConviction  int
	Winner          *game.Winner
}

// Fixed lines used outside the battle flow.
const (
	ResetLine       = "Next cycle initialized. Commander link stable."
	NoCommanderLine = "No commander on the grid. Awaiting presence uplink."
)

var startPhrases = []string{
	"Neural link established. Sector conflict initiated.",
	"Squad markers locked. Tactical grid online.",
	"Liquidity grab protocol active. Stand by for impact.",
	"Executing directional scan. Vector shift imminent.",
	"Signal noise filtering. High-octane pressure detected.",
}

var bullishWins = []string{
	"Upper sector secured. Market pressure yielded to the Bulls.",
	"Signal verified. Alpha-cycle momentum successfully captured.",
	"Resistance bypassed. Bullish conviction overrode the grid.",
	"Liquidity secured. Uplink confirms a clean upward break.",
	"Vector shift complete. The sector has gone green.",
}

var bearishWins = []string{
	"Lower sector locked. Bearish pressure collapsed the grid.",
	"Short-side breach confirmed. Market gravity taking hold.",
	"Downward trajectory locked. Tactical advantage: Bears.",
	"Liquidity drained. The sector has surrendered to the void.",
	"Sector red-line reached. Bearish dominance verified.",
}

var stalematePhrases = []string{
	"Conflict unresolved. High-frequency noise preventing lock.",
	"Grid collision detected. Resulting in a neural stalemate.",
	"Tactical parity achieved. No clear directional winner.",
	"Signal interference too high. Sector remains neutral.",
}

// PickLine selects a line for the given context.
func PickLine(ctx Context) string {
	return pickLine(ctx, func(n int) int { return rand.Intn(n) })
}

// pickLine takes the index chooser as a parameter so tests can pin it.
func pickLine(ctx Context, intn func(int) int) string {
	pick := func(pool []string) string { return pool[intn(len(pool))] }

	switch ctx.Phase {
	case PhaseStart:
		return pick(startPhrases)
	case PhaseResolved:
		if ctx.Winner == nil || *ctx.Winner == game.WinnerDraw {
			return pick(stalematePhrases)
		}
		if ctx.PriceDelta > 0 {
			return pick(bullishWins)
		}
		return pick(bearishWins)
	default:
		return fmt.Sprintf("Vector Delta: %.4f%%. Monitoring sector pressure...", ctx.PriceDelta)
	}
}
