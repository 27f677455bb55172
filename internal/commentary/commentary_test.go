package commentary

import (
	"strings"
	"testing"

	"PriceArena/internal/game"
)

func first(n int) int { return 0 }

func TestPickLine_StartPool(t *testing.T) {
	got := pickLine(Context{Phase: PhaseStart}, first)
	if got != startPhrases[0] {
		t.Errorf("got %q, want first start phrase", got)
	}
}

func TestPickLine_ResolvedUpDrawsBullish(t *testing.T) {
	w := game.WinnerAlpha
	got := pickLine(Context{Phase: PhaseResolved, PriceDelta: 0.42, Winner: &w}, first)
	if got != bullishWins[0] {
		t.Errorf("positive delta should draw bullish pool, got %q", got)
	}
}

func TestPickLine_ResolvedDownDrawsBearish(t *testing.T) {
	w := game.WinnerBeta
	got := pickLine(Context{Phase: PhaseResolved, PriceDelta: -1.1, Winner: &w}, first)
	if got != bearishWins[0] {
		t.Errorf("negative delta should draw bearish pool, got %q", got)
	}
}

func TestPickLine_NoWinnerIsStalemate(t *testing.T) {
	got := pickLine(Context{Phase: PhaseResolved, PriceDelta: 0.9}, first)
	if got != stalematePhrases[0] {
		t.Errorf("missing winner should draw stalemate pool, got %q", got)
	}
}

func TestPickLine_ProgressFormatsDelta(t *testing.T) {
	got := pickLine(Context{Phase: PhaseProgress, PriceDelta: 0.1234}, first)
	if !strings.Contains(got, "0.1234%") {
		t.Errorf("progress line should embed the delta, got %q", got)
	}
}

func TestPickLine_NeverPanicsAcrossChoices(t *testing.T) {
	w := game.WinnerAlpha
	contexts := []Context{
		{Phase: PhaseStart},
		{Phase: PhaseProgress, PriceDelta: -3},
		{Phase: PhaseResolved, PriceDelta: 2, Winner: &w},
		{Phase: PhaseResolved, PriceDelta: -2, Winner: &w},
		{Phase: PhaseResolved},
	}
	for _, ctx := range contexts {
		for i := 0; i < 8; i++ {
			if line := PickLine(ctx); line == "" {
				t.Fatalf("empty line for %+v", ctx)
			}
		}
	}
}
