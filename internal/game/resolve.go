package game

// Resolve compares the realized price movement against each team's locked
// stance at the BATTLE→RESULT edge.
//
// Decision table:
//   - one team right  → that team wins
//   - both right      → higher conviction wins, tie favors ALPHA
//   - both wrong      → LOWER conviction wins, tie favors BETA
//
// The both-wrong rule rewards the less-confident loser. The asymmetry with
// the both-right tie-break is part of the game rules, not an accident.
func Resolve(startPrice, currentPrice float64, alpha, beta TeamStats) Winner {
	up := currentPrice > startPrice
	alphaRight := (alpha.Stance == StanceBull && up) || (alpha.Stance == StanceBear && !up)
	betaRight := (beta.Stance == StanceBull && up) || (beta.Stance == StanceBear && !up)

	switch {
	case alphaRight && !betaRight:
		return WinnerAlpha
	case betaRight && !alphaRight:
		return WinnerBeta
	case alphaRight && betaRight:
		if alpha.Conviction >= beta.Conviction {
			return WinnerAlpha
		}
		return WinnerBeta
	default:
		if alpha.Conviction < beta.Conviction {
			return WinnerAlpha
		}
		return WinnerBeta
	}
}
