// Package agent implements the two adversarial decision units of the game:
// the retail targeter, which picks strikes to attack, and the monkey
// defender, which predicts which strikes to protect. Both share a weighted
// scoring kernel: derive psychological signals from the game state and their
// own rolling history, fetch profile-adjusted factor weights, score every
// strike in the universe as a weighted sum of normalized factors, apply
// profile-conditioned boosts, and pick by maximum score with a deterministic
// tie-break (the lowest strike wins).
//
// Neither unit ever fails: a missing profile falls back to fixed default
// weights, and an empty strike universe yields a zero-value selection with
// confidence 0.5.
package agent

import "math"

// historyLimit bounds every rolling history (targets, defenses, outcomes).
const historyLimit = 10

// recentWindow is how many trailing outcomes feed the success/loss rates.
const recentWindow = 5

// Prediction is one entry of the monkey's ranked defense set.
type Prediction struct {
	Strike      int
	Probability float64
}

// distanceScore maps distance-to-spot into (0,1], closer is higher.
func distanceScore(strike int, spot float64) float64 {
	return 1.0 / (1 + math.Abs(float64(strike)-spot)/5)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// rate returns the share of true values among the last recentWindow entries.
func rate(history []bool) float64 {
	if len(history) == 0 {
		return 0
	}
	window := history
	if len(window) > recentWindow {
		window = window[len(window)-recentWindow:]
	}
	count := 0
	for _, v := range window {
		if v {
			count++
		}
	}
	return float64(count) / float64(len(window))
}

func pushInt(history []int, v int) []int {
	history = append(history, v)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	return history
}

func pushBool(history []bool, v bool) []bool {
	history = append(history, v)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	return history
}

// containsRecent reports whether v is among the last n entries of history.
func containsRecent(history []int, v, n int) bool {
	start := len(history) - n
	if start < 0 {
		start = 0
	}
	for _, h := range history[start:] {
		if h == v {
			return true
		}
	}
	return false
}

// argmaxStrike returns the strike with the highest score. strikes must be
// sorted ascending; ties resolve to the first (lowest) strike, which keeps
// selection deterministic for a fixed score map.
func argmaxStrike(strikes []int, scores map[int]float64) int {
	best := strikes[0]
	bestScore := scores[best]
	for _, s := range strikes[1:] {
		if scores[s] > bestScore {
			best = s
			bestScore = scores[s]
		}
	}
	return best
}
