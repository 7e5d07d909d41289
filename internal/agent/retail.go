package agent

import (
	"math/rand"

	"github.com/rewired-gh/monkeyball/internal/memory"
	"github.com/rewired-gh/monkeyball/internal/models"
	"github.com/rewired-gh/monkeyball/internal/profile"
)

// Default factor weights when no retail profile is active.
var defaultRetailWeights = map[string]float64{
	"spot_distance":   0.3,
	"success_history": 0.2,
	"mm_defense":      0.3,
	"crowd_following": 0.2,
}

// Retail picks strikes to attack. It scores each strike by proximity to
// spot, its own recent targeting history, how much juice the market maker
// already collected there (defended strikes score lower), and crowd size.
type Retail struct {
	profiles profile.Provider
	mem      *memory.Store
	rng      *rand.Rand

	lastTarget    int
	targetHistory []int
	recentHits    []bool
	crowdSize     map[int]int
}

// NewRetail creates the retail decision unit. rng drives the FOMO roll and
// the empty-score fallback; inject a seeded source for reproducible runs.
func NewRetail(profiles profile.Provider, mem *memory.Store, rng *rand.Rand) *Retail {
	return &Retail{
		profiles:  profiles,
		mem:       mem,
		rng:       rng,
		crowdSize: make(map[int]int),
	}
}

// Memory exposes the unit's episodic store for outcome recording and display.
func (r *Retail) Memory() *memory.Store { return r.mem }

// signals derives the retail psychological metrics for this tick: recent
// success rate from the rolling hit history, and per-strike crowd estimates
// from accumulated hits and juice.
func (r *Retail) signals(state models.GameState) models.Signals {
	maxCrowd := 0
	for _, strike := range state.Strikes {
		crowd := int((float64(state.TreeHits[strike]) + state.RetailJuice[strike]*10) / 2)
		r.crowdSize[strike] = crowd
		if crowd > maxCrowd {
			maxCrowd = crowd
		}
	}
	return models.Signals{
		RecentSuccessRate: rate(r.recentHits),
		CrowdSize:         maxCrowd,
	}
}

// SelectTarget picks a strike to attack and reports a confidence in [0,1].
// state.Strikes must be sorted ascending. An empty universe returns (0, 0.5).
func (r *Retail) SelectTarget(state models.GameState) (int, float64) {
	if len(state.Strikes) == 0 {
		return 0, 0.5
	}

	sig := r.signals(state)
	weights := r.profiles.WeightsFor(models.RoleRetail, sig)
	if weights == nil {
		weights = defaultRetailWeights
	}

	scores := make(map[int]float64, len(state.Strikes))
	for _, strike := range state.Strikes {
		score := distanceScore(strike, state.SpotPrice) * weights["spot_distance"]

		if containsRecent(r.targetHistory, strike, recentWindow) {
			score += weights["success_history"]
		}

		// Strikes the market maker already milks are better defended.
		score += clamp01(1-state.MMJuice[strike]) * weights["mm_defense"]

		crowd := clamp01(float64(r.crowdSize[strike]) / 5)
		score += crowd * weights["crowd_following"]

		scores[strike] = score
	}

	// FOMO: with probability equal to the profile's threshold, chase the
	// most crowded strike regardless of its composite score.
	if p := r.profiles.Active(models.RoleRetail); p != nil {
		if r.rng.Float64() < p.Trait("fomo_threshold") {
			scores[argmaxInt(state.Strikes, r.crowdSize)] *= 1.5
		}
	}

	target := argmaxStrike(state.Strikes, scores)
	confidence := scores[target]
	if confidence > 1 {
		confidence = 1
	}
	if confidence <= 0 {
		// Nothing scored; pick uniformly rather than defaulting to the
		// lowest strike every time.
		target = state.Strikes[r.rng.Intn(len(state.Strikes))]
		confidence = 0.5
	}

	r.lastTarget = target
	r.targetHistory = pushInt(r.targetHistory, target)
	return target, confidence
}

// RecordHit appends the outcome of the last attempt to the rolling history.
func (r *Retail) RecordHit(hit bool) {
	r.recentHits = pushBool(r.recentHits, hit)
}

// RecentSuccess reports whether the most recent attempt hit.
func (r *Retail) RecentSuccess() bool {
	return len(r.recentHits) > 0 && r.recentHits[len(r.recentHits)-1]
}

// argmaxInt returns the strike with the largest value in m, lowest strike on
// ties. strikes must be sorted ascending and non-empty.
func argmaxInt(strikes []int, m map[int]int) int {
	best := strikes[0]
	for _, s := range strikes[1:] {
		if m[s] > m[best] {
			best = s
		}
	}
	return best
}
