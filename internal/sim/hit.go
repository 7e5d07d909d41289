// Package sim implements the coconut simulation core: the hit-probability
// model, the coconut flight state machine, and the engine that orchestrates
// launches, resolution, and aggregate statistics over an episode.
//
// The hit/miss outcome and juice split are decided at launch time, so agent
// learning sees the true outcome immediately; the multi-tick flight is a
// timing animation layered on a fixed outcome. All randomness flows through
// an injected *rand.Rand, making full episodes reproducible under a fixed
// seed.
package sim

import (
	"math"

	"github.com/rewired-gh/monkeyball/internal/models"
)

// Juice split on a hit. The market maker drinks first.
const (
	MMJuiceShare     = 0.7
	RetailJuiceShare = 1 - MMJuiceShare
)

// HitParams are the inputs of the hit-probability model for one launch.
type HitParams struct {
	Spot       float64
	Strike     int
	ImpliedVol float64          // percentage points, e.g. 13.7
	Gamma      float64          // normalized gamma at the strike, in [0,1]
	Equipment  models.Equipment // stats of the launching slingshot
	Defended   bool             // strike is in the monkey's defense set
}

// HitProbability maps launch conditions to a hit probability in [0,1].
//
// The base chance decays with distance from spot and is halved when the
// monkey defends the strike. Implied vol and gamma exposure act as
// multiplicative penalties, short-dated equipment gets a decay boost
// (floored at 0.1 to cap it), accuracy and power add small bonuses, and the
// option type is 1.1x effective on its favorable side of spot (calls below
// spot, puts above), 0.9x otherwise. Out-of-range results are clamped, never
// surfaced as errors.
func HitProbability(p HitParams) float64 {
	base := 1.0 / (1 + math.Abs(p.Spot-float64(p.Strike)))
	if p.Defended {
		base *= 0.5
	}

	windPenalty := p.ImpliedVol / 100
	gammaPenalty := p.Gamma / 10
	decayPenalty := math.Max(0.1, float64(p.Equipment.DTE)/30)
	accuracyBonus := p.Equipment.Accuracy * 0.2
	powerFactor := p.Equipment.Power * 0.1

	optionMod := 0.9
	if (p.Equipment.OptionType == models.OptionCall && p.Spot > float64(p.Strike)) ||
		(p.Equipment.OptionType == models.OptionPut && p.Spot < float64(p.Strike)) {
		optionMod = 1.1
	}

	prob := base *
		(1 - windPenalty) *
		(1 - gammaPenalty) *
		(1 / decayPenalty) *
		(1 + accuracyBonus) *
		(1 + powerFactor) *
		optionMod

	if prob < 0 {
		return 0
	}
	if prob > 1 {
		return 1
	}
	return prob
}

// Outcome is the resolved result of one launch, fixed before the coconut
// starts flying.
type Outcome struct {
	Strike         int
	Hit            bool
	RetailJuice    float64
	MMJuice        float64
	Probability    float64
	Defended       bool
	DefenseSuccess bool
}
