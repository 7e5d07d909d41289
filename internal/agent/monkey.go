package agent

import (
	"math/rand"
	"sort"

	"github.com/rewired-gh/monkeyball/internal/memory"
	"github.com/rewired-gh/monkeyball/internal/models"
	"github.com/rewired-gh/monkeyball/internal/profile"
)

// Default factor weights when no monkey profile is active.
var defaultMonkeyWeights = map[string]float64{
	"spot_distance":     0.3,
	"hit_history":       0.2,
	"juice_collection":  0.3,
	"retail_clustering": 0.2,
}

// defenseSetSize is how many strikes the monkey commits to defending.
const defenseSetSize = 3

// Monkey predicts which strikes retail will attack so the engine can
// suppress hit probability there. It scores strikes by proximity to spot,
// accumulated hits, collected retail juice, and a clustering metric blending
// hit and juice concentration.
type Monkey struct {
	profiles profile.Provider
	mem      *memory.Store
	rng      *rand.Rand

	lastDefense    int
	defenseHistory []int
	recentLosses   []bool // true = failed defense
	clusters       map[int]float64
}

// NewMonkey creates the monkey decision unit.
func NewMonkey(profiles profile.Provider, mem *memory.Store, rng *rand.Rand) *Monkey {
	return &Monkey{
		profiles: profiles,
		mem:      mem,
		rng:      rng,
		clusters: make(map[int]float64),
	}
}

// Memory exposes the unit's episodic store for outcome recording and display.
func (m *Monkey) Memory() *memory.Store { return m.mem }

// signals derives the monkey psychological metrics: recent loss rate and
// per-strike retail clustering, a normalized blend of hit share and juice
// share floored at 0.01 so every strike stays in play.
func (m *Monkey) signals(state models.GameState) models.Signals {
	totalHits := 0
	totalJuice := 0.0
	for _, strike := range state.Strikes {
		totalHits += state.TreeHits[strike]
		totalJuice += state.RetailJuice[strike]
	}

	maxCluster := 0.0
	for _, strike := range state.Strikes {
		cluster := 0.01
		if totalHits > 0 || totalJuice > 0 {
			hitsRatio := float64(state.TreeHits[strike]) / float64(totalHits+1)
			juiceRatio := state.RetailJuice[strike] / (totalJuice + 1)
			blended := (hitsRatio + juiceRatio) / 2
			if blended > cluster {
				cluster = blended
			}
		}
		m.clusters[strike] = cluster
		if cluster > maxCluster {
			maxCluster = cluster
		}
	}

	return models.Signals{
		RecentLossRate:   rate(m.recentLosses),
		RetailClustering: maxCluster,
	}
}

// PredictTargets returns the top strikes the monkey expects to be attacked,
// as a probability distribution over defenseSetSize strikes (scores
// normalized to sum to 1). When every score is zero it falls back to the
// strikes nearest spot with equal weight. state.Strikes must be sorted
// ascending; an empty universe returns nil.
func (m *Monkey) PredictTargets(state models.GameState) []Prediction {
	if len(state.Strikes) == 0 {
		return nil
	}

	sig := m.signals(state)
	weights := m.profiles.WeightsFor(models.RoleMonkey, sig)
	if weights == nil {
		weights = defaultMonkeyWeights
	}

	scores := make(map[int]float64, len(state.Strikes))
	for _, strike := range state.Strikes {
		score := distanceScore(strike, state.SpotPrice) * weights["spot_distance"]
		score += clamp01(float64(state.TreeHits[strike])/10) * weights["hit_history"]
		score += clamp01(state.RetailJuice[strike]) * weights["juice_collection"]
		score += m.clusters[strike] * weights["retail_clustering"]
		scores[strike] = score
	}

	if p := m.profiles.Active(models.RoleMonkey); p != nil {
		// Under sustained losses, double down on recently defended strikes.
		if sig.RecentLossRate > p.Trait("risk_aversion") {
			for _, strike := range state.Strikes {
				if containsRecent(m.defenseHistory, strike, defenseSetSize) {
					scores[strike] *= 1.2
				}
			}
		}
		// Reflexivity: retail chases its own crowd, so defend the cluster peak.
		if p.TraitBool("reflexivity_awareness") {
			scores[argmaxFloat(state.Strikes, m.clusters)] *= 1.3
		}
	}

	// Rank by score descending; equal scores resolve to the lower strike so
	// the ordering is reproducible.
	ranked := make([]int, len(state.Strikes))
	copy(ranked, state.Strikes)
	sort.SliceStable(ranked, func(i, j int) bool {
		if scores[ranked[i]] != scores[ranked[j]] {
			return scores[ranked[i]] > scores[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > defenseSetSize {
		ranked = ranked[:defenseSetSize]
	}

	total := 0.0
	for _, strike := range ranked {
		total += scores[strike]
	}

	var predictions []Prediction
	if total > 0 {
		for _, strike := range ranked {
			predictions = append(predictions, Prediction{Strike: strike, Probability: scores[strike] / total})
		}
	} else {
		predictions = m.nearestSpotFallback(state)
	}

	m.lastDefense = predictions[0].Strike
	m.defenseHistory = pushInt(m.defenseHistory, m.lastDefense)
	return predictions
}

// nearestSpotFallback defends the strikes closest to spot with equal weight.
func (m *Monkey) nearestSpotFallback(state models.GameState) []Prediction {
	nearby := make([]int, len(state.Strikes))
	copy(nearby, state.Strikes)
	sort.SliceStable(nearby, func(i, j int) bool {
		di := distAbs(nearby[i], state.SpotPrice)
		dj := distAbs(nearby[j], state.SpotPrice)
		if di != dj {
			return di < dj
		}
		return nearby[i] < nearby[j]
	})
	if len(nearby) > defenseSetSize {
		nearby = nearby[:defenseSetSize]
	}

	predictions := make([]Prediction, 0, len(nearby))
	for _, strike := range nearby {
		predictions = append(predictions, Prediction{Strike: strike, Probability: 1.0 / float64(defenseSetSize)})
	}
	return predictions
}

// RecordDefense appends the outcome of a defense attempt; success means the
// coconut was repelled.
func (m *Monkey) RecordDefense(success bool) {
	m.recentLosses = pushBool(m.recentLosses, !success)
}

func argmaxFloat(strikes []int, m map[int]float64) int {
	best := strikes[0]
	for _, s := range strikes[1:] {
		if m[s] > m[best] {
			best = s
		}
	}
	return best
}

func distAbs(strike int, spot float64) float64 {
	d := float64(strike) - spot
	if d < 0 {
		return -d
	}
	return d
}
