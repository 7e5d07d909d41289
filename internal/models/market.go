// Package models defines the core domain entities for the monkeyball simulation.
// These models represent the market snapshot the game runs against, the
// equipment catalog, agent behavioral profiles, episodic memories, and the
// per-tick game state handed to agents and external consumers.
// Models that cross a persistence or configuration boundary include built-in
// validation to ensure data integrity throughout the application.
//
// Terminology (matching the game's own naming):
//   - Strike: a discrete integer price level; coconuts are launched at strikes.
//   - Juice: the reward quantity split between the retail and market-maker
//     ("mm") sides when a coconut hits.
package models

import (
	"errors"
	"sort"
	"time"
)

// MarketState is a point-in-time view of the market the simulation runs
// against. It is immutable for the duration of a tick: the engine copies what
// it needs at construction and swaps in whole replacement states between
// ticks, never mutating one in place.
type MarketState struct {
	Price        float64         `json:"price"`
	ImpliedVol   float64         `json:"implied_vol"`
	Strikes      []int           `json:"strikes"`
	GammaProfile map[int]float64 `json:"gamma_profile,omitempty"`
	Volume       int64           `json:"volume"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Validate checks that the market state can seed a simulation.
// A non-empty strike universe is the one hard precondition of the game.
func (m *MarketState) Validate() error {
	if m.Price <= 0 {
		return errors.New("price must be positive")
	}
	if m.ImpliedVol < 0 {
		return errors.New("implied vol must not be negative")
	}
	if len(m.Strikes) == 0 {
		return errors.New("strike universe must not be empty")
	}
	for _, g := range m.GammaProfile {
		if g < 0 {
			return errors.New("gamma values must not be negative")
		}
	}
	return nil
}

// SortedStrikes returns the strike universe sorted ascending with duplicates
// removed. The engine fixes this set at construction; every strike-keyed map
// is total over exactly this set.
func (m *MarketState) SortedStrikes() []int {
	seen := make(map[int]bool, len(m.Strikes))
	out := make([]int, 0, len(m.Strikes))
	for _, s := range m.Strikes {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Ints(out)
	return out
}

// NearestStrike snaps a value to the nearest member of strikes by absolute
// distance. Ties snap to the lower strike (the first in ascending order).
// strikes must be non-empty and sorted ascending.
func NearestStrike(strikes []int, value float64) int {
	best := strikes[0]
	bestDist := abs(value - float64(best))
	for _, s := range strikes[1:] {
		d := abs(value - float64(s))
		if d < bestDist {
			best = s
			bestDist = d
		}
	}
	return best
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
