package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rewired-gh/monkeyball/internal/agent"
	"github.com/rewired-gh/monkeyball/internal/logger"
	"github.com/rewired-gh/monkeyball/internal/models"
	"github.com/rewired-gh/monkeyball/internal/profile"
)

// TargetSource is the optional fast-path target ranking a market provider
// can offer. A nil source delegates every launch to the retail agent.
type TargetSource interface {
	SlingshotTargets(equipmentName string, spot float64) []models.Target
}

// Config holds the engine's simulation parameters.
type Config struct {
	Trials   int
	FPS      int
	Width    int
	Height   int
	SpeedMin float64
	SpeedMax float64
}

func (c *Config) applyDefaults() {
	if c.Trials <= 0 {
		c.Trials = 1000
	}
	if c.FPS <= 0 {
		c.FPS = 60
	}
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 720
	}
	if c.SpeedMin <= 0 {
		c.SpeedMin = 0.01
	}
	if c.SpeedMax < c.SpeedMin {
		c.SpeedMax = c.SpeedMin
	}
}

// Engine owns all mutable simulation state. It is single-owner and
// single-threaded: every state transition happens inside Update, and no two
// ticks overlap. Snapshots handed out via GameState are value copies and
// safe to read while the next tick runs.
type Engine struct {
	cfg      Config
	profiles profile.Provider
	targets  TargetSource
	retail   *agent.Retail
	monkey   *agent.Monkey
	rng      *rand.Rand

	validStrikes []int
	spot         float64
	impliedVol   float64
	gamma        map[int]float64 // normalized to max 1

	treeHits    map[int]int
	retailJuice map[int]float64
	mmJuice     map[int]float64
	coconuts    []*Coconut
	frame       int
	paused      bool
	aiEnabled   map[string]bool

	portfolio models.Portfolio
	current   models.Equipment

	treeX map[int]float64
	treeY float64
}

// NewEngine constructs an engine over the market's strike universe. The one
// fatal precondition of the whole game is a non-empty universe; everything
// after construction degrades gracefully instead of failing.
func NewEngine(
	cfg Config,
	state models.MarketState,
	portfolio models.Portfolio,
	profiles profile.Provider,
	targets TargetSource,
	retail *agent.Retail,
	monkey *agent.Monkey,
	rng *rand.Rand,
) (*Engine, error) {
	cfg.applyDefaults()

	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("invalid market state: %w", err)
	}
	if err := portfolio.Validate(); err != nil {
		return nil, fmt.Errorf("invalid portfolio: %w", err)
	}

	current, _ := portfolio.Find(portfolio.DefaultSlingshot)

	e := &Engine{
		cfg:          cfg,
		profiles:     profiles,
		targets:      targets,
		retail:       retail,
		monkey:       monkey,
		rng:          rng,
		validStrikes: state.SortedStrikes(),
		spot:         state.Price,
		impliedVol:   state.ImpliedVol,
		aiEnabled:    map[string]bool{models.RoleRetail: true, models.RoleMonkey: true},
		portfolio:    portfolio,
		current:      current,
	}
	e.gamma = normalizeGamma(state.GammaProfile, e.validStrikes, e.spot)
	e.layoutTrees()
	e.resetAggregates()
	return e, nil
}

// normalizeGamma scales a gamma profile so the largest exposure is 1. An
// absent or all-zero profile falls back to a synthetic exponential decay
// centered on spot.
func normalizeGamma(profile map[int]float64, strikes []int, spot float64) map[int]float64 {
	out := make(map[int]float64, len(strikes))

	maxGamma := 0.0
	for _, g := range profile {
		if g > maxGamma {
			maxGamma = g
		}
	}
	if maxGamma > 0 {
		for _, s := range strikes {
			out[s] = profile[s] / maxGamma
		}
		return out
	}

	for _, s := range strikes {
		out[s] = math.Pow(0.9, math.Abs(float64(s)-spot))
	}
	return out
}

// layoutTrees assigns each strike a tree position across the play field.
// Geometry only matters for coconut flight paths, but the spacing mirrors
// how the trees render.
func (e *Engine) layoutTrees() {
	spacing := (float64(e.cfg.Width) - 100) / float64(len(e.validStrikes)+1)
	if spacing > 30 {
		spacing = 30
	}
	e.treeX = make(map[int]float64, len(e.validStrikes))
	for i, s := range e.validStrikes {
		e.treeX[s] = 50 + float64(i)*spacing
	}
	e.treeY = float64(e.cfg.Height) - 120
}

func (e *Engine) resetAggregates() {
	e.treeHits = make(map[int]int, len(e.validStrikes))
	e.retailJuice = make(map[int]float64, len(e.validStrikes))
	e.mmJuice = make(map[int]float64, len(e.validStrikes))
	for _, s := range e.validStrikes {
		e.treeHits[s] = 0
		e.retailJuice[s] = 0
		e.mmJuice[s] = 0
	}
}

// snapStrike clamps any strike to the nearest member of the valid universe,
// logging the drift. Applied at every boundary where an external or
// agent-produced strike enters the engine.
func (e *Engine) snapStrike(strike int) int {
	snapped := models.NearestStrike(e.validStrikes, float64(strike))
	if snapped != strike {
		logger.Warn("engine: strike %d outside universe, snapped to %d", strike, snapped)
	}
	return snapped
}

// GameState returns a typed snapshot for agents and external consumers.
// Maps are cloned; the snapshot never aliases live state.
func (e *Engine) GameState() models.GameState {
	strikes := make([]int, len(e.validStrikes))
	copy(strikes, e.validStrikes)

	hits := make(map[int]int, len(e.treeHits))
	for k, v := range e.treeHits {
		hits[k] = v
	}
	rj := make(map[int]float64, len(e.retailJuice))
	for k, v := range e.retailJuice {
		rj[k] = v
	}
	mj := make(map[int]float64, len(e.mmJuice))
	for k, v := range e.mmJuice {
		mj[k] = v
	}

	return models.GameState{
		SpotPrice:   e.spot,
		Strikes:     strikes,
		TreeHits:    hits,
		RetailJuice: rj,
		MMJuice:     mj,
		Frame:       e.frame,
		Equipment:   e.current.Name,
		OptionType:  e.current.OptionType,
	}
}

// Resolve decides hit/miss and the juice split for a launch at the given
// strike, recording outcomes and memories into both agents as side effects.
// Out-of-universe strikes are snapped first.
func (e *Engine) Resolve(strike int) Outcome {
	strike = e.snapStrike(strike)

	params := HitParams{
		Spot:       e.spot,
		Strike:     strike,
		ImpliedVol: e.impliedVol,
		Gamma:      e.gamma[strike],
		Equipment:  e.current,
	}

	out := Outcome{Strike: strike}

	if e.aiEnabled[models.RoleMonkey] {
		for _, p := range e.monkey.PredictTargets(e.GameState()) {
			if p.Strike == strike {
				params.Defended = true
				break
			}
		}
		if params.Defended {
			out.Defended = true
			// The defense stands when a fresh draw beats the halved base
			// chance; this is the monkey's own scoreboard, independent of
			// the final hit draw below.
			halvedBase := 0.5 / (1 + math.Abs(e.spot-float64(strike)))
			out.DefenseSuccess = e.rng.Float64() > halvedBase
			e.monkey.RecordDefense(out.DefenseSuccess)
			if out.DefenseSuccess {
				e.monkey.Memory().Add(
					fmt.Sprintf("Successfully defended %s strike %d", e.current.OptionType, strike), 0.8)
			} else {
				e.monkey.Memory().Add(
					fmt.Sprintf("Failed to defend %s strike %d", e.current.OptionType, strike), 0.6)
			}
		}
	}

	out.Probability = HitProbability(params)
	out.Hit = e.rng.Float64() < out.Probability
	if out.Hit {
		out.MMJuice = MMJuiceShare
		out.RetailJuice = RetailJuiceShare
	}

	e.retail.RecordHit(out.Hit)
	if out.Hit {
		e.retail.Memory().Add(
			fmt.Sprintf("Hit %s strike %d at spot %g", e.current.OptionType, strike, e.spot), 0.7)
	} else {
		e.retail.Memory().Add(
			fmt.Sprintf("Missed %s strike %d", e.current.OptionType, strike), 0.5)
	}

	return out
}

// launch picks a target and spawns a coconut with its outcome precomputed.
// Returns nil once the trial budget is spent.
func (e *Engine) launch() *Coconut {
	if e.frame >= e.cfg.Trials {
		return nil
	}

	var target int
	source := "random"
	if e.aiEnabled[models.RoleRetail] {
		source = models.RoleRetail
		if picked, ok := e.fastPathTarget(); ok {
			target = picked
		} else {
			target, _ = e.retail.SelectTarget(e.GameState())
			target = e.snapStrike(target)
		}
	} else {
		target = e.validStrikes[e.rng.Intn(len(e.validStrikes))]
	}

	out := e.Resolve(target)

	speed := e.cfg.SpeedMin + e.rng.Float64()*(e.cfg.SpeedMax-e.cfg.SpeedMin)
	launchX := float64(e.cfg.Width) / 2
	targetX := e.treeX[out.Strike] + 10

	return newCoconut(out, e.current, launchX, 0, targetX, e.treeY, speed, source, e.cfg.FPS, e.rng)
}

// fastPathTarget consults the market provider's precomputed ranking for the
// current equipment. Returns false when no provider or no targets exist.
func (e *Engine) fastPathTarget() (int, bool) {
	if e.targets == nil {
		return 0, false
	}
	ranked := e.targets.SlingshotTargets(e.current.Name, e.spot)
	if len(ranked) == 0 {
		return 0, false
	}
	return e.snapStrike(ranked[0].Strike), true
}

// Update advances the simulation by one tick: launch (while trials remain),
// advance every live coconut, and fold finished ones into the aggregates.
// Terminal coconuts are drained with a mark-and-compact pass; the live list
// is never mutated while being ranged.
func (e *Engine) Update() {
	if e.paused {
		return
	}

	if c := e.launch(); c != nil {
		e.coconuts = append(e.coconuts, c)
		e.frame++
	}

	live := e.coconuts[:0]
	for _, c := range e.coconuts {
		c.Update()
		if c.Alive {
			live = append(live, c)
		} else {
			e.applyOutcome(c)
		}
	}
	// Release trailing slots so drained coconuts can be collected.
	for i := len(live); i < len(e.coconuts); i++ {
		e.coconuts[i] = nil
	}
	e.coconuts = live
}

// applyOutcome folds a terminal coconut into the aggregate maps, exactly
// once per coconut.
func (e *Engine) applyOutcome(c *Coconut) {
	s := e.snapStrike(c.Strike)
	if c.Hit {
		e.treeHits[s]++
		e.retailJuice[s] += c.RetailJuice
		e.mmJuice[s] += c.MMJuice
	}
}

// SetMarketState hands the engine a fresh market snapshot between ticks.
// Only spot and vol move; the strike universe is fixed for the episode, so
// a refreshed universe is ignored. Gamma is renormalized when provided.
func (e *Engine) SetMarketState(state models.MarketState) {
	if state.Price > 0 {
		e.spot = state.Price
	}
	if state.ImpliedVol >= 0 {
		e.impliedVol = state.ImpliedVol
	}
	if len(state.GammaProfile) > 0 {
		e.gamma = normalizeGamma(state.GammaProfile, e.validStrikes, e.spot)
	}
}

// TogglePause flips the Running/Paused state.
func (e *Engine) TogglePause() { e.paused = !e.paused }

// Paused reports whether the engine is paused.
func (e *Engine) Paused() bool { return e.paused }

// ToggleAI flips the AI flag for a role. Unknown roles are ignored.
func (e *Engine) ToggleAI(role string) {
	if _, ok := e.aiEnabled[role]; ok {
		e.aiEnabled[role] = !e.aiEnabled[role]
	}
}

// SwitchEquipment selects a slingshot from the catalog by name.
func (e *Engine) SwitchEquipment(name string) bool {
	eq, ok := e.portfolio.Find(name)
	if !ok {
		return false
	}
	e.current = eq
	logger.Info("engine: switched equipment to %s (%s)", eq.Name, eq.OptionType)
	return true
}

// CurrentEquipment returns the active slingshot.
func (e *Engine) CurrentEquipment() models.Equipment { return e.current }

// SwitchProfile activates a role's profile by index into the sorted profile
// list, matching how the UI exposes profile hotkeys.
func (e *Engine) SwitchProfile(role string, index int) bool {
	names := e.profiles.List(role)
	if index < 0 || index >= len(names) {
		return false
	}
	return e.profiles.Switch(role, names[index])
}

// Reset clears the aggregates, live coconuts, and frame counter. Agent
// memories and histories survive a reset; learning outlives the episode.
func (e *Engine) Reset() {
	e.resetAggregates()
	e.coconuts = nil
	e.frame = 0
}

// Frame returns the number of launches so far.
func (e *Engine) Frame() int { return e.frame }

// InFlight returns the number of live coconuts.
func (e *Engine) InFlight() int { return len(e.coconuts) }

// Done reports whether the episode is complete: the trial budget is spent
// and every coconut has resolved.
func (e *Engine) Done() bool {
	return e.frame >= e.cfg.Trials && len(e.coconuts) == 0
}

// Statistics returns the per-strike aggregate table in strike order.
func (e *Engine) Statistics() []models.StatRow {
	rows := make([]models.StatRow, 0, len(e.validStrikes))
	for _, s := range e.validStrikes {
		rows = append(rows, models.StatRow{
			Strike:      s,
			Hits:        e.treeHits[s],
			RetailJuice: e.retailJuice[s],
			MMJuice:     e.mmJuice[s],
			Gamma:       e.gamma[s],
		})
	}
	return rows
}

// Retail exposes the retail decision unit (memory summaries, display).
func (e *Engine) Retail() *agent.Retail { return e.retail }

// Monkey exposes the monkey decision unit (memory summaries, display).
func (e *Engine) Monkey() *agent.Monkey { return e.monkey }
