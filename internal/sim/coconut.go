package sim

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/rewired-gh/monkeyball/internal/models"
)

// Coconut is a single in-flight projectile. Its hit outcome is fixed at
// launch; flight is a timed arc from the launch point to the target tree.
// The lifecycle is monotone: it starts alive with a full frame budget and
// dies exactly once, either by arrival (t reaches 1) or expiry (frame budget
// exhausted). The engine owns the live list and folds the outcome into the
// aggregates when Alive flips false.
type Coconut struct {
	ID        string
	Strike    int
	X, Y      float64
	Equipment models.Equipment

	// T is flight progress in [0,1]; Speed scales per-tick advancement
	// together with equipment power.
	T     float64
	Speed float64

	Hit         bool
	RetailJuice float64
	MMJuice     float64
	SourceAgent string
	OptionType  string

	Alive           bool
	FramesRemaining int

	launchX, launchY float64
	targetX, targetY float64
	rng              *rand.Rand
}

// newCoconut spawns a coconut at the launch point with a frame budget of
// dte × fps and a precomputed outcome.
func newCoconut(out Outcome, eq models.Equipment, launchX, launchY, targetX, targetY, speed float64, source string, fps int, rng *rand.Rand) *Coconut {
	return &Coconut{
		ID:              uuid.New().String(),
		Strike:          out.Strike,
		X:               launchX,
		Y:               launchY,
		Equipment:       eq,
		Speed:           speed,
		Hit:             out.Hit,
		RetailJuice:     out.RetailJuice,
		MMJuice:         out.MMJuice,
		SourceAgent:     source,
		OptionType:      eq.OptionType,
		Alive:           true,
		FramesRemaining: eq.DTE * fps,
		launchX:         launchX,
		launchY:         launchY,
		targetX:         targetX,
		targetY:         targetY,
		rng:             rng,
	}
}

// Update advances the coconut by one tick. The frame budget strictly
// decreases every call; once Alive is false the coconut is terminal and
// Update must not be called again.
func (c *Coconut) Update() {
	c.FramesRemaining--
	if c.FramesRemaining <= 0 {
		c.Alive = false // expired in flight
		return
	}

	c.T += c.Speed * c.Equipment.Power
	if c.T >= 1 {
		c.Alive = false // arrived
		return
	}

	// Position interpolates launch→target. Imperfect accuracy jitters the
	// x-interpolation by a uniform factor around 1; the parabolic arc lifts
	// the path by up to 100×power at mid-flight.
	jitter := 1 - c.Equipment.Accuracy
	accuracyFactor := 1 - jitter + c.rng.Float64()*2*jitter

	baseX := (1-c.T)*c.launchX + c.T*c.targetX
	baseY := (1-c.T)*c.launchY + c.T*c.targetY

	arcHeight := 100 * c.Equipment.Power
	arcOffset := arcHeight * c.T * (1 - c.T)

	c.X = baseX * accuracyFactor
	c.Y = baseY - arcOffset
}
