package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/rewired-gh/monkeyball/internal/models"
)

func TestHitProbability_AlwaysInUnitRange(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 1000; i++ {
		optionType := models.OptionCall
		if i%2 == 1 {
			optionType = models.OptionPut
		}
		p := HitParams{
			Spot:       500 + rng.Float64()*200,
			Strike:     500 + rng.Intn(200),
			ImpliedVol: rng.Float64() * 120,
			Gamma:      rng.Float64(),
			Equipment: models.Equipment{
				Power:      rng.Float64() * 2,
				Accuracy:   rng.Float64(),
				DTE:        1 + rng.Intn(60),
				OptionType: optionType,
			},
			Defended: i%3 == 0,
		}
		prob := HitProbability(p)
		if prob < 0 || prob > 1 {
			t.Fatalf("probability %v out of range for %+v", prob, p)
		}
	}
}

func TestHitProbability_DefenseHalves(t *testing.T) {
	p := HitParams{
		Spot:       628,
		Strike:     640,
		ImpliedVol: 13.7,
		Gamma:      0.5,
		Equipment:  models.Equipment{Power: 1, Accuracy: 0.8, DTE: 30, OptionType: models.OptionCall},
	}
	undefended := HitProbability(p)
	p.Defended = true
	defended := HitProbability(p)

	if undefended <= 0 || undefended >= 1 {
		t.Fatalf("test parameters must not clamp, got %v", undefended)
	}
	if math.Abs(defended*2-undefended) > 1e-12 {
		t.Errorf("defense should exactly halve: defended=%v undefended=%v", defended, undefended)
	}
}

func TestHitProbability_OptionAsymmetry(t *testing.T) {
	p := HitParams{
		Spot:       628,
		Strike:     620,
		ImpliedVol: 13.7,
		Gamma:      0.5,
		Equipment:  models.Equipment{Power: 1, Accuracy: 0.8, DTE: 30, OptionType: models.OptionCall},
	}
	call := HitProbability(p) // spot above strike: favorable for calls
	p.Equipment.OptionType = models.OptionPut
	put := HitProbability(p)

	if call <= put {
		t.Errorf("call should beat put below spot: call=%v put=%v", call, put)
	}
	if math.Abs(call/put-1.1/0.9) > 1e-9 {
		t.Errorf("asymmetry should be 1.1/0.9, got ratio %v", call/put)
	}
}

func TestHitProbability_ShortDTEBoostFloored(t *testing.T) {
	p := HitParams{
		Spot:       628,
		Strike:     640,
		ImpliedVol: 13.7,
		Gamma:      0.5,
		Equipment:  models.Equipment{Power: 1, Accuracy: 0.8, DTE: 3, OptionType: models.OptionCall},
	}
	atFloor := HitProbability(p)
	p.Equipment.DTE = 1
	belowFloor := HitProbability(p)

	if atFloor != belowFloor {
		t.Errorf("decay boost should be capped at the 0.1 floor: dte=3 gives %v, dte=1 gives %v", atFloor, belowFloor)
	}
}

func testCoconut(speed float64, eq models.Equipment, fps int) *Coconut {
	out := Outcome{Strike: 630, Hit: true, RetailJuice: RetailJuiceShare, MMJuice: MMJuiceShare}
	rng := rand.New(rand.NewSource(5))
	return newCoconut(out, eq, 640, 0, 215, 600, speed, "retail", fps, rng)
}

func TestCoconut_ArrivesAndDiesOnce(t *testing.T) {
	eq := models.Equipment{Name: "laser", Power: 1, Accuracy: 1, DTE: 5, OptionType: models.OptionCall}
	c := testCoconut(0.5, eq, 60)

	if !c.Alive {
		t.Fatal("coconut should start alive")
	}
	c.Update()
	if !c.Alive || c.T != 0.5 {
		t.Fatalf("after one tick expected alive at t=0.5, got alive=%v t=%v", c.Alive, c.T)
	}
	c.Update()
	if c.Alive {
		t.Error("coconut should arrive once t reaches 1")
	}
	if c.FramesRemaining != eq.DTE*60-2 {
		t.Errorf("frame budget should decrement every tick, got %d", c.FramesRemaining)
	}
}

func TestCoconut_ExpiresWhenFrameBudgetRunsOut(t *testing.T) {
	eq := models.Equipment{Name: "slow", Power: 1, Accuracy: 1, DTE: 1, OptionType: models.OptionCall}
	c := testCoconut(0.01, eq, 3) // 3-frame budget, far from arriving

	updates := 0
	for c.Alive {
		c.Update()
		updates++
		if updates > 10 {
			t.Fatal("coconut never expired")
		}
	}
	if updates != 3 {
		t.Errorf("expected expiry on the 3rd tick, got %d", updates)
	}
	if c.T >= 1 {
		t.Errorf("expired coconut must not have arrived, t=%v", c.T)
	}
}

func TestCoconut_PerfectAccuracyFollowsExactPath(t *testing.T) {
	eq := models.Equipment{Name: "laser", Power: 1, Accuracy: 1, DTE: 5, OptionType: models.OptionCall}
	c := testCoconut(0.25, eq, 60)

	c.Update()
	wantX := 0.75*640 + 0.25*215
	wantY := 0.25*600 - 100*1*0.25*0.75
	if math.Abs(c.X-wantX) > 1e-9 {
		t.Errorf("x: got %v, want %v", c.X, wantX)
	}
	if math.Abs(c.Y-wantY) > 1e-9 {
		t.Errorf("y: got %v, want %v", c.Y, wantY)
	}
}
