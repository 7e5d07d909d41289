package market

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rewired-gh/monkeyball/internal/models"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(dataDir string) Config {
	return Config{
		Ticker:            "SPY",
		DataDir:           dataDir,
		StrikeRange:       15,
		FallbackPrice:     628.86,
		FallbackVol:       13.7,
		MaxHistoricalDays: 30,
	}
}

// Steady 1% daily gains produce zero return variance, so realized vol is
// exactly zero; this pins the vol estimator without reproducing it.
const steadyGainsCSV = `Date,Close/Last,Volume
08/04/2025,$100.00,1000
08/05/2025,$101.00,1000
08/06/2025,$102.01,1000
08/07/2025,$103.0301,1000
`

func TestLoader_DerivesStateFromCSV(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "SPY.csv", steadyGainsCSV)

	l := NewLoader(testConfig(dir), models.DefaultPortfolio())
	state := l.State()

	if math.Abs(state.Price-103.0301) > 1e-9 {
		t.Errorf("expected last close 103.0301, got %v", state.Price)
	}
	if math.Abs(state.ImpliedVol) > 1e-9 {
		t.Errorf("constant returns should give zero vol, got %v", state.ImpliedVol)
	}
	if state.Volume != 1000 {
		t.Errorf("expected last volume 1000, got %d", state.Volume)
	}
	// round(103.0301) = 103, ±15
	if got := state.Strikes; len(got) != 31 || got[0] != 88 || got[len(got)-1] != 118 {
		t.Errorf("unexpected strike universe: %v", got)
	}
	if err := state.Validate(); err != nil {
		t.Errorf("derived state should validate: %v", err)
	}
}

func TestLoader_SortsDescendingExports(t *testing.T) {
	dir := t.TempDir()
	// Nasdaq-style export: newest row first.
	writeCSV(t, dir, "SPY.csv", `Date,Close/Last,Volume
08/07/2025,$200.00,500
08/06/2025,$100.00,500
08/05/2025,$50.00,500
`)

	l := NewLoader(testConfig(dir), models.DefaultPortfolio())
	if got := l.State().Price; got != 200 {
		t.Errorf("last close should be the newest date, got %v", got)
	}

	history := l.PriceHistory(0)
	if len(history) != 3 || !history[0].Date.Before(history[2].Date) {
		t.Errorf("history should be oldest first: %+v", history)
	}
}

func TestLoader_FallsBackWhenCSVMissing(t *testing.T) {
	l := NewLoader(testConfig(t.TempDir()), models.DefaultPortfolio())
	state := l.State()

	if state.Price != 628.86 || state.ImpliedVol != 13.7 {
		t.Errorf("expected fallback price/vol, got %v/%v", state.Price, state.ImpliedVol)
	}
	if got := state.Strikes; got[0] != 610 || got[len(got)-1] != 646 {
		t.Errorf("fallback strikes should span 610-646: %v", got)
	}
	if err := state.Validate(); err != nil {
		t.Errorf("fallback state should validate: %v", err)
	}
}

func TestLoader_StateIsDetached(t *testing.T) {
	l := NewLoader(testConfig(t.TempDir()), models.DefaultPortfolio())
	state := l.State()
	state.Strikes[0] = -1
	if l.State().Strikes[0] == -1 {
		t.Error("mutating a returned state leaked into the loader")
	}
}

func TestLoader_SlingshotTargets(t *testing.T) {
	l := NewLoader(testConfig(t.TempDir()), models.DefaultPortfolio())

	// standard: call with strike bias +2, so the peak sits at round(spot)+2.
	targets := l.SlingshotTargets("standard", 628.86)
	if len(targets) == 0 {
		t.Fatal("expected targets for a catalog slingshot")
	}
	if targets[0].Strike != 631 {
		t.Errorf("peak attractiveness should sit at 629+2=631, got %d", targets[0].Strike)
	}
	for i := 1; i < len(targets); i++ {
		if targets[i].Attractiveness > targets[i-1].Attractiveness {
			t.Fatalf("targets out of order at %d: %+v", i, targets)
		}
	}
	for _, tg := range targets {
		if tg.Attractiveness <= minAttractiveness {
			t.Errorf("target %d below threshold: %v", tg.Strike, tg.Attractiveness)
		}
		if tg.OptionType != models.OptionCall || tg.DTE != 5 {
			t.Errorf("target should carry the slingshot's option type and dte: %+v", tg)
		}
	}

	if got := l.SlingshotTargets("trebuchet", 628.86); got != nil {
		t.Errorf("unknown slingshot should have no targets, got %v", got)
	}
}

func TestLoader_PutBiasShiftsTargetsDown(t *testing.T) {
	l := NewLoader(testConfig(t.TempDir()), models.DefaultPortfolio())
	targets := l.SlingshotTargets("put-mortar", 628.86) // bias -5
	if len(targets) == 0 {
		t.Fatal("expected targets")
	}
	if targets[0].Strike != 624 {
		t.Errorf("peak should sit at 629-5=624, got %d", targets[0].Strike)
	}
}

func TestRefresher_PublishesLatestState(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "SPY.csv", steadyGainsCSV)
	l := NewLoader(testConfig(dir), models.DefaultPortfolio())

	r := NewRefresher(l, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case state := <-r.Updates():
		if state.Price != 103.0301 {
			t.Errorf("unexpected published price %v", state.Price)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update published")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop")
	}
}

func TestRefresher_DropsStaleSnapshots(t *testing.T) {
	l := NewLoader(testConfig(t.TempDir()), models.DefaultPortfolio())
	r := NewRefresher(l, time.Hour)

	r.publish(models.MarketState{Price: 1})
	r.publish(models.MarketState{Price: 2})
	r.publish(models.MarketState{Price: 3})

	if got := <-r.Updates(); got.Price != 3 {
		t.Errorf("consumer should see only the latest snapshot, got %v", got.Price)
	}
	select {
	case extra := <-r.Updates():
		t.Errorf("no further snapshot expected, got %v", extra.Price)
	default:
	}
}
