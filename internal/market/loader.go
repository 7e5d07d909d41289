// Package market derives the game's market state from historical stock CSV
// data. Loading never fails outward: any parse or IO problem degrades to a
// built-in fallback snapshot so the game always starts with a usable strike
// universe.
package market

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/monkeyball/internal/logger"
	"github.com/rewired-gh/monkeyball/internal/models"
)

// minAttractiveness filters strikes a slingshot would never bother aiming at.
const minAttractiveness = 0.3

// tradingDaysPerYear annualizes the realized-volatility estimate.
const tradingDaysPerYear = 252

// Config selects the data source and the fallback snapshot.
type Config struct {
	Ticker            string
	DataDir           string
	StrikeRange       int
	FallbackPrice     float64
	FallbackVol       float64
	MaxHistoricalDays int
}

// PricePoint is one historical close.
type PricePoint struct {
	Date   time.Time
	Close  float64
	Volume int64
}

// Loader reads a ticker's historical CSV once at construction and serves an
// immutable market state derived from it. Reload builds a fresh state for
// refresh cycles.
type Loader struct {
	cfg       Config
	portfolio models.Portfolio
	history   []PricePoint
	state     models.MarketState
}

// NewLoader builds a loader and derives the initial market state. A missing
// or unreadable CSV logs a warning and serves the fallback state.
func NewLoader(cfg Config, portfolio models.Portfolio) *Loader {
	if cfg.StrikeRange <= 0 {
		cfg.StrikeRange = 15
	}
	if cfg.MaxHistoricalDays <= 0 {
		cfg.MaxHistoricalDays = 30
	}
	l := &Loader{cfg: cfg, portfolio: portfolio}
	l.Reload()
	return l
}

// Reload re-reads the CSV and rebuilds the served state.
func (l *Loader) Reload() {
	history, err := readStockCSV(filepath.Join(l.cfg.DataDir, strings.ToUpper(l.cfg.Ticker)+".csv"))
	if err != nil {
		logger.Warn("market: %v, using fallback state", err)
		l.history = nil
		l.state = l.fallbackState()
		return
	}
	l.history = history
	last := history[len(history)-1]
	logger.Info("market: loaded %d rows for %s, last close %.2f", len(history), l.cfg.Ticker, last.Close)

	l.state = models.MarketState{
		Price:        last.Close,
		ImpliedVol:   l.realizedVol(last.Volume),
		Strikes:      strikesAround(last.Close, l.cfg.StrikeRange),
		GammaProfile: map[int]float64{},
		Volume:       last.Volume,
		Timestamp:    time.Now(),
	}
}

// Fixed strike universe served when no historical data is available.
const (
	fallbackMinStrike = 610
	fallbackMaxStrike = 646
)

func (l *Loader) fallbackState() models.MarketState {
	strikes := make([]int, 0, fallbackMaxStrike-fallbackMinStrike+1)
	for s := fallbackMinStrike; s <= fallbackMaxStrike; s++ {
		strikes = append(strikes, s)
	}
	return models.MarketState{
		Price:        l.cfg.FallbackPrice,
		ImpliedVol:   l.cfg.FallbackVol,
		Strikes:      strikes,
		GammaProfile: map[int]float64{},
		Timestamp:    time.Now(),
	}
}

// State returns the current market snapshot. The strike slice is copied so
// callers can hold it across reloads.
func (l *Loader) State() models.MarketState {
	state := l.state
	strikes := make([]int, len(state.Strikes))
	copy(strikes, state.Strikes)
	state.Strikes = strikes
	if state.GammaProfile != nil {
		gamma := make(map[int]float64, len(state.GammaProfile))
		for k, v := range state.GammaProfile {
			gamma[k] = v
		}
		state.GammaProfile = gamma
	}
	return state
}

// PriceHistory returns up to lookback trailing closes, oldest first. A
// non-positive lookback uses the configured window.
func (l *Loader) PriceHistory(lookback int) []PricePoint {
	if lookback <= 0 {
		lookback = l.cfg.MaxHistoricalDays
	}
	if lookback > len(l.history) {
		lookback = len(l.history)
	}
	out := make([]PricePoint, lookback)
	copy(out, l.history[len(l.history)-lookback:])
	return out
}

// realizedVol estimates volatility from daily returns, annualized to
// percentage points and scaled by how today's volume compares to average.
func (l *Loader) realizedVol(lastVolume int64) float64 {
	if len(l.history) < 3 {
		return l.cfg.FallbackVol
	}

	returns := make([]float64, 0, len(l.history)-1)
	for i := 1; i < len(l.history); i++ {
		prev := l.history[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, l.history[i].Close/prev-1)
	}
	if len(returns) < 2 {
		return l.cfg.FallbackVol
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	vol := math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear) * 100

	var totalVolume int64
	for _, p := range l.history {
		totalVolume += p.Volume
	}
	if lastVolume > 0 && totalVolume > 0 {
		meanVolume := float64(totalVolume) / float64(len(l.history))
		vol *= float64(lastVolume) / meanVolume
	}
	return vol
}

// SlingshotTargets ranks strikes for a slingshot by attractiveness: distance
// from the bias-shifted center, boosted by gamma exposure, filtered by a
// minimum threshold. Unknown slingshots get no targets.
func (l *Loader) SlingshotTargets(name string, spot float64) []models.Target {
	eq, ok := l.portfolio.Find(name)
	if !ok {
		return nil
	}

	center := int(math.Round(spot)) + eq.StrikeBias
	targets := make([]models.Target, 0)
	for _, strike := range strikesAround(spot, l.cfg.StrikeRange) {
		gamma, present := l.state.GammaProfile[strike]
		if !present {
			gamma = 0.1
		}
		attractiveness := 1.0 / (1 + math.Abs(float64(strike-center))) * (1 + gamma)
		if attractiveness <= minAttractiveness {
			continue
		}
		targets = append(targets, models.Target{
			Strike:         strike,
			Attractiveness: attractiveness,
			OptionType:     eq.OptionType,
			DTE:            eq.DTE,
		})
	}
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Attractiveness > targets[j].Attractiveness
	})
	return targets
}

func strikesAround(spot float64, strikeRange int) []int {
	base := int(math.Round(spot))
	strikes := make([]int, 0, 2*strikeRange+1)
	for s := base - strikeRange; s <= base+strikeRange; s++ {
		strikes = append(strikes, s)
	}
	return strikes
}

var dateLayouts = []string{"01/02/2006", "2006-01-02", "2006/01/02"}

// readStockCSV parses a historical stock export with Date, Close/Last, and
// Volume columns. Prices may carry a leading $ and thousands separators.
// Rows are returned oldest first regardless of file order.
func readStockCSV(path string) ([]PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}

	dateCol, closeCol, volumeCol := -1, -1, -1
	for i, name := range rows[0] {
		switch strings.TrimSpace(name) {
		case "Date":
			dateCol = i
		case "Close/Last", "Close":
			closeCol = i
		case "Volume":
			volumeCol = i
		}
	}
	if dateCol < 0 || closeCol < 0 {
		return nil, fmt.Errorf("%s: missing Date or Close/Last column", path)
	}

	history := make([]PricePoint, 0, len(rows)-1)
	for _, row := range rows[1:] {
		date, ok := parseDate(row[dateCol])
		if !ok {
			continue
		}
		close, err := parsePrice(row[closeCol])
		if err != nil {
			continue
		}
		var volume int64
		if volumeCol >= 0 {
			volume, _ = strconv.ParseInt(strings.TrimSpace(row[volumeCol]), 10, 64)
		}
		history = append(history, PricePoint{Date: date, Close: close, Volume: volume})
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%s: no parsable rows", path)
	}

	sort.SliceStable(history, func(i, j int) bool { return history[i].Date.Before(history[j].Date) })
	return history, nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseFloat(s, 64)
}
