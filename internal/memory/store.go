// Package memory provides a bounded episodic memory store per agent.
//
// Each record carries an importance in [0,1], a timestamp, and a reference
// counter tracking how often the record was considered during retrieval.
// When the store exceeds its capacity a curation pass keeps the records with
// the highest combined score:
//
//	score = importance × (1 + references/10) × age_decay
//	age_decay = 1 / (1 + age_seconds/86400)
//
// so important, frequently-consulted, recent memories survive.
//
// Retrieval ranks records by contextual relevance (strike mention, spot
// mention, success/failure keyword alignment) plus a small random exploration
// term. Every record with positive relevance has its reference counter
// incremented, including records that fall outside the returned limit; the
// counter models attention during scoring, not delivery, and curation
// ordering depends on it.
//
// The store persists to a JSON file after every mutation. Persistence
// failures are logged and swallowed; losing a save never aborts a tick.
package memory

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/monkeyball/internal/logger"
	"github.com/rewired-gh/monkeyball/internal/models"
)

// DefaultCapacity is the record cap used when no explicit capacity is given.
const DefaultCapacity = 100

// Relevance bonuses applied during retrieval scoring.
const (
	strikeMatchBonus  = 0.3
	spotMatchBonus    = 0.2
	outcomeMatchBonus = 0.2
	explorationMax    = 0.1
)

// Store is a capacity-bounded episodic log for one agent.
type Store struct {
	agentName string
	capacity  int
	records   []models.MemoryRecord
	filePath  string
	rng       *rand.Rand
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source, used by curation tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store for the named agent, persisting to
// <logsDir>/<agent>_memories.json. Existing records at that path are loaded;
// a missing or unreadable file starts the store empty. capacity <= 0 selects
// DefaultCapacity. The rng drives the retrieval exploration term and must not
// be shared across goroutines.
func NewStore(agentName string, capacity int, logsDir string, rng *rand.Rand, opts ...Option) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{
		agentName: agentName,
		capacity:  capacity,
		filePath:  filepath.Join(logsDir, agentName+"_memories.json"),
		rng:       rng,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("memory: failed to read %s: %v", s.filePath, err)
		}
		return
	}
	var records []models.MemoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Warn("memory: failed to parse %s: %v", s.filePath, err)
		return
	}
	s.records = records
}

// persist writes all records atomically (tmp file + rename). Failures are
// logged and swallowed per the error handling policy.
func (s *Store) persist() {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		logger.Warn("memory: failed to create logs dir: %v", err)
		return
	}
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		logger.Warn("memory: failed to marshal records: %v", err)
		return
	}
	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		logger.Warn("memory: failed to write %s: %v", tempPath, err)
		return
	}
	if err := os.Rename(tempPath, s.filePath); err != nil {
		_ = os.Remove(tempPath)
		logger.Warn("memory: failed to rename %s: %v", tempPath, err)
	}
}

// Add appends a new record and curates when the store exceeds capacity.
// Importance outside [0,1] is clamped, never rejected.
func (s *Store) Add(content string, importance float64) {
	if importance < 0 {
		importance = 0
	} else if importance > 1 {
		importance = 1
	}
	s.records = append(s.records, models.MemoryRecord{
		ID:         uuid.New().String(),
		Content:    content,
		Importance: importance,
		Timestamp:  s.now(),
	})
	if len(s.records) > s.capacity {
		s.Curate()
	}
	s.persist()
}

// Len returns the number of stored records.
func (s *Store) Len() int { return len(s.records) }

// Records returns a copy of the stored records in insertion order.
func (s *Store) Records() []models.MemoryRecord {
	out := make([]models.MemoryRecord, len(s.records))
	copy(out, s.records)
	return out
}

// score is the curation priority of a record at time now.
func score(rec models.MemoryRecord, now time.Time) float64 {
	age := now.Sub(rec.Timestamp).Seconds()
	if age < 0 {
		age = 0
	}
	ageDecay := 1.0 / (1 + age/86400)
	return rec.Importance * (1 + float64(rec.References)/10) * ageDecay
}

// Curate keeps the top-capacity records by curation score and discards the
// rest. Curation is idempotent: re-running it on an already-trimmed store
// does not change membership.
func (s *Store) Curate() {
	if len(s.records) <= s.capacity {
		return
	}
	now := s.now()
	sort.SliceStable(s.records, func(i, j int) bool {
		return score(s.records[i], now) > score(s.records[j], now)
	})
	dropped := len(s.records) - s.capacity
	s.records = s.records[:s.capacity]
	logger.Debug("memory: curated %s, dropped %d records", s.agentName, dropped)
}

// Retrieve returns up to limit records ranked by contextual relevance,
// most relevant first. Every record with positive relevance has References
// incremented, whether or not it makes the cut. limit <= 0 defaults to 5.
func (s *Store) Retrieve(ctx models.MemoryContext, limit int) []models.MemoryRecord {
	if limit <= 0 {
		limit = 5
	}

	strikeStr := strconv.Itoa(ctx.StrikePrice)
	spotStr := strconv.FormatFloat(ctx.SpotPrice, 'g', -1, 64)

	type scored struct {
		idx       int
		relevance float64
	}
	var candidates []scored

	for i := range s.records {
		content := s.records[i].Content
		lower := strings.ToLower(content)

		relevance := 0.0
		if ctx.StrikePrice != 0 && strings.Contains(content, strikeStr) {
			relevance += strikeMatchBonus
		}
		if ctx.SpotPrice != 0 && strings.Contains(content, spotStr) {
			relevance += spotMatchBonus
		}
		if ctx.RecentSuccess && strings.Contains(lower, "success") {
			relevance += outcomeMatchBonus
		} else if !ctx.RecentSuccess && strings.Contains(lower, "fail") {
			relevance += outcomeMatchBonus
		}
		relevance += s.rng.Float64() * explorationMax

		if relevance > 0 {
			s.records[i].References++
			candidates = append(candidates, scored{idx: i, relevance: relevance})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].relevance > candidates[j].relevance
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]models.MemoryRecord, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, s.records[c.idx])
	}

	// Reference counts changed; keep the persisted log in step.
	s.persist()

	return out
}

// Summarize buckets records by importance and lists the most referenced ones
// per bucket as a human-readable digest.
func (s *Store) Summarize() string {
	if len(s.records) == 0 {
		return "No memories collected yet."
	}

	var high, medium []models.MemoryRecord
	for _, rec := range s.records {
		switch {
		case rec.Importance >= 0.8:
			high = append(high, rec)
		case rec.Importance >= 0.5:
			medium = append(medium, rec)
		}
	}

	byReferences := func(recs []models.MemoryRecord) {
		sort.SliceStable(recs, func(i, j int) bool {
			return recs[i].References > recs[j].References
		})
	}
	byReferences(high)
	byReferences(medium)

	var b strings.Builder
	fmt.Fprintf(&b, "Agent %s Insights:", s.agentName)

	if len(high) > 0 {
		b.WriteString("\n\nKey Learnings:")
		for _, rec := range top(high, 3) {
			fmt.Fprintf(&b, "\n- %s (referenced %d times)", rec.Content, rec.References)
		}
	}
	if len(medium) > 0 {
		b.WriteString("\n\nUseful Patterns:")
		for _, rec := range top(medium, 3) {
			fmt.Fprintf(&b, "\n- %s", rec.Content)
		}
	}
	return b.String()
}

func top(recs []models.MemoryRecord, n int) []models.MemoryRecord {
	if len(recs) > n {
		return recs[:n]
	}
	return recs
}
