// Package save persists finished episodes to disk: the final game state as
// JSON, the per-strike statistics table as CSV, and a JSON copy of each
// agent's memory log, grouped under a per-session directory.
package save

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/monkeyball/internal/logger"
	"github.com/rewired-gh/monkeyball/internal/models"
)

const (
	stateFile = "game_state.json"
	statsFile = "statistics.csv"
)

// Session is the content of one saved episode.
type Session struct {
	Timestamp string           `json:"timestamp"`
	State     models.GameState `json:"state"`
}

// SessionInfo summarizes a saved session for listings.
type SessionInfo struct {
	Dir       string  `json:"dir"`
	Timestamp string  `json:"timestamp"`
	SpotPrice float64 `json:"spot_price"`
	Frame     int     `json:"frame"`
}

// Manager writes and reads session directories under a base path.
type Manager struct {
	baseDir string
	now     func() time.Time
}

// Option overrides a Manager default.
type Option func(*Manager)

// WithClock substitutes the session timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates the base directory if needed.
func NewManager(baseDir string, opts ...Option) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	m := &Manager{baseDir: baseDir, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SaveSession writes one episode to a fresh session directory and returns
// its path. The directory name carries the wall-clock timestamp plus a short
// unique suffix so rapid saves never collide.
func (m *Manager) SaveSession(state models.GameState, stats []models.StatRow, memories map[string][]models.MemoryRecord) (string, error) {
	name := m.now().Format("20060102_150405") + "_" + uuid.New().String()[:8]
	dir := filepath.Join(m.baseDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}

	session := Session{Timestamp: m.now().Format(time.RFC3339), State: state}
	if err := writeJSON(filepath.Join(dir, stateFile), session); err != nil {
		return "", err
	}
	if err := writeStatistics(filepath.Join(dir, statsFile), stats); err != nil {
		return "", err
	}
	for agent, records := range memories {
		if err := writeJSON(filepath.Join(dir, agent+"_memories.json"), records); err != nil {
			return "", err
		}
	}

	logger.Info("save: session written to %s", dir)
	return dir, nil
}

// LoadSession reads a saved session by directory name.
func (m *Manager) LoadSession(name string) (Session, []models.StatRow, error) {
	dir := filepath.Join(m.baseDir, name)

	var session Session
	data, err := os.ReadFile(filepath.Join(dir, stateFile))
	if err != nil {
		return Session{}, nil, fmt.Errorf("read session: %w", err)
	}
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, nil, fmt.Errorf("parse session: %w", err)
	}

	stats, err := readStatistics(filepath.Join(dir, statsFile))
	if err != nil {
		return Session{}, nil, err
	}
	return session, stats, nil
}

// ListSessions returns summaries of every saved session, oldest first.
// Directories without a readable state file are skipped.
func (m *Manager) ListSessions() []SessionInfo {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		logger.Warn("save: list sessions: %v", err)
		return nil
	}

	var sessions []SessionInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.baseDir, entry.Name(), stateFile))
		if err != nil {
			continue
		}
		var session Session
		if err := json.Unmarshal(data, &session); err != nil {
			logger.Warn("save: skipping corrupt session %s: %v", entry.Name(), err)
			continue
		}
		sessions = append(sessions, SessionInfo{
			Dir:       entry.Name(),
			Timestamp: session.Timestamp,
			SpotPrice: session.State.SpotPrice,
			Frame:     session.State.Frame,
		})
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Dir < sessions[j].Dir })
	return sessions
}

// writeJSON writes v atomically: temp file in the same directory, then
// rename. A crash mid-write leaves the previous file intact.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

var statsHeader = []string{"strike", "hits", "retail_juice", "mm_juice", "gamma"}

func writeStatistics(path string, stats []models.StatRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create statistics: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(statsHeader); err != nil {
		return fmt.Errorf("write statistics header: %w", err)
	}
	for _, row := range stats {
		record := []string{
			strconv.Itoa(row.Strike),
			strconv.Itoa(row.Hits),
			strconv.FormatFloat(row.RetailJuice, 'f', -1, 64),
			strconv.FormatFloat(row.MMJuice, 'f', -1, 64),
			strconv.FormatFloat(row.Gamma, 'f', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write statistics row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func readStatistics(path string) ([]models.StatRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open statistics: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse statistics: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	stats := make([]models.StatRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(statsHeader) {
			return nil, fmt.Errorf("statistics row has %d fields, want %d", len(row), len(statsHeader))
		}
		strike, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("parse strike %q: %w", row[0], err)
		}
		hits, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("parse hits %q: %w", row[1], err)
		}
		rj, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("parse retail_juice %q: %w", row[2], err)
		}
		mj, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("parse mm_juice %q: %w", row[3], err)
		}
		gamma, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("parse gamma %q: %w", row[4], err)
		}
		stats = append(stats, models.StatRow{Strike: strike, Hits: hits, RetailJuice: rj, MMJuice: mj, Gamma: gamma})
	}
	return stats, nil
}
