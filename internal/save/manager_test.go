package save

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/monkeyball/internal/models"
)

func sampleState() models.GameState {
	return models.GameState{
		SpotPrice:   628.86,
		Strikes:     []int{625, 630, 635},
		TreeHits:    map[int]int{625: 1, 630: 4, 635: 0},
		RetailJuice: map[int]float64{625: 0.3, 630: 1.2, 635: 0},
		MMJuice:     map[int]float64{625: 0.7, 630: 2.8, 635: 0},
		Frame:       5,
		Equipment:   "standard",
		OptionType:  models.OptionCall,
	}
}

func sampleStats() []models.StatRow {
	return []models.StatRow{
		{Strike: 625, Hits: 1, RetailJuice: 0.3, MMJuice: 0.7, Gamma: 0.729},
		{Strike: 630, Hits: 4, RetailJuice: 1.2, MMJuice: 2.8, Gamma: 0.81},
		{Strike: 635, Hits: 0, RetailJuice: 0, MMJuice: 0, Gamma: 0.4782969},
	}
}

func TestManager_SaveAndLoadRoundtrip(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	memories := map[string][]models.MemoryRecord{
		"retail": {{ID: "a", Content: "Hit call strike 630 at spot 628.86", Importance: 0.7, Timestamp: time.Now(), References: 2}},
		"monkey": {{ID: "b", Content: "Failed to defend call strike 630", Importance: 0.6, Timestamp: time.Now()}},
	}

	dir, err := m.SaveSession(sampleState(), sampleStats(), memories)
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	for _, name := range []string{"game_state.json", "statistics.csv", "retail_memories.json", "monkey_memories.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	session, stats, err := m.LoadSession(filepath.Base(dir))
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if !reflect.DeepEqual(session.State, sampleState()) {
		t.Errorf("state roundtrip mismatch:\ngot  %+v\nwant %+v", session.State, sampleState())
	}
	if !reflect.DeepEqual(stats, sampleStats()) {
		t.Errorf("statistics roundtrip mismatch:\ngot  %+v\nwant %+v", stats, sampleStats())
	}
}

func TestManager_SessionDirsNeverCollide(t *testing.T) {
	fixed := time.Date(2025, 8, 7, 12, 0, 0, 0, time.UTC)
	m, err := NewManager(t.TempDir(), WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatal(err)
	}

	a, err := m.SaveSession(sampleState(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.SaveSession(sampleState(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("same-second saves must land in different dirs: %s", a)
	}
	for _, dir := range []string{a, b} {
		if !strings.HasPrefix(filepath.Base(dir), "20250807_120000_") {
			t.Errorf("dir %s should carry the session timestamp", dir)
		}
	}
}

func TestManager_ListSessions(t *testing.T) {
	base := t.TempDir()
	m, err := NewManager(base)
	if err != nil {
		t.Fatal(err)
	}

	if got := m.ListSessions(); len(got) != 0 {
		t.Fatalf("expected no sessions, got %v", got)
	}

	if _, err := m.SaveSession(sampleState(), sampleStats(), nil); err != nil {
		t.Fatal(err)
	}
	// A stray directory without a state file is skipped.
	if err := os.MkdirAll(filepath.Join(base, "scratch"), 0o755); err != nil {
		t.Fatal(err)
	}

	sessions := m.ListSessions()
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].SpotPrice != 628.86 || sessions[0].Frame != 5 {
		t.Errorf("unexpected summary: %+v", sessions[0])
	}
}

func TestManager_LoadMissingSession(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.LoadSession("20990101_000000_deadbeef"); err == nil {
		t.Error("expected error for missing session")
	}
}

func TestManager_NoStrayTempFiles(t *testing.T) {
	base := t.TempDir()
	m, err := NewManager(base)
	if err != nil {
		t.Fatal(err)
	}
	dir, err := m.SaveSession(sampleState(), sampleStats(), map[string][]models.MemoryRecord{"retail": nil})
	if err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("stray temp file %s", entry.Name())
		}
	}
}
