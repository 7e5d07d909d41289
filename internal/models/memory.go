package models

import (
	"errors"
	"time"
)

// MemoryRecord is one entry in an agent's episodic log. References counts how
// often the record was considered during retrieval; it feeds curation scoring
// and is the only field mutated after creation.
type MemoryRecord struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Importance float64   `json:"importance"`
	Timestamp  time.Time `json:"timestamp"`
	References int       `json:"references"`
}

// Validate checks that all memory fields are valid.
func (m *MemoryRecord) Validate() error {
	if m.Content == "" {
		return errors.New("memory content must not be empty")
	}
	if m.Importance < 0 || m.Importance > 1 {
		return errors.New("memory importance must be between 0.0 and 1.0")
	}
	if m.References < 0 {
		return errors.New("memory references must not be negative")
	}
	return nil
}

// MemoryContext carries the retrieval cues a caller knows about the current
// situation. Zero values disable the corresponding relevance bonus.
type MemoryContext struct {
	StrikePrice   int
	SpotPrice     float64
	RecentSuccess bool
}
