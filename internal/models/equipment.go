package models

import (
	"errors"
	"fmt"
)

// Option types a piece of equipment can launch.
const (
	OptionCall = "call"
	OptionPut  = "put"
)

// Equipment is a named slingshot configuration. Power scales flight speed and
// arc height, accuracy narrows the per-tick jitter, DTE (days to expiry) sets
// the coconut's frame budget, and StrikeBias shifts which strikes the
// fast-path target ranking prefers.
type Equipment struct {
	Name       string  `json:"name" yaml:"name"`
	Power      float64 `json:"power" yaml:"power"`
	Accuracy   float64 `json:"accuracy" yaml:"accuracy"`
	DTE        int     `json:"dte" yaml:"dte"`
	OptionType string  `json:"option_type" yaml:"option_type"`
	Color      string  `json:"color" yaml:"color"`
	Size       int     `json:"size" yaml:"size"`
	StrikeBias int     `json:"strike_bias" yaml:"strike_bias"`
}

// Validate checks that all equipment fields are valid.
func (e *Equipment) Validate() error {
	if e.Name == "" {
		return errors.New("equipment name must not be empty")
	}
	if e.Power <= 0 {
		return fmt.Errorf("equipment %s: power must be positive", e.Name)
	}
	if e.Accuracy < 0 || e.Accuracy > 1 {
		return fmt.Errorf("equipment %s: accuracy must be between 0.0 and 1.0", e.Name)
	}
	if e.DTE < 1 {
		return fmt.Errorf("equipment %s: dte must be at least 1", e.Name)
	}
	if e.OptionType != OptionCall && e.OptionType != OptionPut {
		return fmt.Errorf("equipment %s: option_type must be %q or %q", e.Name, OptionCall, OptionPut)
	}
	return nil
}

// Portfolio is the fixed equipment catalog plus the default selection.
type Portfolio struct {
	Slingshots       []Equipment `json:"slingshots" yaml:"slingshots"`
	DefaultSlingshot string      `json:"default_slingshot" yaml:"default_slingshot"`
}

// Validate checks the catalog is non-empty, internally valid, and that the
// default selection names a catalog member.
func (p *Portfolio) Validate() error {
	if len(p.Slingshots) == 0 {
		return errors.New("portfolio must contain at least one slingshot")
	}
	names := make(map[string]bool, len(p.Slingshots))
	for i := range p.Slingshots {
		if err := p.Slingshots[i].Validate(); err != nil {
			return err
		}
		if names[p.Slingshots[i].Name] {
			return fmt.Errorf("duplicate slingshot name: %s", p.Slingshots[i].Name)
		}
		names[p.Slingshots[i].Name] = true
	}
	if !names[p.DefaultSlingshot] {
		return fmt.Errorf("default_slingshot %q is not in the catalog", p.DefaultSlingshot)
	}
	return nil
}

// Find returns the catalog entry with the given name, or false.
func (p *Portfolio) Find(name string) (Equipment, bool) {
	for _, s := range p.Slingshots {
		if s.Name == name {
			return s, true
		}
	}
	return Equipment{}, false
}

// DefaultPortfolio returns the built-in catalog used when no portfolio file
// is configured.
func DefaultPortfolio() Portfolio {
	return Portfolio{
		Slingshots: []Equipment{
			{Name: "standard", Power: 1.0, Accuracy: 0.80, DTE: 5, OptionType: OptionCall, Color: "brown", Size: 10, StrikeBias: 2},
			{Name: "sniper", Power: 0.8, Accuracy: 0.95, DTE: 3, OptionType: OptionCall, Color: "green", Size: 8, StrikeBias: 5},
			{Name: "bazooka", Power: 1.5, Accuracy: 0.60, DTE: 10, OptionType: OptionCall, Color: "red", Size: 14, StrikeBias: 8},
			{Name: "put-lobber", Power: 1.0, Accuracy: 0.80, DTE: 5, OptionType: OptionPut, Color: "blue", Size: 10, StrikeBias: -2},
			{Name: "put-mortar", Power: 1.3, Accuracy: 0.70, DTE: 7, OptionType: OptionPut, Color: "purple", Size: 12, StrikeBias: -5},
		},
		DefaultSlingshot: "standard",
	}
}
