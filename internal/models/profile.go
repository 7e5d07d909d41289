package models

import (
	"errors"
	"fmt"
)

// Agent roles. The retail role picks strikes to attack; the monkey role
// predicts which strikes to defend.
const (
	RoleRetail = "retail"
	RoleMonkey = "monkey"
)

// TraitValue is a profile trait: either a threshold in [0,1] or an on/off
// switch. Exactly one of the two fields is meaningful, selected by IsBool.
type TraitValue struct {
	Number float64 `yaml:"number" json:"number"`
	Bool   bool    `yaml:"bool" json:"bool"`
	IsBool bool    `yaml:"is_bool" json:"is_bool"`
}

// UnmarshalYAML accepts either a bare number or a bare boolean, matching how
// profile files are written.
func (t *TraitValue) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var b bool
	if err := unmarshal(&b); err == nil {
		t.Bool = b
		t.IsBool = true
		return nil
	}
	var f float64
	if err := unmarshal(&f); err != nil {
		return err
	}
	t.Number = f
	t.IsBool = false
	return nil
}

// Threshold returns the numeric trait value, treating booleans as 0 or 1.
func (t TraitValue) Threshold() float64 {
	if t.IsBool {
		if t.Bool {
			return 1
		}
		return 0
	}
	return t.Number
}

// AgentProfile is a named behavioral profile: what the agent optimizes for,
// the traits and biases that condition its scoring, and the base weights of
// its scoring factors. Profiles are immutable once loaded; switching swaps
// the active reference per role.
type AgentProfile struct {
	Name            string                `yaml:"name" json:"name"`
	Role            string                `yaml:"role" json:"role"`
	Goal            string                `yaml:"goal" json:"goal"`
	Traits          map[string]TraitValue `yaml:"traits" json:"traits"`
	Strategies      []string              `yaml:"strategies" json:"strategies"`
	Biases          map[string]float64    `yaml:"biases" json:"biases"`
	BehaviorWeights map[string]float64    `yaml:"behavior_weights" json:"behavior_weights"`
}

// Validate checks that all profile fields are valid.
func (p *AgentProfile) Validate() error {
	if p.Name == "" {
		return errors.New("profile name must not be empty")
	}
	if p.Role != RoleRetail && p.Role != RoleMonkey {
		return fmt.Errorf("profile %s: role must be %q or %q", p.Name, RoleRetail, RoleMonkey)
	}
	if len(p.BehaviorWeights) == 0 {
		return fmt.Errorf("profile %s: behavior_weights must not be empty", p.Name)
	}
	for k, w := range p.BehaviorWeights {
		if w < 0 {
			return fmt.Errorf("profile %s: behavior weight %s must not be negative", p.Name, k)
		}
	}
	for k, b := range p.Biases {
		if b < 0 {
			return fmt.Errorf("profile %s: bias %s must not be negative", p.Name, k)
		}
	}
	return nil
}

// Trait returns the named trait's threshold, or 0 when absent.
func (p *AgentProfile) Trait(name string) float64 {
	if p == nil {
		return 0
	}
	return p.Traits[name].Threshold()
}

// TraitBool reports whether the named trait is an enabled boolean switch.
func (p *AgentProfile) TraitBool(name string) bool {
	if p == nil {
		return false
	}
	t, ok := p.Traits[name]
	return ok && t.IsBool && t.Bool
}
