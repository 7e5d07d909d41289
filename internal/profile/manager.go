// Package profile manages the behavioral profiles that parameterize agent
// scoring. Profiles are YAML files named <role>_<name>.yaml in a single
// directory; each role has one active profile at a time, swappable at
// runtime. A missing directory or profile is never fatal: agents fall back
// to their fixed default weights.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/monkeyball/internal/logger"
	"github.com/rewired-gh/monkeyball/internal/models"
)

// Provider supplies behavioral profiles per agent role. Implemented by
// Manager; agents depend on this interface so tests can substitute fixtures.
type Provider interface {
	// Active returns the current profile for the role, or nil when none is loaded.
	Active(role string) *models.AgentProfile
	// WeightsFor returns the active profile's behavior weights with bias
	// adjustments applied and renormalized to sum to 1. Returns nil when no
	// profile is active.
	WeightsFor(role string, sig models.Signals) map[string]float64
	// List returns the available profile names for a role, sorted.
	List(role string) []string
	// Switch activates the named profile for a role. Returns false when the
	// profile does not exist.
	Switch(role string, name string) bool
}

// Manager loads and hot-swaps profiles from a directory.
type Manager struct {
	profiles map[string]map[string]*models.AgentProfile // role -> name -> profile
	active   map[string]string                          // role -> name
}

// NewManager loads every <role>_*.yaml profile under dir and activates the
// named ones. Load errors for individual files are logged and skipped; an
// absent directory yields an empty manager.
func NewManager(dir, activeRetail, activeMonkey string) *Manager {
	m := &Manager{
		profiles: map[string]map[string]*models.AgentProfile{
			models.RoleRetail: {},
			models.RoleMonkey: {},
		},
		active: map[string]string{
			models.RoleRetail: activeRetail,
			models.RoleMonkey: activeMonkey,
		},
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("profile: cannot read directory %s: %v", dir, err)
		return m
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		role, name, ok := splitProfileFile(entry.Name())
		if !ok {
			continue
		}
		p, err := loadProfile(filepath.Join(dir, entry.Name()), role)
		if err != nil {
			logger.Warn("profile: skipping %s: %v", entry.Name(), err)
			continue
		}
		m.profiles[role][name] = p
	}

	logger.Info("profile: loaded %d retail and %d monkey profiles from %s",
		len(m.profiles[models.RoleRetail]), len(m.profiles[models.RoleMonkey]), dir)
	return m
}

// splitProfileFile parses "<role>_<name>.yaml" into its parts.
func splitProfileFile(filename string) (role, name string, ok bool) {
	ext := filepath.Ext(filename)
	if ext != ".yaml" && ext != ".yml" {
		return "", "", false
	}
	base := strings.TrimSuffix(filename, ext)
	for _, r := range []string{models.RoleRetail, models.RoleMonkey} {
		if strings.HasPrefix(base, r+"_") {
			return r, strings.TrimPrefix(base, r+"_"), true
		}
	}
	return "", "", false
}

func loadProfile(path, role string) (*models.AgentProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	var p models.AgentProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if p.Role == "" {
		p.Role = role
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return &p, nil
}

// Active returns the current profile for the role, or nil.
func (m *Manager) Active(role string) *models.AgentProfile {
	byName, ok := m.profiles[role]
	if !ok {
		return nil
	}
	return byName[m.active[role]]
}

// List returns the available profile names for a role, sorted ascending.
func (m *Manager) List(role string) []string {
	byName, ok := m.profiles[role]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Switch activates the named profile for a role.
func (m *Manager) Switch(role string, name string) bool {
	byName, ok := m.profiles[role]
	if !ok {
		return false
	}
	if _, ok := byName[name]; !ok {
		return false
	}
	m.active[role] = name
	logger.Info("profile: %s now using %q", role, name)
	return true
}

// Bias trigger thresholds. A bias fires when the corresponding signal
// exceeds its threshold, multiplying one weight entry by (1 + bias).
const (
	successRateTrigger = 0.5
	crowdSizeTrigger   = 3
	lossRateTrigger    = 0.3
	clusteringTrigger  = 0.5
)

// WeightsFor applies the active profile's biases to its base weights given
// the current signals, then renormalizes so the weights sum to 1. A zero
// total skips normalization. Returns nil when no profile is active.
func (m *Manager) WeightsFor(role string, sig models.Signals) map[string]float64 {
	p := m.Active(role)
	if p == nil {
		return nil
	}

	weights := make(map[string]float64, len(p.BehaviorWeights))
	for k, v := range p.BehaviorWeights {
		weights[k] = v
	}

	switch role {
	case models.RoleRetail:
		if sig.RecentSuccessRate > successRateTrigger {
			weights["spot_distance"] *= 1 + p.Biases["overconfidence"]
		}
		if sig.CrowdSize > crowdSizeTrigger {
			weights["crowd_following"] *= 1 + p.Biases["herd_mentality"]
		}
	case models.RoleMonkey:
		if sig.RecentLossRate > lossRateTrigger {
			weights["spot_distance"] *= 1 + p.Biases["loss_aversion"]
		}
		if sig.RetailClustering > clusteringTrigger {
			weights["retail_clustering"] *= 1 + p.Biases["recency"]
		}
	}

	var total float64
	for _, v := range weights {
		total += v
	}
	if total > 0 {
		for k := range weights {
			weights[k] /= total
		}
	}
	return weights
}
