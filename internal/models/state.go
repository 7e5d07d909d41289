package models

// GameState is the precisely-typed per-tick snapshot the engine hands to
// agents and external consumers (UI, save files). It is a value copy: maps
// are cloned at snapshot time, so holders may read it while the next tick
// runs but must never treat it as live.
type GameState struct {
	SpotPrice   float64         `json:"spot_price"`
	Strikes     []int           `json:"strikes"`
	TreeHits    map[int]int     `json:"tree_hits"`
	RetailJuice map[int]float64 `json:"retail_juice"`
	MMJuice     map[int]float64 `json:"mm_juice"`
	Frame       int             `json:"frame"`
	Equipment   string          `json:"current_slingshot"`
	OptionType  string          `json:"option_type"`
}

// StatRow is one per-strike line of the exported statistics table.
type StatRow struct {
	Strike      int     `json:"strike"`
	Hits        int     `json:"hits"`
	RetailJuice float64 `json:"retail_juice"`
	MMJuice     float64 `json:"mm_juice"`
	Gamma       float64 `json:"gamma"`
}

// Signals are the derived psychological metrics an agent computes from the
// game state and its own rolling history before asking for profile-adjusted
// weights. Each role reads the fields relevant to it.
type Signals struct {
	RecentSuccessRate float64 // retail: share of hits in the last 5 attempts
	CrowdSize         int     // retail: largest per-strike crowd estimate
	RecentLossRate    float64 // monkey: share of failed defenses in the last 5
	RetailClustering  float64 // monkey: highest per-strike clustering score
}

// Target is one entry of the fast-path target ranking a market provider can
// offer for a piece of equipment.
type Target struct {
	Strike         int     `json:"strike"`
	Attractiveness float64 `json:"attractiveness"`
	OptionType     string  `json:"option_type"`
	DTE            int     `json:"dte"`
}
