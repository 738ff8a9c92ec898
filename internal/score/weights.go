package score

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Weights is the scoring policy document. Every threshold and point
// value the detectors use lives here so the policy can change without
// touching detector logic. Missing keys keep the defaults below.
type Weights struct {
	Recency struct {
		HalfLifeHours            float64 `yaml:"half_life_hours"`
		AgePenaltyAfter24h       float64 `yaml:"age_penalty_after_24h"`
		AgePenaltyAfter36h       float64 `yaml:"age_penalty_after_36h"`
		SupersededClusterPenalty float64 `yaml:"superseded_cluster_penalty"`
	} `yaml:"recency"`

	Categories map[string]float64 `yaml:"categories"`

	Sources struct {
		AggregatorPenalty     float64 `yaml:"aggregator_penalty"`
		PressWirePenalty      float64 `yaml:"press_wire_penalty"`
		PreferredDomainsBonus float64 `yaml:"preferred_domains_bonus"`
	} `yaml:"sources"`

	PublicSafety struct {
		HasFatalityPoints    float64  `yaml:"has_fatality_points"`
		PerDeathPoints       float64  `yaml:"per_death_points"`
		MaxDeathPoints       float64  `yaml:"max_death_points"`
		PerInjuredPoints     float64  `yaml:"per_injured_points"`
		MaxInjuryPoints      float64  `yaml:"max_injury_points"`
		ViolentKeywordsBonus float64  `yaml:"violent_keywords_bonus"`
		ViolentKeywords      []string `yaml:"violent_keywords"`
	} `yaml:"public_safety"`

	Markets struct {
		BTCAbsMoveThresholdPct         float64 `yaml:"btc_abs_move_threshold_pct"`
		BTCPoints                      float64 `yaml:"btc_points"`
		IndexAbsMoveThresholdPct       float64 `yaml:"index_abs_move_threshold_pct"`
		IndexPoints                    float64 `yaml:"index_points"`
		NikkeiAbsMoveThresholdPct      float64 `yaml:"nikkei_abs_move_threshold_pct"`
		NikkeiPoints                   float64 `yaml:"nikkei_points"`
		SingleStockAbsMoveThresholdPct float64 `yaml:"single_stock_abs_move_threshold_pct"`
		SingleStockPoints              float64 `yaml:"single_stock_points"`
	} `yaml:"markets"`

	Regional struct {
		CountryMatch float64 `yaml:"country_match"`
		MaxBonus     float64 `yaml:"max_bonus"`
	} `yaml:"regional"`

	Sports struct {
		FranchiseKeywords []string `yaml:"franchise_keywords"`
		FranchisePoints   float64  `yaml:"franchise_points"`
		// Bonus applies only when the run's UTC hour is inside
		// [ActiveHourStart, ActiveHourEnd); a wrapped window
		// (start > end) crosses midnight. Equal values disable the gate.
		ActiveHourStartUTC int `yaml:"active_hour_start_utc"`
		ActiveHourEndUTC   int `yaml:"active_hour_end_utc"`
	} `yaml:"sports"`

	Effects struct {
		LightsaberMinScore         float64  `yaml:"lightsaber_min_score"`
		LightsaberBodyCountGE      int      `yaml:"lightsaber_body_count_ge"`
		LightsaberBTCMoveGEPct     float64  `yaml:"lightsaber_btc_move_ge_pct"`
		LightsaberSingleStockGEPct float64  `yaml:"lightsaber_single_stock_move_ge_pct"`
		GlitchMinScore             float64  `yaml:"glitch_min_score"`
		ForceGlitchHosts           []string `yaml:"force_glitch_hosts"`
		ForceGlitchDecayHours      float64  `yaml:"force_glitch_decay_hours"`
	} `yaml:"effects"`

	Dedup struct {
		JaccardThreshold  float64 `yaml:"jaccard_threshold"`
		RecapWindowHours  float64 `yaml:"recap_window_hours"`
		BackfillThreshold float64 `yaml:"backfill_threshold"`
	} `yaml:"dedup"`
}

// DefaultWeights returns the reference policy values.
func DefaultWeights() Weights {
	var w Weights
	w.Recency.HalfLifeHours = 6
	w.Recency.AgePenaltyAfter24h = -0.6
	w.Recency.AgePenaltyAfter36h = -0.4
	w.Recency.SupersededClusterPenalty = -0.9

	w.Categories = map[string]float64{}

	w.Sources.AggregatorPenalty = -0.5
	w.Sources.PressWirePenalty = -0.4
	w.Sources.PreferredDomainsBonus = 0.25

	w.PublicSafety.HasFatalityPoints = 1.0
	w.PublicSafety.PerDeathPoints = 0.10
	w.PublicSafety.MaxDeathPoints = 2.0
	w.PublicSafety.PerInjuredPoints = 0.02
	w.PublicSafety.MaxInjuryPoints = 0.6
	w.PublicSafety.ViolentKeywordsBonus = 0.2

	w.Markets.BTCAbsMoveThresholdPct = 7.0
	w.Markets.BTCPoints = 1.6
	w.Markets.IndexAbsMoveThresholdPct = 1.0
	w.Markets.IndexPoints = 1.0
	w.Markets.NikkeiAbsMoveThresholdPct = 1.0
	w.Markets.NikkeiPoints = 0.7
	w.Markets.SingleStockAbsMoveThresholdPct = 10.0
	w.Markets.SingleStockPoints = 1.2

	w.Regional.CountryMatch = 1.2
	w.Regional.MaxBonus = 2.4

	w.Sports.FranchiseKeywords = []string{"blue jays", "maple leafs", "raptors"}
	w.Sports.FranchisePoints = 0.8

	w.Effects.LightsaberMinScore = 2.5
	w.Effects.LightsaberBodyCountGE = 5
	w.Effects.LightsaberBTCMoveGEPct = 8.0
	w.Effects.LightsaberSingleStockGEPct = 15.0
	w.Effects.GlitchMinScore = 1.8
	w.Effects.ForceGlitchHosts = []string{"www.drudgereport.com", "drudgereport.com"}
	w.Effects.ForceGlitchDecayHours = 6

	w.Dedup.JaccardThreshold = 0.82
	w.Dedup.RecapWindowHours = 12
	w.Dedup.BackfillThreshold = 0.90
	return w
}

// LoadStatus reports how the weights document was resolved, for the
// debug block.
type LoadStatus struct {
	Loaded bool     `json:"weights_loaded"`
	Keys   []string `json:"weights_keys"`
	Error  string   `json:"weights_error,omitempty"`
	Path   string   `json:"weights_path"`
}

// LoadWeights reads a YAML policy file over the defaults. A missing or
// broken file is not fatal: the defaults apply and the status records
// what happened.
func LoadWeights(path string) (Weights, LoadStatus) {
	w := DefaultWeights()
	status := LoadStatus{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			status.Error = "missing"
		} else {
			status.Error = err.Error()
		}
		return w, status
	}

	if err := yaml.Unmarshal(data, &w); err != nil {
		status.Error = fmt.Sprintf("yaml: %v", err)
		return DefaultWeights(), status
	}

	var top map[string]any
	if err := yaml.Unmarshal(data, &top); err == nil {
		for k := range top {
			status.Keys = append(status.Keys, k)
		}
		sort.Strings(status.Keys)
	}
	status.Loaded = true
	return w, status
}
