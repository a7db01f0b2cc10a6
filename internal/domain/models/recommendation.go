package models

import "time"

// Advice is the 5-level aggregate directional call for one symbol.
type Advice string

const (
	AdviceStrongBuy  Advice = "STRONG_BUY"
	AdviceBuy        Advice = "BUY"
	AdviceWatch      Advice = "WATCH"
	AdviceSell       Advice = "SELL"
	AdviceStrongSell Advice = "STRONG_SELL"
)

// SignalBreakdown is one signal's contribution to a recommendation,
// carrying its final confidence and the full adjustment log for audit.
type SignalBreakdown struct {
	Key        string          `json:"key"`
	Type       SignalType      `json:"type"`
	Level      SignalLevel     `json:"level"`
	Side       SignalSide      `json:"side"`
	Confidence float64         `json:"confidence"`
	Weight     float64         `json:"weight"`
	Modifiers  []ModifierEntry `json:"confidence_modifier,omitempty"`
}

// Recommendation is the Bundle Advisor's aggregate output for one symbol.
type Recommendation struct {
	Symbol     string            `json:"symbol"`
	Advice     Advice            `json:"advice"`
	Confidence float64           `json:"confidence"`
	BuyScore   float64           `json:"buy_score"`
	SellScore  float64           `json:"sell_score"`
	Ratio      float64           `json:"ratio"`
	Rationale  string            `json:"rationale"`
	Breakdown  []SignalBreakdown `json:"breakdown,omitempty"`
	Generated  time.Time         `json:"generated_at"`
}

// PipelineResult is the read-only tuple handed to downstream notifiers:
// the conflict-resolved ranked batch plus one recommendation.
type PipelineResult struct {
	Symbol         string          `json:"symbol"`
	Signals        []*SignalEvent  `json:"signals"`
	Recommendation *Recommendation `json:"recommendation"`
	Unresolved     int             `json:"unresolved_conflicts"`
	Elapsed        time.Duration   `json:"-"`
	ElapsedMS      float64         `json:"elapsed_ms"`
}

// StoreStats reports the manager's current composition.
type StoreStats struct {
	Size       int                 `json:"size"`
	Capacity   int                 `json:"capacity"`
	ByLevel    map[SignalLevel]int `json:"by_level"`
	ByType     map[SignalType]int  `json:"by_type"`
	BySide     map[SignalSide]int  `json:"by_side"`
	Suppressed int64               `json:"suppressed_total"`
	Evicted    int64               `json:"evicted_total"`
}

// FusionStats accumulates correlation engine counters over a pipeline run.
type FusionStats struct {
	PairsChecked   int `json:"pairs_checked"`
	PairsFiltered  int `json:"pairs_filtered"`
	RelationsFound int `json:"relations_found"`
}

// ConflictStats accumulates conflict resolver counters over a pipeline run.
type ConflictStats struct {
	ConflictsDetected int `json:"conflicts_detected"`
	ConflictsResolved int `json:"conflicts_resolved"`
	Unresolved        int `json:"unresolved"`
	Penalized         int `json:"signals_penalized"`
}
