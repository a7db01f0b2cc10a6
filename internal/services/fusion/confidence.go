package fusion

import (
	"sort"
	"strings"

	"FlowRadar/internal/domain/models"
)

// Modifier source labels recorded in the audit log.
const (
	SourceResonance  = "resonance"
	SourceConflict   = "conflict"
	SourceTypeCombo  = "type_combo"
	SourcePenalty    = "conflict_penalty"
	SourceUnresolved = "unresolved_conflict"
)

// ModifierConfig tunes the confidence adjustment stage.
type ModifierConfig struct {
	ResonanceStep float64 // per same-side related signal
	ResonanceCap  float64 // total boost ceiling
	ConflictStep  float64 // per opposite-side related signal, negative
	ConflictCap   float64 // total penalty floor, negative
	// ComboBonus maps a sorted, comma-joined set of distinct signal types to
	// a bonus. Absent combinations contribute 0.
	ComboBonus map[string]float64
}

// DefaultModifierConfig mirrors the operational defaults.
func DefaultModifierConfig() ModifierConfig {
	combos := make(map[string]float64, 4)
	combos[ComboKey(models.TypeIceberg, models.TypeWhale)] = 10
	combos[ComboKey(models.TypeIceberg, models.TypeLiquidation)] = 15
	combos[ComboKey(models.TypeWhale, models.TypeLiquidation)] = 20
	combos[ComboKey(models.TypeIceberg, models.TypeWhale, models.TypeLiquidation)] = 30
	return ModifierConfig{
		ResonanceStep: 5,
		ResonanceCap:  25,
		ConflictStep:  -5,
		ConflictCap:   -10,
		ComboBonus:    combos,
	}
}

// ComboKey canonicalizes a set of types into a lookup key.
func ComboKey(types ...models.SignalType) string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Modifier recomputes each signal's confidence from its correlation
// relations. It is pure and idempotent: every pass starts from the stored
// base confidence, so re-running on an unmodified batch changes nothing.
type Modifier struct {
	cfg ModifierConfig
}

// NewModifier builds the stage. Zero config fields take defaults.
func NewModifier(cfg ModifierConfig) *Modifier {
	def := DefaultModifierConfig()
	if cfg.ResonanceStep == 0 {
		cfg.ResonanceStep = def.ResonanceStep
	}
	if cfg.ResonanceCap == 0 {
		cfg.ResonanceCap = def.ResonanceCap
	}
	if cfg.ConflictStep == 0 {
		cfg.ConflictStep = def.ConflictStep
	}
	if cfg.ConflictCap == 0 {
		cfg.ConflictCap = def.ConflictCap
	}
	if cfg.ComboBonus == nil {
		cfg.ComboBonus = def.ComboBonus
	}
	return &Modifier{cfg: cfg}
}

// fusionSources are the labels this stage and the conflict resolver own.
// They are stripped on recompute so adjustments never accumulate.
var fusionSources = map[string]struct{}{
	SourceResonance:  {},
	SourceConflict:   {},
	SourceTypeCombo:  {},
	SourcePenalty:    {},
	SourceUnresolved: {},
}

// Apply adjusts every event in place: resonance boost for same-direction
// related signals, conflict penalty for opposite-direction ones, and a bonus
// for corroborating type combinations. Each non-zero contribution lands in
// the modifier log; the three adjustments are summed and the confidence is
// clamped once, so a boost past the ceiling still leaves headroom a penalty
// in the same pass can draw down.
func (m *Modifier) Apply(events []*models.SignalEvent, relations Relations) {
	index := make(map[string]*models.SignalEvent, len(events))
	for _, ev := range events {
		index[ev.Key] = ev
	}

	for _, ev := range events {
		carried := m.reset(ev)

		var same, opposite int
		types := map[models.SignalType]struct{}{ev.Type: {}}
		for _, key := range relations[ev.Key] {
			rel, ok := index[key]
			if !ok {
				continue
			}
			if rel.Side == ev.Side {
				same++
			} else {
				opposite++
			}
			types[rel.Type] = struct{}{}
		}

		var sum float64
		if same > 0 {
			boost := float64(same) * m.cfg.ResonanceStep
			if boost > m.cfg.ResonanceCap {
				boost = m.cfg.ResonanceCap
			}
			ev.LogModifier(SourceResonance, boost)
			sum += boost
		}
		if opposite > 0 {
			penalty := float64(opposite) * m.cfg.ConflictStep
			if penalty < m.cfg.ConflictCap {
				penalty = m.cfg.ConflictCap
			}
			ev.LogModifier(SourceConflict, penalty)
			sum += penalty
		}
		if len(types) > 1 {
			distinct := make([]models.SignalType, 0, len(types))
			for t := range types {
				distinct = append(distinct, t)
			}
			if bonus, ok := m.cfg.ComboBonus[ComboKey(distinct...)]; ok && bonus != 0 {
				ev.LogModifier(SourceTypeCombo, bonus)
				sum += bonus
			}
		}
		ev.Confidence = models.ClampConfidence(ev.BaseConfidence + carried + sum)
	}
}

// reset rewinds an event to its base confidence and drops any previous
// fusion-stage log entries, keeping detector-originated entries intact.
// It returns the total of the kept deltas so Apply can clamp a single time.
func (m *Modifier) reset(ev *models.SignalEvent) float64 {
	if ev.BaseConfidence == 0 && len(ev.Modifiers) == 0 {
		ev.BaseConfidence = ev.Confidence
	}
	kept := ev.Modifiers[:0]
	total := 0.0
	for _, entry := range ev.Modifiers {
		if _, owned := fusionSources[entry.Source]; owned {
			continue
		}
		kept = append(kept, entry)
		total += entry.Delta
	}
	ev.Modifiers = kept
	ev.Confidence = models.ClampConfidence(ev.BaseConfidence + total)
	return total
}
