package fusion

import (
	"sort"

	"FlowRadar/internal/domain/models"
)

// DefaultRank is assigned to any level or type absent from the rank tables,
// so unknown categories always sort last instead of crashing.
const DefaultRank = 99

// PriorityConfig is the single source of truth for signal ordering. It is
// immutable after construction and explicitly injected into every component
// that ranks signals.
type PriorityConfig struct {
	levelRank map[models.SignalLevel]int
	typeRank  map[models.SignalType]int
}

// NewPriorityConfig builds a priority table from explicit rank maps. Nil maps
// fall back to the defaults.
func NewPriorityConfig(levelRank map[models.SignalLevel]int, typeRank map[models.SignalType]int) *PriorityConfig {
	p := DefaultPriorityConfig()
	if levelRank != nil {
		p.levelRank = levelRank
	}
	if typeRank != nil {
		p.typeRank = typeRank
	}
	return p
}

// DefaultPriorityConfig returns the standard ranking: liquidations are
// already-realized forced events, large confirmed trades are realized but
// less certain, inferred order-book patterns are probabilistic, and
// environment signals are advisory.
func DefaultPriorityConfig() *PriorityConfig {
	return &PriorityConfig{
		levelRank: map[models.SignalLevel]int{
			models.LevelCritical:  1,
			models.LevelConfirmed: 2,
			models.LevelWarning:   3,
			models.LevelActivity:  4,
		},
		typeRank: map[models.SignalType]int{
			models.TypeLiquidation: 1,
			models.TypeWhale:       2,
			models.TypeIceberg:     3,
			models.TypeKGod:        4,
		},
	}
}

// LevelRank returns the rank of a level, DefaultRank when unmapped.
func (p *PriorityConfig) LevelRank(level models.SignalLevel) int {
	if r, ok := p.levelRank[level]; ok {
		return r
	}
	return DefaultRank
}

// TypeRank returns the rank of a type, DefaultRank when unmapped.
func (p *PriorityConfig) TypeRank(typ models.SignalType) int {
	if r, ok := p.typeRank[typ]; ok {
		return r
	}
	return DefaultRank
}

// SortKey is the 3-tuple every ordering decision derives from. Lower tuples
// sort first. Newer signals beat older ones at equal rank.
type SortKey struct {
	LevelRank int
	TypeRank  int
	NegTS     float64
}

// SortKey derives the ordering tuple for an event.
func (p *PriorityConfig) SortKey(e *models.SignalEvent) SortKey {
	return SortKey{
		LevelRank: p.LevelRank(e.Level),
		TypeRank:  p.TypeRank(e.Type),
		NegTS:     -e.TS,
	}
}

// Less reports whether k sorts before o.
func (k SortKey) Less(o SortKey) bool {
	if k.LevelRank != o.LevelRank {
		return k.LevelRank < o.LevelRank
	}
	if k.TypeRank != o.TypeRank {
		return k.TypeRank < o.TypeRank
	}
	return k.NegTS < o.NegTS
}

// Equal reports whether two keys order identically.
func (k SortKey) Equal(o SortKey) bool {
	return k.LevelRank == o.LevelRank && k.TypeRank == o.TypeRank && k.NegTS == o.NegTS
}

// Compare orders two events: -1 when a ranks before b, 1 when after, 0 on tie.
func (p *PriorityConfig) Compare(a, b *models.SignalEvent) int {
	ka, kb := p.SortKey(a), p.SortKey(b)
	switch {
	case ka.Less(kb):
		return -1
	case kb.Less(ka):
		return 1
	default:
		return 0
	}
}

// Sort orders events in place by priority, stable so equal-key events keep
// arrival order.
func (p *PriorityConfig) Sort(events []*models.SignalEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return p.SortKey(events[i]).Less(p.SortKey(events[j]))
	})
}
