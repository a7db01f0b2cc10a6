package fusion

import (
	"math"
	"sort"

	"FlowRadar/internal/domain/models"
)

// CorrelationConfig tunes the relation test. All values come from
// configuration; nothing here is hardcoded into the engine.
type CorrelationConfig struct {
	// WindowSeconds is the maximum timestamp distance, boundary inclusive.
	WindowSeconds float64
	// PriceTolerance is the relative price range expansion applied to a
	// signal's price when its type has no specific expansion.
	PriceTolerance float64
	// TypeExpansion widens or narrows the price range per signal type.
	TypeExpansion map[models.SignalType]float64
	// BucketPrecision is the decimal precision of the price-bucket prefilter.
	BucketPrecision int
}

// DefaultCorrelationConfig mirrors the operational defaults: 300s window,
// 0.1% tolerance, icebergs ±0.1%, whales ±0.05%, liquidations ±0.2%.
func DefaultCorrelationConfig() CorrelationConfig {
	return CorrelationConfig{
		WindowSeconds:  300,
		PriceTolerance: 0.001,
		TypeExpansion: map[models.SignalType]float64{
			models.TypeIceberg:     0.001,
			models.TypeWhale:       0.0005,
			models.TypeLiquidation: 0.002,
		},
		BucketPrecision: 3,
	}
}

// Relations maps a signal key to the keys of its correlated signals.
type Relations map[string][]string

// Engine finds which signals in a batch are related by time and price
// proximity. It is stateless; every call is independent.
type Engine struct {
	cfg   CorrelationConfig
	scale float64
}

// NewEngine builds a correlation engine. Zero config fields take defaults.
func NewEngine(cfg CorrelationConfig) *Engine {
	def := DefaultCorrelationConfig()
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = def.WindowSeconds
	}
	if cfg.PriceTolerance <= 0 {
		cfg.PriceTolerance = def.PriceTolerance
	}
	if cfg.TypeExpansion == nil {
		cfg.TypeExpansion = def.TypeExpansion
	}
	if cfg.BucketPrecision <= 0 {
		cfg.BucketPrecision = def.BucketPrecision
	}
	return &Engine{cfg: cfg, scale: math.Pow(10, float64(cfg.BucketPrecision))}
}

func (e *Engine) expansion(typ models.SignalType) float64 {
	if exp, ok := e.cfg.TypeExpansion[typ]; ok {
		return exp
	}
	return e.cfg.PriceTolerance
}

func (e *Engine) bucket(price float64) int64 {
	return int64(math.Round(price * e.scale))
}

// priceRange is an event's expanded [lo,hi] price band.
func (e *Engine) priceRange(ev *models.SignalEvent) (float64, float64) {
	exp := e.expansion(ev.Type)
	return ev.Price * (1 - exp), ev.Price * (1 + exp)
}

// related applies the full relation test: window (inclusive) plus expanded
// price range overlap. Side is intentionally not a condition; opposite-side
// correlated events are exactly what feeds the conflict resolver.
func (e *Engine) related(a, b *models.SignalEvent) bool {
	if math.Abs(a.TS-b.TS) > e.cfg.WindowSeconds {
		return false
	}
	aLo, aHi := e.priceRange(a)
	bLo, bHi := e.priceRange(b)
	return aLo <= bHi && bLo <= aHi
}

// bucketSpan is how many adjacent buckets an event's expanded range covers.
// Bands wider than a few buckets fall back to a linear window scan.
const maxBucketSpan = 4

func (e *Engine) span(ev *models.SignalEvent) int64 {
	radius := ev.Price * e.expansion(ev.Type)
	return int64(radius*e.scale) + 1
}

// Correlate links every pair of related signals in the batch. It groups by
// symbol, sorts each group by time, and slides a window so only candidates
// inside the correlation window are considered; a price-bucket prefilter
// keeps the per-event candidate set small. Related keys are appended to each
// event and also returned as an index for the downstream stages.
func (e *Engine) Correlate(events []*models.SignalEvent) (Relations, models.FusionStats) {
	relations := make(Relations, len(events))
	var stats models.FusionStats

	bySymbol := make(map[string][]*models.SignalEvent)
	for _, ev := range events {
		bySymbol[ev.Symbol] = append(bySymbol[ev.Symbol], ev)
	}

	for _, group := range bySymbol {
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].TS < group[j].TS })

		// Window members sit in price buckets; events whose expanded band
		// spans too many buckets for the prefilter go to a linear list.
		buckets := make(map[int64][]int)
		var wide []int
		start := 0
		check := func(ev *models.SignalEvent, j int) {
			stats.PairsChecked++
			if e.related(ev, group[j]) {
				e.link(relations, ev, group[j])
				stats.RelationsFound++
			} else {
				stats.PairsFiltered++
			}
		}
		for i, ev := range group {
			for start < i && group[i].TS-group[start].TS > e.cfg.WindowSeconds {
				old := group[start]
				b := e.bucket(old.Price)
				for n, idx := range buckets[b] {
					if idx == start {
						buckets[b] = append(buckets[b][:n], buckets[b][n+1:]...)
						break
					}
				}
				for n, idx := range wide {
					if idx == start {
						wide = append(wide[:n], wide[n+1:]...)
						break
					}
				}
				start++
			}

			span := e.span(ev)
			if span <= maxBucketSpan {
				// Offsets cover this event's span plus the widest span a
				// bucketed neighbor can have, so no overlapping pair is
				// filtered out.
				b := e.bucket(ev.Price)
				for off := -(span + maxBucketSpan); off <= span+maxBucketSpan; off++ {
					for _, j := range buckets[b+off] {
						check(ev, j)
					}
				}
				for _, j := range wide {
					check(ev, j)
				}
				buckets[b] = append(buckets[b], i)
			} else {
				for j := start; j < i; j++ {
					check(ev, j)
				}
				wide = append(wide, i)
			}
		}
	}
	return relations, stats
}

func (e *Engine) link(relations Relations, a, b *models.SignalEvent) {
	a.AddRelated(b.Key)
	b.AddRelated(a.Key)
	relations[a.Key] = appendUnique(relations[a.Key], b.Key)
	relations[b.Key] = appendUnique(relations[b.Key], a.Key)
}

func appendUnique(keys []string, key string) []string {
	for _, k := range keys {
		if k == key {
			return keys
		}
	}
	return append(keys, key)
}
