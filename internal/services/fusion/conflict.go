package fusion

import (
	"FlowRadar/internal/domain/models"
)

// ResolverConfig tunes the conflict penalties. Both are policy choices, so
// they come from configuration rather than being hardcoded.
type ResolverConfig struct {
	// LoserPenalty is subtracted from every signal on the losing side of a
	// resolved conflict.
	LoserPenalty float64
	// UnresolvedPenalty is subtracted from both champions of a full tie.
	UnresolvedPenalty float64
}

// DefaultResolverConfig returns the standard -10/-10 penalties.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{LoserPenalty: 10, UnresolvedPenalty: 10}
}

// Resolver applies the priority matrix to directionally opposed signals.
// It is a pure function of (events, relations); no state survives a call.
type Resolver struct {
	cfg      ResolverConfig
	priority *PriorityConfig
}

// NewResolver builds the stage. Zero penalties take defaults.
func NewResolver(cfg ResolverConfig, priority *PriorityConfig) *Resolver {
	def := DefaultResolverConfig()
	if cfg.LoserPenalty == 0 {
		cfg.LoserPenalty = def.LoserPenalty
	}
	if cfg.UnresolvedPenalty == 0 {
		cfg.UnresolvedPenalty = def.UnresolvedPenalty
	}
	if priority == nil {
		priority = DefaultPriorityConfig()
	}
	return &Resolver{cfg: cfg, priority: priority}
}

// Resolve walks the correlation graph, merges opposing-side edges into
// transitive conflict groups, and applies the matrix to each group:
//
//  1. the side holding the lower type rank wins outright regardless of level
//  2. on a type tie, the lower level rank wins
//  3. on a level tie, the higher confidence wins
//  4. on a full tie, both sides are kept, penalized, and flagged unresolved
//
// Losers are never discarded: they keep their place in the batch with a
// logged penalty so the advisor still weighs them.
func (r *Resolver) Resolve(events []*models.SignalEvent, relations Relations) models.ConflictStats {
	var stats models.ConflictStats
	if len(events) < 2 {
		return stats
	}

	index := make(map[string]*models.SignalEvent, len(events))
	pos := make(map[string]int, len(events))
	for i, ev := range events {
		index[ev.Key] = ev
		pos[ev.Key] = i
	}

	// Union-find over conflict edges (related pairs with opposing sides).
	parent := make([]int, len(events))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	edges := 0
	for _, ev := range events {
		for _, key := range relations[ev.Key] {
			rel, ok := index[key]
			if !ok || rel.Side == ev.Side {
				continue
			}
			union(pos[ev.Key], pos[rel.Key])
			edges++
		}
	}
	if edges == 0 {
		return stats
	}

	groups := make(map[int][]*models.SignalEvent)
	for i, ev := range events {
		groups[find(i)] = append(groups[find(i)], ev)
	}

	for _, group := range groups {
		var buys, sells []*models.SignalEvent
		for _, ev := range group {
			if ev.Side == models.SideBuy {
				buys = append(buys, ev)
			} else {
				sells = append(sells, ev)
			}
		}
		if len(buys) == 0 || len(sells) == 0 {
			continue
		}
		stats.ConflictsDetected++

		buyChamp := r.champion(buys)
		sellChamp := r.champion(sells)

		switch r.compare(buyChamp, sellChamp) {
		case -1:
			r.penalize(sells, &stats)
			stats.ConflictsResolved++
		case 1:
			r.penalize(buys, &stats)
			stats.ConflictsResolved++
		default:
			for _, ev := range []*models.SignalEvent{buyChamp, sellChamp} {
				ev.AddModifier(SourceUnresolved, -r.cfg.UnresolvedPenalty)
				if ev.Metadata == nil {
					ev.Metadata = make(map[string]interface{}, 1)
				}
				ev.Metadata["unresolved_conflict"] = true
				stats.Penalized++
			}
			stats.Unresolved++
		}
	}
	return stats
}

// champion picks a side's strongest signal: lowest type rank, then lowest
// level rank, then highest confidence.
func (r *Resolver) champion(side []*models.SignalEvent) *models.SignalEvent {
	best := side[0]
	for _, ev := range side[1:] {
		if r.compare(ev, best) < 0 {
			best = ev
		}
	}
	return best
}

// compare orders two opposing champions by the conflict matrix: -1 when a
// beats b, 1 when b beats a, 0 on a full tie.
func (r *Resolver) compare(a, b *models.SignalEvent) int {
	ta, tb := r.priority.TypeRank(a.Type), r.priority.TypeRank(b.Type)
	if ta != tb {
		if ta < tb {
			return -1
		}
		return 1
	}
	la, lb := r.priority.LevelRank(a.Level), r.priority.LevelRank(b.Level)
	if la != lb {
		if la < lb {
			return -1
		}
		return 1
	}
	if a.Confidence != b.Confidence {
		if a.Confidence > b.Confidence {
			return -1
		}
		return 1
	}
	return 0
}

func (r *Resolver) penalize(losers []*models.SignalEvent, stats *models.ConflictStats) {
	for _, ev := range losers {
		ev.AddModifier(SourcePenalty, -r.cfg.LoserPenalty)
		stats.Penalized++
	}
}
