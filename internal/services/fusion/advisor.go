package fusion

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"FlowRadar/internal/domain/models"
)

// AdvisorConfig tunes the weighted vote. Every table is injected so
// operators can retune behavior without code changes.
type AdvisorConfig struct {
	TypeWeight map[models.SignalType]float64
	// DefaultTypeWeight applies to types absent from TypeWeight.
	DefaultTypeWeight float64
	LevelWeight       map[models.SignalLevel]float64
	// DefaultLevelWeight applies to levels absent from LevelWeight.
	DefaultLevelWeight float64
	// StrongRatio is the side-score ratio above which the call upgrades to
	// STRONG_BUY / STRONG_SELL.
	StrongRatio float64
}

// DefaultAdvisorConfig mirrors the operational defaults.
func DefaultAdvisorConfig() AdvisorConfig {
	return AdvisorConfig{
		TypeWeight: map[models.SignalType]float64{
			models.TypeLiquidation: 3,
			models.TypeWhale:       2,
			models.TypeIceberg:     1,
			models.TypeKGod:        1,
		},
		DefaultTypeWeight: 1,
		LevelWeight: map[models.SignalLevel]float64{
			models.LevelCritical:  3,
			models.LevelConfirmed: 2,
			models.LevelWarning:   1.5,
			models.LevelActivity:  1,
		},
		DefaultLevelWeight: 0.5,
		StrongRatio:        1.5,
	}
}

// Advisor folds a resolved, ranked batch into one aggregate recommendation.
// Pure and stateless.
type Advisor struct {
	cfg AdvisorConfig
}

// NewAdvisor builds the stage. Zero config fields take defaults.
func NewAdvisor(cfg AdvisorConfig) *Advisor {
	def := DefaultAdvisorConfig()
	if cfg.TypeWeight == nil {
		cfg.TypeWeight = def.TypeWeight
	}
	if cfg.DefaultTypeWeight == 0 {
		cfg.DefaultTypeWeight = def.DefaultTypeWeight
	}
	if cfg.LevelWeight == nil {
		cfg.LevelWeight = def.LevelWeight
	}
	if cfg.DefaultLevelWeight == 0 {
		cfg.DefaultLevelWeight = def.DefaultLevelWeight
	}
	if cfg.StrongRatio == 0 {
		cfg.StrongRatio = def.StrongRatio
	}
	return &Advisor{cfg: cfg}
}

func (a *Advisor) weight(ev *models.SignalEvent) float64 {
	tw, ok := a.cfg.TypeWeight[ev.Type]
	if !ok {
		tw = a.cfg.DefaultTypeWeight
	}
	lw, ok := a.cfg.LevelWeight[ev.Level]
	if !ok {
		lw = a.cfg.DefaultLevelWeight
	}
	return tw * lw
}

// Advise computes per-side weighted scores and turns their ratio into a
// 5-level call with a rationale naming the dominant contributors. An empty
// or fully balanced batch yields WATCH.
func (a *Advisor) Advise(symbol string, events []*models.SignalEvent) *models.Recommendation {
	rec := &models.Recommendation{
		Symbol:    symbol,
		Advice:    models.AdviceWatch,
		Generated: time.Now().UTC(),
	}
	if len(events) == 0 {
		rec.Rationale = "no signals in window"
		return rec
	}

	var buyScore, sellScore float64
	breakdown := make([]models.SignalBreakdown, 0, len(events))
	for _, ev := range events {
		w := a.weight(ev)
		contribution := ev.Confidence * w
		if ev.Side == models.SideBuy {
			buyScore += contribution
		} else {
			sellScore += contribution
		}
		breakdown = append(breakdown, models.SignalBreakdown{
			Key:        ev.Key,
			Type:       ev.Type,
			Level:      ev.Level,
			Side:       ev.Side,
			Confidence: ev.Confidence,
			Weight:     w,
			Modifiers:  append([]models.ModifierEntry(nil), ev.Modifiers...),
		})
	}
	rec.BuyScore = buyScore
	rec.SellScore = sellScore
	rec.Breakdown = breakdown

	winner, winScore, loseScore := models.SideBuy, buyScore, sellScore
	if sellScore > buyScore {
		winner, winScore, loseScore = models.SideSell, sellScore, buyScore
	}

	switch {
	case winScore == 0:
		rec.Rationale = "no directional pressure on either side"
		rec.Confidence = a.sideConfidence(events, "")
		return rec
	case loseScore == 0:
		// one-sided batch: an unopposed side is a strong call
		rec.Ratio = 0
		rec.Advice = strongAdvice(winner)
	default:
		rec.Ratio = winScore / loseScore
		switch {
		case rec.Ratio > a.cfg.StrongRatio:
			rec.Advice = strongAdvice(winner)
		case rec.Ratio > 1.0:
			rec.Advice = plainAdvice(winner)
		default:
			rec.Advice = models.AdviceWatch
		}
	}

	if rec.Advice == models.AdviceWatch {
		rec.Confidence = a.sideConfidence(events, "")
		rec.Rationale = fmt.Sprintf("BUY %.1f vs SELL %.1f is near balanced, watching", buyScore, sellScore)
		return rec
	}

	rec.Confidence = a.sideConfidence(events, winner)
	rec.Rationale = a.rationale(winner, winScore, loseScore, events)
	return rec
}

// sideConfidence is the weighted average confidence of the given side, or of
// the whole batch when side is empty.
func (a *Advisor) sideConfidence(events []*models.SignalEvent, side models.SignalSide) float64 {
	var sum, weights float64
	for _, ev := range events {
		if side != "" && ev.Side != side {
			continue
		}
		w := a.weight(ev)
		sum += ev.Confidence * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return models.ClampConfidence(sum / weights)
}

func (a *Advisor) rationale(winner models.SignalSide, winScore, loseScore float64, events []*models.SignalEvent) string {
	contributors := make([]*models.SignalEvent, 0, len(events))
	for _, ev := range events {
		if ev.Side == winner {
			contributors = append(contributors, ev)
		}
	}
	sort.SliceStable(contributors, func(i, j int) bool {
		return contributors[i].Confidence*a.weight(contributors[i]) > contributors[j].Confidence*a.weight(contributors[j])
	})
	if len(contributors) > 3 {
		contributors = contributors[:3]
	}
	parts := make([]string, 0, len(contributors))
	for _, ev := range contributors {
		parts = append(parts, fmt.Sprintf("%s %s (conf %.0f)", ev.Type, ev.Level, ev.Confidence))
	}

	if loseScore == 0 {
		return fmt.Sprintf("unopposed %s pressure (%.1f), led by %s", winner, winScore, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s pressure leads %.1f:%.1f, led by %s", winner, winScore, loseScore, strings.Join(parts, ", "))
}

func strongAdvice(side models.SignalSide) models.Advice {
	if side == models.SideBuy {
		return models.AdviceStrongBuy
	}
	return models.AdviceStrongSell
}

func plainAdvice(side models.SignalSide) models.Advice {
	if side == models.SideBuy {
		return models.AdviceBuy
	}
	return models.AdviceSell
}
