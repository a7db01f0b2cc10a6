package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FlowRadar/internal/domain/models"
	domrepo "FlowRadar/internal/domain/repository"
	"FlowRadar/internal/service/store"
	"FlowRadar/internal/services/fusion"
	"FlowRadar/pkg/logger"
)

// FusionPipeline drives the per-symbol stage chain over the signal store:
// correlate, adjust confidence, resolve conflicts, re-rank, advise. The
// stages are pure; all state lives in the manager, so distinct symbols can
// run concurrently.
type FusionPipeline struct {
	manager  *store.Manager
	engine   *fusion.Engine
	modifier *fusion.Modifier
	resolver *fusion.Resolver
	advisor  *fusion.Advisor
	priority *fusion.PriorityConfig

	audit      domrepo.AuditSink
	publishers []domrepo.ResultPublisher
	throttle   domrepo.Throttle
	metrics    domrepo.Metrics
	log        *logger.Logger

	statsMu      sync.Mutex
	lastFusion   models.FusionStats
	lastConflict models.ConflictStats
}

// PipelineOption configures a FusionPipeline.
type PipelineOption func(*FusionPipeline)

// WithAudit attaches an audit sink for emitted recommendations.
func WithAudit(sink domrepo.AuditSink) PipelineOption {
	return func(p *FusionPipeline) { p.audit = sink }
}

// WithPublishers attaches downstream result publishers.
func WithPublishers(pubs ...domrepo.ResultPublisher) PipelineOption {
	return func(p *FusionPipeline) { p.publishers = append(p.publishers, pubs...) }
}

// WithThrottle attaches an advice throttle consulted before publishing.
func WithThrottle(th domrepo.Throttle) PipelineOption {
	return func(p *FusionPipeline) { p.throttle = th }
}

// NewFusionPipeline wires the stage chain. The priority table is shared by
// every stage so no component hardcodes its own ranking.
func NewFusionPipeline(
	manager *store.Manager,
	engine *fusion.Engine,
	modifier *fusion.Modifier,
	resolver *fusion.Resolver,
	advisor *fusion.Advisor,
	priority *fusion.PriorityConfig,
	metrics domrepo.Metrics,
	log *logger.Logger,
	opts ...PipelineOption,
) *FusionPipeline {
	p := &FusionPipeline{
		manager:  manager,
		engine:   engine,
		modifier: modifier,
		resolver: resolver,
		advisor:  advisor,
		priority: priority,
		metrics:  metrics,
		log:      log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// pass runs the stage chain over a snapshot for one symbol. Stored events
// are not mutated.
func (p *FusionPipeline) pass(symbol string) (*models.PipelineResult, models.FusionStats, models.ConflictStats) {
	start := time.Now()

	events := p.manager.Snapshot(symbol)

	relations, fstats := p.engine.Correlate(events)
	p.modifier.Apply(events, relations)
	cstats := p.resolver.Resolve(events, relations)
	p.priority.Sort(events)
	rec := p.advisor.Advise(symbol, events)

	elapsed := time.Since(start)
	result := &models.PipelineResult{
		Symbol:         symbol,
		Signals:        events,
		Recommendation: rec,
		Unresolved:     cstats.Unresolved,
		Elapsed:        elapsed,
		ElapsedMS:      float64(elapsed.Microseconds()) / 1000,
	}
	return result, fstats, cstats
}

// Preview runs one fused pass for a symbol without auditing, throttling or
// publishing. Used by the read-only HTTP surface.
func (p *FusionPipeline) Preview(symbol string) *models.PipelineResult {
	result, _, _ := p.pass(symbol)
	return result
}

// RunSymbol executes one full pass for a symbol, publishes the result and
// returns it.
func (p *FusionPipeline) RunSymbol(ctx context.Context, symbol string) (*models.PipelineResult, error) {
	result, fstats, cstats := p.pass(symbol)
	rec := result.Recommendation
	elapsed := result.Elapsed
	events := result.Signals

	p.statsMu.Lock()
	p.lastFusion = fstats
	p.lastConflict = cstats
	p.statsMu.Unlock()

	if p.metrics != nil {
		p.metrics.RecordPipelineLatency(symbol, elapsed.Seconds())
		p.metrics.RecordAdvice(symbol, string(rec.Advice))
		for i := 0; i < cstats.ConflictsResolved; i++ {
			p.metrics.RecordConflict("resolved")
		}
		for i := 0; i < cstats.Unresolved; i++ {
			p.metrics.RecordConflict("unresolved")
		}
	}
	if p.log != nil {
		p.log.Debug("pipeline pass complete",
			logger.String("symbol", symbol),
			logger.Int("signals", len(events)),
			logger.String("advice", string(rec.Advice)),
			logger.Int("relations", fstats.RelationsFound),
			logger.Int("conflicts", cstats.ConflictsDetected),
			logger.Duration("elapsed", elapsed))
	}

	if err := p.emit(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

// RunAll executes a pass for every symbol currently stored.
func (p *FusionPipeline) RunAll(ctx context.Context) ([]*models.PipelineResult, error) {
	symbols := p.manager.Symbols()
	results := make([]*models.PipelineResult, 0, len(symbols))
	for _, symbol := range symbols {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}
		res, err := p.RunSymbol(ctx, symbol)
		if err != nil {
			if p.log != nil {
				p.log.Error("pipeline pass failed", logger.String("symbol", symbol), logger.Error(err))
			}
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// emit records the recommendation and hands the result to every publisher,
// unless the throttle marks it a repeat.
func (p *FusionPipeline) emit(ctx context.Context, result *models.PipelineResult) error {
	rec := result.Recommendation
	if rec == nil {
		return nil
	}

	if p.throttle != nil {
		allowed, err := p.throttle.Allow(ctx, result.Symbol, rec.Advice)
		if err != nil {
			if p.log != nil {
				p.log.Warn("advice throttle unavailable, publishing anyway", logger.Error(err))
			}
		} else if !allowed {
			if p.metrics != nil {
				p.metrics.RecordThrottled(result.Symbol)
			}
			return nil
		}
	}

	if p.audit != nil {
		if err := p.audit.RecordRecommendation(ctx, rec); err != nil {
			if p.metrics != nil {
				p.metrics.RecordError("audit_recommendation")
			}
			if p.log != nil {
				p.log.Warn("audit sink rejected recommendation", logger.Error(err))
			}
		}
	}

	var firstErr error
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, result); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("publish result for %s: %w", result.Symbol, err)
			}
			if p.metrics != nil {
				p.metrics.RecordError("publish_result")
			}
			continue
		}
		if p.metrics != nil {
			p.metrics.RecordPublished(result.Symbol)
		}
	}
	return firstErr
}

// LastStats returns counters from the most recent pass, for the ops API.
func (p *FusionPipeline) LastStats() (models.FusionStats, models.ConflictStats) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.lastFusion, p.lastConflict
}

// Manager exposes the underlying store for handlers.
func (p *FusionPipeline) Manager() *store.Manager { return p.manager }
