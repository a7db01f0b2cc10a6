package repository

import (
	"context"

	"FlowRadar/internal/domain/models"
)

// SignalStream is a detector-side feed of signal events, e.g. a websocket
// gateway. The transport owns reconnection; the pipeline only reads.
type SignalStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Read(ctx context.Context) (<-chan *models.SignalEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// ResultPublisher hands pipeline output to downstream consumers (out-topic,
// webhook). The result is read-only for them.
type ResultPublisher interface {
	Publish(ctx context.Context, result *models.PipelineResult) error
	Close() error
}

// AuditSink is an append-only record of accepted signals and emitted
// recommendations. It carries no pipeline state.
type AuditSink interface {
	Init(ctx context.Context) error // ensure tables, health checks
	RecordSignal(ctx context.Context, ev *models.SignalEvent) error
	RecordRecommendation(ctx context.Context, rec *models.Recommendation) error
	Health(ctx context.Context) error // ping
	Close() error
}

// Throttle suppresses repeated identical advice for a symbol inside a
// cooldown window.
type Throttle interface {
	Allow(ctx context.Context, symbol string, advice models.Advice) (bool, error)
}

// Metrics abstracts the observability backend.
type Metrics interface {
	RecordIngested(symbol, signalType string)
	RecordRejected(reason string)
	RecordReplaced(symbol string)
	RecordSuppressed(symbol string)
	RecordEvicted()
	RecordIndexResync()
	RecordStoreSize(n int)
	RecordConflict(outcome string) // resolved | unresolved
	RecordAdvice(symbol, advice string)
	RecordPublished(target string)
	RecordThrottled(symbol string)
	RecordPipelineLatency(symbol string, seconds float64)
	RecordError(kind string)
}
