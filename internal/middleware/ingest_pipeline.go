package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FlowRadar/internal/domain/models"
	domrepo "FlowRadar/internal/domain/repository"
)

// Sink is the minimal downstream the ingest pipeline needs.
type Sink interface {
	Add(ev *models.SignalEvent) error
}

// IngestPipeline sits between a detector stream and the signal store. It
// pre-validates, rate-limits per symbol, and buffers events when the store
// rejects them transiently.
type IngestPipeline struct {
	sink     Sink
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.SignalEvent
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max events per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewIngestPipeline creates the middleware.
func NewIngestPipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		sink:     sink,
		metrics:  metrics,
		maxRPS:   50,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.SignalEvent, p.bufSize)
	return p
}

// Start launches background flushing of buffered events.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case ev := <-p.bufCh:
				if ev == nil {
					continue
				}
				if err := p.sink.Add(ev); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("ingest_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- ev:
					default:
						p.metrics.RecordError("ingest_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process throttles and forwards one event to the store.
func (p *IngestPipeline) Process(ctx context.Context, ev *models.SignalEvent) error {
	if ev == nil {
		return fmt.Errorf("signal nil")
	}
	if !p.allow(ev.Symbol, time.Now()) {
		p.metrics.RecordError("ingest_throttle")
		return nil
	}
	if err := p.sink.Add(ev); err != nil {
		p.metrics.RecordError("ingest_add")
		var verr *models.ValidationError
		if !errors.As(err, &verr) {
			// transient store failure; park the event for the flusher
			select {
			case p.bufCh <- ev:
			default:
				p.metrics.RecordError("ingest_buffer_full")
			}
		}
		return fmt.Errorf("ingest pipeline: %w", err)
	}
	return nil
}

func (p *IngestPipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[symbol]
	if last.IsZero() || now.Sub(last) >= time.Second/time.Duration(p.maxRPS) {
		p.lastSeen[symbol] = now
		return true
	}
	return false
}
