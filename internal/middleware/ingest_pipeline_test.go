package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FlowRadar/internal/domain/models"
)

type recordingSink struct {
	events []*models.SignalEvent
	err    error
}

func (s *recordingSink) Add(ev *models.SignalEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordIngested(string, string)        {}
func (nopMetrics) RecordRejected(string)                {}
func (nopMetrics) RecordReplaced(string)                {}
func (nopMetrics) RecordSuppressed(string)              {}
func (nopMetrics) RecordEvicted()                       {}
func (nopMetrics) RecordIndexResync()                   {}
func (nopMetrics) RecordStoreSize(int)                  {}
func (nopMetrics) RecordConflict(string)                {}
func (nopMetrics) RecordAdvice(string, string)          {}
func (nopMetrics) RecordPublished(string)               {}
func (nopMetrics) RecordThrottled(string)               {}
func (nopMetrics) RecordPipelineLatency(string, float64) {}
func (nopMetrics) RecordError(string)                   {}

func testEvent(symbol string, ts float64) *models.SignalEvent {
	return models.NewSignalEvent(ts, symbol, models.SideBuy, models.LevelConfirmed, models.TypeWhale, 70, 0.15, models.PriceBucket(0.15))
}

func TestProcessForwardsToSink(t *testing.T) {
	sink := &recordingSink{}
	p := NewIngestPipeline(sink, nopMetrics{})

	if err := p.Process(context.Background(), testEvent("DOGE/USDT", 1000)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 forwarded event, got %d", len(sink.events))
	}
}

func TestProcessRejectsNil(t *testing.T) {
	p := NewIngestPipeline(&recordingSink{}, nopMetrics{})
	if err := p.Process(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil event")
	}
}

func TestProcessWrapsSinkError(t *testing.T) {
	sinkErr := errors.New("store full")
	p := NewIngestPipeline(&recordingSink{err: sinkErr}, nopMetrics{})

	err := p.Process(context.Background(), testEvent("DOGE/USDT", 1000))
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected wrapped sink error, got %v", err)
	}
}

func TestPerSymbolThrottle(t *testing.T) {
	sink := &recordingSink{}
	p := NewIngestPipeline(sink, nopMetrics{}, WithMaxRPS(1))
	ctx := context.Background()

	// second event for the same symbol inside the 1rps interval is dropped
	_ = p.Process(ctx, testEvent("DOGE/USDT", 1000))
	_ = p.Process(ctx, testEvent("DOGE/USDT", 1000.1))
	// a different symbol is unaffected
	_ = p.Process(ctx, testEvent("BTC/USDT", 1000.1))

	if len(sink.events) != 2 {
		t.Fatalf("expected 2 forwarded events, got %d", len(sink.events))
	}
	if sink.events[1].Symbol != "BTC/USDT" {
		t.Fatalf("expected second forwarded event for BTC/USDT, got %s", sink.events[1].Symbol)
	}
}

// flakySink rejects the first fails calls and accepts the rest.
type flakySink struct {
	mu     sync.Mutex
	fails  int
	events []*models.SignalEvent
}

func (s *flakySink) Add(ev *models.SignalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return errors.New("store busy")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *flakySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestTransientFailureIsBufferedAndFlushed(t *testing.T) {
	sink := &flakySink{fails: 1}
	p := NewIngestPipeline(sink, nopMetrics{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Process(ctx, testEvent("DOGE/USDT", 1000)); err == nil {
		t.Fatalf("expected error from rejecting sink")
	}
	if got := len(p.bufCh); got != 1 {
		t.Fatalf("expected 1 buffered event, got %d", got)
	}

	p.Start(ctx)
	defer p.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for sink.len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("buffered event was never flushed to the sink")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestValidationFailureIsNotBuffered(t *testing.T) {
	sink := &recordingSink{err: &models.ValidationError{Field: "symbol", Reason: "must not be empty"}}
	p := NewIngestPipeline(sink, nopMetrics{})

	if err := p.Process(context.Background(), testEvent("DOGE/USDT", 1000)); err == nil {
		t.Fatalf("expected validation error to surface")
	}
	// a rejected event can never succeed on retry
	if got := len(p.bufCh); got != 0 {
		t.Fatalf("expected empty retry buffer, got %d buffered", got)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	p := NewIngestPipeline(&recordingSink{}, nopMetrics{})
	ctx := context.Background()

	p.Start(ctx)
	p.Start(ctx) // no-op
	p.Stop()
	p.Stop() // no-op
}
