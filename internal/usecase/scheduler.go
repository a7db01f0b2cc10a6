package usecase

import (
	"context"
	"sync"
	"time"

	"FlowRadar/pkg/logger"
)

// Scheduler drives periodic pipeline passes: every tick it drops signals
// that aged out of the dedupe window, then runs the stage chain for every
// stored symbol.
type Scheduler struct {
	pipeline *FusionPipeline
	interval time.Duration
	window   float64 // dedupe window, seconds
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewScheduler builds a scheduler. Zero interval defaults to 30s, zero
// window to 600s.
func NewScheduler(pipeline *FusionPipeline, interval time.Duration, windowSeconds float64, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if windowSeconds <= 0 {
		windowSeconds = 600
	}
	return &Scheduler{pipeline: pipeline, interval: interval, window: windowSeconds, log: log}
}

// Start launches the tick loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	dropped := s.pipeline.Manager().DedupeByWindow(s.window)
	if dropped > 0 && s.log != nil {
		s.log.Debug("dropped stale signals", logger.Int("count", dropped))
	}
	if _, err := s.pipeline.RunAll(ctx); err != nil && s.log != nil {
		s.log.Error("scheduled pipeline run failed", logger.Error(err))
	}
}

// Stop halts the loop and waits for the current pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}
