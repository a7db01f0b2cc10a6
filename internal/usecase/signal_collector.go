package usecase

import (
	"context"

	"FlowRadar/internal/domain/models"
	domrepo "FlowRadar/internal/domain/repository"
	mid "FlowRadar/internal/middleware"
	"FlowRadar/internal/service/store"
)

// SignalCollector reads detector events from a stream and feeds the store,
// optionally through the ingest middleware.
type SignalCollector struct {
	stream  domrepo.SignalStream
	manager *store.Manager
	symbols []string
	metrics domrepo.Metrics
	pipe    *mid.IngestPipeline
	audit   domrepo.AuditSink
}

// NewSignalCollector creates a collector for the given symbols.
func NewSignalCollector(stream domrepo.SignalStream, manager *store.Manager, symbols []string, metrics domrepo.Metrics, pipe *mid.IngestPipeline, audit domrepo.AuditSink) *SignalCollector {
	return &SignalCollector{stream: stream, manager: manager, symbols: symbols, metrics: metrics, pipe: pipe, audit: audit}
}

// IsConnected reports stream health.
func (c *SignalCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *SignalCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx, c.symbols); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	evCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, evCh, errCh)
	return nil
}

func (c *SignalCollector) consume(ctx context.Context, evCh <-chan *models.SignalEvent, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				if rerr := c.stream.Reconnect(ctx); rerr == nil {
					// the old read loop exited with the error, pick up
					// fresh channels from the new connection
					evCh, errCh = c.stream.Read(ctx)
				}
			}
		case ev := <-evCh:
			if ev == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, ev)
			} else if err := c.manager.Add(ev); err != nil {
				continue
			}
			if c.audit != nil {
				_ = c.audit.RecordSignal(ctx, ev)
			}
		}
	}
}

// Shutdown stops the middleware and closes the stream.
func (c *SignalCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
