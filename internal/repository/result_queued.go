package repository

import (
	"context"

	"FlowRadar/internal/domain/models"
	"FlowRadar/internal/domain/repository"
	"FlowRadar/pkg/queue"
)

// ResultMessageType is the queue message type for deferred result delivery.
const ResultMessageType = "pipeline_result"

// QueuedResultPublisher wraps a publisher with queue-backed redelivery: a
// failed publish is parked on the queue and retried by the redelivery job
// instead of surfacing to the pipeline.
type QueuedResultPublisher struct {
	inner repository.ResultPublisher
	queue queue.QueueService
}

// NewQueuedResultPublisher decorates inner with redelivery through q.
func NewQueuedResultPublisher(inner repository.ResultPublisher, q queue.QueueService) repository.ResultPublisher {
	return &QueuedResultPublisher{inner: inner, queue: q}
}

func (p *QueuedResultPublisher) Publish(ctx context.Context, result *models.PipelineResult) error {
	err := p.inner.Publish(ctx, result)
	if err == nil {
		return nil
	}
	if qerr := p.queue.PublishMessage(ctx, ResultMessageType, result); qerr != nil {
		// queue down too, surface the original failure
		return err
	}
	return nil
}

func (p *QueuedResultPublisher) Close() error {
	return p.inner.Close()
}
