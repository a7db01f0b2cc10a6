package usecase

import (
	"context"
	"fmt"

	"FlowRadar/internal/domain/models"
	domrepo "FlowRadar/internal/domain/repository"
	irepo "FlowRadar/internal/repository"
	"FlowRadar/pkg/queue"
)

// ResultRedeliveryJob drains parked pipeline results and retries delivery.
// The queue retry policy owns backoff and attempt limits.
type ResultRedeliveryJob struct {
	publisher domrepo.ResultPublisher
}

// NewResultRedeliveryJob creates the redelivery job for the given publisher.
func NewResultRedeliveryJob(publisher domrepo.ResultPublisher) *ResultRedeliveryJob {
	return &ResultRedeliveryJob{publisher: publisher}
}

func (j *ResultRedeliveryJob) Name() string { return "result_redelivery" }

func (j *ResultRedeliveryJob) Type() string { return irepo.ResultMessageType }

func (j *ResultRedeliveryJob) Handle(ctx context.Context, payload interface{}) error {
	result, err := queue.ParsePayload[models.PipelineResult](payload)
	if err != nil {
		return fmt.Errorf("redelivery payload: %w", err)
	}
	return j.publisher.Publish(ctx, result)
}

var _ queue.Job = (*ResultRedeliveryJob)(nil)
