package usecase

import (
	"context"

	pkgkafka "FlowRadar/pkg/kafka"
	"FlowRadar/pkg/queue"
)

// ErrorLogTopic is the queue message type for aggregated error logs.
const ErrorLogTopic = "error_logs"

// LogDrainJob forwards aggregated error logs from the queue to Kafka for
// long-term retention. Without a producer the batch is dropped.
type LogDrainJob struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewLogDrainJob creates the log drain job.
func NewLogDrainJob(producer *pkgkafka.Producer, topic string) *LogDrainJob {
	return &LogDrainJob{producer: producer, topic: topic}
}

func (j *LogDrainJob) Name() string { return "log_drain" }

func (j *LogDrainJob) Type() string { return ErrorLogTopic }

func (j *LogDrainJob) Handle(ctx context.Context, payload interface{}) error {
	if j.producer == nil {
		return nil
	}
	return j.producer.Publish(ctx, j.topic, nil, payload)
}

var _ queue.Job = (*LogDrainJob)(nil)
