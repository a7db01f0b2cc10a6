package repository

import (
	"context"

	"FlowRadar/internal/domain/models"
	"FlowRadar/internal/domain/repository"
	pkgkafka "FlowRadar/pkg/kafka"
)

// KafkaResultPublisher pushes pipeline results to the out-topic, keyed by
// symbol so all results for a pair land on one partition in order.
type KafkaResultPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaResultPublisher creates a Kafka result publisher.
func NewKafkaResultPublisher(producer *pkgkafka.Producer, topic string) repository.ResultPublisher {
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

func (p *KafkaResultPublisher) Publish(ctx context.Context, result *models.PipelineResult) error {
	if result == nil {
		return nil
	}
	return p.producer.Publish(ctx, p.topic, []byte(result.Symbol), result)
}

func (p *KafkaResultPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
