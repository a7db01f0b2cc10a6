//go:build wireinject
// +build wireinject

package di

import (
	"FlowRadar/pkg/config"
	"FlowRadar/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,
		ProvideCacheService,
		ProvideRedisQueue,

		// Repositories
		ProvideAuditSink,
		ProvideResultPublishers,
		ProvideDetectorStream,

		// Fusion core
		ProvidePriority,
		ProvideManager,
		ProvideThrottle,
		ProvidePipeline,

		// Use cases
		ProvideIngestHandler,
		ProvideCollector,
		ProvideScheduler,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
