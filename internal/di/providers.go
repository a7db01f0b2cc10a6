package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FlowRadar/internal/domain/models"
	"FlowRadar/internal/domain/repository"
	"FlowRadar/internal/handler/api"
	mid "FlowRadar/internal/middleware"
	internalrepo "FlowRadar/internal/repository"
	"FlowRadar/internal/service/detectorws"
	"FlowRadar/internal/service/store"
	"FlowRadar/internal/service/throttle"
	"FlowRadar/internal/services/fusion"
	"FlowRadar/internal/usecase"
	"FlowRadar/pkg/cache"
	pkgch "FlowRadar/pkg/clickhouse"
	"FlowRadar/pkg/config"
	xhttp "FlowRadar/pkg/http"
	pkgkafka "FlowRadar/pkg/kafka"
	"FlowRadar/pkg/logger"
	"FlowRadar/pkg/metrics"
	"FlowRadar/pkg/queue"
	"FlowRadar/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return logger.New(&logger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideAuditSink creates the ClickHouse audit sink, or nil when disabled.
func ProvideAuditSink(chClient *pkgch.Client, cfg *config.Config) (repository.AuditSink, error) {
	if chClient == nil {
		return nil, nil
	}
	signalTable := cfg.ClickHouse.SignalTable
	if signalTable == "" {
		signalTable = cfg.ClickHouse.Database + ".signal_audit"
	}
	adviceTable := cfg.ClickHouse.AdviceTable
	if adviceTable == "" {
		adviceTable = cfg.ClickHouse.Database + ".advice_audit"
	}
	sink := internalrepo.NewClickHouseAudit(chClient.DB(), signalTable, adviceTable)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sink.Init(ctx); err != nil {
		return nil, fmt.Errorf("audit sink: %w", err)
	}
	return sink, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the signal-topic consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRedisCache creates the Redis cache client, or nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Notify.Redis.Enabled {
		return nil, nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Notify.Redis.Host),
		cache.WithRedisPort(cfg.Notify.Redis.Port),
		cache.WithRedisPassword(cfg.Notify.Redis.Password),
		cache.WithRedisDB(cfg.Notify.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideCacheService creates the shared cache: memory-over-Redis when Redis
// is configured, an in-process cache otherwise.
func ProvideCacheService(rc *cache.RedisCache) cache.Service {
	if rc != nil {
		return cache.NewLayeredCache(rc)
	}
	return cache.NewMemoryCache()
}

// ProvideThrottle creates the advice throttle over the shared cache.
func ProvideThrottle(c cache.Service, cfg *config.Config) repository.Throttle {
	return throttle.New(c, cfg.Notify.Throttle)
}

// ProvidePriority creates the shared priority table.
func ProvidePriority() *fusion.PriorityConfig {
	return fusion.DefaultPriorityConfig()
}

// ProvideManager creates the signal store.
func ProvideManager(cfg *config.Config, priority *fusion.PriorityConfig, m repository.Metrics, log *logger.Logger) *store.Manager {
	opts := []store.Option{
		store.WithPriority(priority),
		store.WithMetrics(m),
		store.WithLogger(log),
	}
	if cfg.Fusion.Capacity > 0 {
		opts = append(opts, store.WithCapacity(cfg.Fusion.Capacity))
	}
	return store.NewManager(opts...)
}

// ProvideResultPublishers assembles the downstream publishers, wrapping the
// webhook with queue-backed redelivery when a queue is available.
func ProvideResultPublishers(
	producer *pkgkafka.Producer,
	q *queue.RedisQueue,
	cfg *config.Config,
) []repository.ResultPublisher {
	var pubs []repository.ResultPublisher
	if producer != nil && cfg.Kafka.ResultTopic != "" {
		pubs = append(pubs, internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.ResultTopic))
	}
	if cfg.Notify.WebhookURL != "" {
		timeout := cfg.Notify.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		var pub repository.ResultPublisher = internalrepo.NewWebhookResultPublisher(
			xhttp.NewClient(xhttp.WithTimeout(timeout)),
			cfg.Notify.WebhookURL,
		)
		if q != nil {
			q.RegisterJob(usecase.NewResultRedeliveryJob(pub))
			pub = internalrepo.NewQueuedResultPublisher(pub, q)
		}
		pubs = append(pubs, pub)
	}
	return pubs
}

// ProvideRedisQueue creates the redelivery queue, or nil without Redis.
func ProvideRedisQueue(rc *cache.RedisCache, cfg *config.Config, log *logger.Logger) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	return queue.NewRedisQueue(log, &queue.QueueConfig{
		Workers:    cfg.Notify.Retry.Workers,
		RetryLimit: cfg.Notify.Retry.RetryLimit,
		RetryDelay: cfg.Notify.Retry.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer)
}

// ProvidePipeline wires the fused stage chain.
func ProvidePipeline(
	manager *store.Manager,
	priority *fusion.PriorityConfig,
	audit repository.AuditSink,
	pubs []repository.ResultPublisher,
	th repository.Throttle,
	m repository.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.FusionPipeline {
	ccfg := fusion.DefaultCorrelationConfig()
	if cfg.Fusion.WindowSeconds > 0 {
		ccfg.WindowSeconds = cfg.Fusion.WindowSeconds
	}
	if cfg.Fusion.PriceTolerance > 0 {
		ccfg.PriceTolerance = cfg.Fusion.PriceTolerance
	}
	if len(cfg.Fusion.TypeExpansion) > 0 {
		exp := make(map[models.SignalType]float64, len(cfg.Fusion.TypeExpansion))
		for t, v := range cfg.Fusion.TypeExpansion {
			exp[models.SignalType(t)] = v
		}
		ccfg.TypeExpansion = exp
	}
	mcfg := fusion.DefaultModifierConfig()
	if cfg.Fusion.ResonanceStep > 0 {
		mcfg.ResonanceStep = cfg.Fusion.ResonanceStep
	}
	if cfg.Fusion.ResonanceCap > 0 {
		mcfg.ResonanceCap = cfg.Fusion.ResonanceCap
	}
	if cfg.Fusion.ConflictStep < 0 {
		mcfg.ConflictStep = cfg.Fusion.ConflictStep
	}
	if cfg.Fusion.ConflictCap < 0 {
		mcfg.ConflictCap = cfg.Fusion.ConflictCap
	}
	if len(cfg.Fusion.ComboBonus) > 0 {
		mcfg.ComboBonus = canonicalComboBonus(cfg.Fusion.ComboBonus)
	}
	rcfg := fusion.DefaultResolverConfig()
	if cfg.Fusion.LoserPenalty > 0 {
		rcfg.LoserPenalty = cfg.Fusion.LoserPenalty
	}
	if cfg.Fusion.UnresolvedPenalty > 0 {
		rcfg.UnresolvedPenalty = cfg.Fusion.UnresolvedPenalty
	}
	acfg := fusion.DefaultAdvisorConfig()
	if cfg.Fusion.StrongRatio > 0 {
		acfg.StrongRatio = cfg.Fusion.StrongRatio
	}
	if len(cfg.Fusion.TypeWeight) > 0 {
		tw := make(map[models.SignalType]float64, len(cfg.Fusion.TypeWeight))
		for t, v := range cfg.Fusion.TypeWeight {
			tw[models.SignalType(t)] = v
		}
		acfg.TypeWeight = tw
	}
	if len(cfg.Fusion.LevelWeight) > 0 {
		lw := make(map[models.SignalLevel]float64, len(cfg.Fusion.LevelWeight))
		for l, v := range cfg.Fusion.LevelWeight {
			lw[models.SignalLevel(l)] = v
		}
		acfg.LevelWeight = lw
	}

	return usecase.NewFusionPipeline(
		manager,
		fusion.NewEngine(ccfg),
		fusion.NewModifier(mcfg),
		fusion.NewResolver(rcfg, priority),
		fusion.NewAdvisor(acfg),
		priority,
		m,
		log,
		usecase.WithAudit(audit),
		usecase.WithPublishers(pubs...),
		usecase.WithThrottle(th),
	)
}

// canonicalComboBonus re-keys free-form YAML combo entries through the
// sorted canonical form the modifier looks up, so "whale,iceberg" and
// "iceberg, whale" both land on the same entry.
func canonicalComboBonus(raw map[string]float64) map[string]float64 {
	combos := make(map[string]float64, len(raw))
	for k, v := range raw {
		parts := strings.Split(k, ",")
		types := make([]models.SignalType, 0, len(parts))
		for _, p := range parts {
			types = append(types, models.SignalType(strings.TrimSpace(p)))
		}
		combos[fusion.ComboKey(types...)] = v
	}
	return combos
}

// ProvideIngestHandler registers the Kafka handler for the signal topic.
func ProvideIngestHandler(manager *store.Manager, audit repository.AuditSink, m repository.Metrics, cfg *config.Config) *usecase.SignalIngestHandler {
	return usecase.NewSignalIngestHandler(cfg.Kafka.SignalTopic, manager, audit, m)
}

// ProvideDetectorStream creates the detector gateway stream, or nil when
// disabled.
func ProvideDetectorStream(cfg *config.Config) repository.SignalStream {
	if !cfg.Detector.Enabled {
		return nil
	}
	return detectorws.New(
		cfg.Detector.Token,
		cfg.Detector.WebSocketURL,
		cfg.Detector.ReconnectDelay,
		cfg.Detector.PingInterval,
	)
}

// ProvideCollector creates the streaming signal collector, or nil without a
// stream.
func ProvideCollector(
	stream repository.SignalStream,
	manager *store.Manager,
	audit repository.AuditSink,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.SignalCollector {
	if stream == nil {
		return nil
	}
	var popts []mid.PipelineOption
	if cfg.Detector.MaxRPS > 0 {
		popts = append(popts, mid.WithMaxRPS(cfg.Detector.MaxRPS))
	}
	if cfg.Detector.BufferSize > 0 {
		popts = append(popts, mid.WithBufferSize(cfg.Detector.BufferSize))
	}
	pipe := mid.NewIngestPipeline(manager, m, popts...)
	return usecase.NewSignalCollector(stream, manager, cfg.Detector.Symbols, m, pipe, audit)
}

// ProvideScheduler creates the periodic pipeline scheduler.
func ProvideScheduler(pipeline *usecase.FusionPipeline, cfg *config.Config, log *logger.Logger) *usecase.Scheduler {
	return usecase.NewScheduler(pipeline, cfg.Fusion.Scheduler.Interval, cfg.Fusion.Scheduler.WindowSeconds, log)
}

// ProvideHTTPHandler creates the operational HTTP handler.
func ProvideHTTPHandler(
	log *logger.Logger,
	pipeline *usecase.FusionPipeline,
	priority *fusion.PriorityConfig,
	audit repository.AuditSink,
) *api.FusionEchoHandler {
	h := api.NewFusionEchoHandler(log, pipeline, priority)
	if audit != nil {
		h.SetAudit(audit)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	collector *usecase.SignalCollector,
	scheduler *usecase.Scheduler,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	kh *usecase.SignalIngestHandler,
	chClient *pkgch.Client,
	q *queue.RedisQueue,
	handler *api.FusionEchoHandler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if q != nil {
		// aggregate repeated error logs and ship them through the queue
		q.RegisterJob(usecase.NewLogDrainJob(producer, "flowradar.logs"))
		log.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          usecase.ErrorLogTopic,
			Publisher:      q,
		})
	}
	return server.New(cfg, log, collector, scheduler, consumer, kh, chClient, q, handler)
}
