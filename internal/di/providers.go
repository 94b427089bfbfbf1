package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"Confluence/internal/domain/models"
	domrepo "Confluence/internal/domain/repository"
	domsvc "Confluence/internal/domain/service"
	"Confluence/internal/handler/api"
	"Confluence/internal/knowledge"
	mid "Confluence/internal/middleware"
	"Confluence/internal/outcome"
	"Confluence/internal/recorder"
	"Confluence/internal/replay"
	"Confluence/internal/service/feed"
	"Confluence/internal/strategy"
	"Confluence/internal/synthesis"
	"Confluence/internal/usecase"
	pkgcache "Confluence/pkg/cache"
	pkgch "Confluence/pkg/clickhouse"
	"Confluence/pkg/config"
	xhttp "Confluence/pkg/http"
	pkgkafka "Confluence/pkg/kafka"
	applogger "Confluence/pkg/logger"
	"Confluence/pkg/metrics"
	pkgqueue "Confluence/pkg/queue"
	"Confluence/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
}

// ProvideLocation resolves the market timezone. Session boundaries and
// phase windows are interpreted in this location.
func ProvideLocation(cfg *config.Config) (*time.Location, error) {
	tz := cfg.Feed.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", tz, err)
	}
	return loc, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideRedisCache creates the Redis cache client.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	addr := cfg.Redis.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr %s: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port %s: %w", portStr, err)
	}

	opts := []pkgcache.RedisOption{
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	}
	if cfg.Redis.Prefix != "" {
		opts = append(opts, pkgcache.WithRedisPrefix(cfg.Redis.Prefix))
	}
	return pkgcache.NewRedisCache(opts...)
}

// ProvideCache layers an in-process cache in front of Redis.
func ProvideCache(r *pkgcache.RedisCache) pkgcache.Service {
	return pkgcache.NewLayeredCache(r)
}

// ProvideQueue creates the Redis-backed retry queue. Jobs are registered
// by ProvideApp once the recorder exists.
func ProvideQueue(cfg *config.Config, lgr *applogger.Logger, r *pkgcache.RedisCache) *pkgqueue.RedisQueue {
	return pkgqueue.NewRedisQueue(lgr, &pkgqueue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryInterval,
	}, r.Client(), pkgqueue.ModeProducerConsumer)
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
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
	return client, nil
}

// ProvideRecorder creates the decision recorder and initializes its schema.
func ProvideRecorder(ch *pkgch.Client, q *pkgqueue.RedisQueue, lgr *applogger.Logger) (*recorder.CHRecorder, error) {
	rec := recorder.NewCHRecorder(ch, q)
	rec.SetLogger(lgr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rec.InitSchema(ctx, ch); err != nil {
		return nil, fmt.Errorf("recorder schema: %w", err)
	}
	return rec, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
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

// ProvideKafkaConsumer creates the outcome-events consumer.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
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

// ProvidePublisher creates the decision publisher.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.DecisionPublisher {
	return usecase.NewKafkaDecisionPublisher(producer, cfg.Kafka.DecisionsTopic)
}

// ProvideKellySizer builds the position sizer from configured phase caps.
func ProvideKellySizer(cfg *config.Config) *strategy.KellySizer {
	caps := make(map[models.SessionPhase]float64, len(cfg.Kelly.PhaseCaps))
	for phase, limit := range cfg.Kelly.PhaseCaps {
		caps[models.SessionPhase(phase)] = limit
	}
	return strategy.NewKellySizer(caps)
}

// ProvideRunner builds the strategy registry and its parallel runner.
func ProvideRunner(sizer *strategy.KellySizer, cfg *config.Config, lgr *applogger.Logger, m domrepo.Metrics) *strategy.Runner {
	return strategy.NewRunner(strategy.DefaultRegistry(sizer), cfg.Pipeline.EvaluatorTimeout, lgr, m)
}

// ProvideSynthesizer builds the weighted-rule synthesis policy.
func ProvideSynthesizer(cfg *config.Config, lgr *applogger.Logger) (domsvc.SynthesisPolicy, error) {
	weights, err := synthesis.NewWeightTable(cfg.Synthesis.BaseWeights)
	if err != nil {
		return nil, fmt.Errorf("synthesis weights: %w", err)
	}

	c := synthesis.DefaultConfig()
	if cfg.Synthesis.Strictness != "" {
		c.Strictness = cfg.Synthesis.Strictness
	}
	if cfg.Synthesis.SingleSourceCap > 0 {
		c.SingleSourceCap = cfg.Synthesis.SingleSourceCap
	}
	if cfg.Kelly.Dampening > 0 {
		c.Dampening = cfg.Kelly.Dampening
	}
	if cfg.Synthesis.MistakeDrag > 0 {
		c.MistakeDrag = cfg.Synthesis.MistakeDrag
	}
	return synthesis.New(weights, synthesis.NewRegimeDetector(), c, lgr), nil
}

// ProvideKnowledgeStore creates the file-backed knowledge store.
func ProvideKnowledgeStore(cfg *config.Config, cacheSvc pkgcache.Service, lgr *applogger.Logger) (*knowledge.FileStore, error) {
	return knowledge.NewFileStore(knowledge.Config{
		BaseDir:          cfg.Knowledge.BaseDir,
		RecentSummaries:  cfg.Knowledge.RecentSummaries,
		MaxSectionItems:  cfg.Knowledge.MaxSectionItems,
		RetrievalBudget:  cfg.Knowledge.RetrievalBudget,
		RetrievalTTL:     cfg.Knowledge.RetrievalTTL,
		WriteLockTimeout: cfg.Knowledge.WriteLockTimeout,
	}, cacheSvc, lgr)
}

// ProvideScorer creates the outcome scorer.
func ProvideScorer(cfg *config.Config, lgr *applogger.Logger) domsvc.OutcomeScorer {
	c := outcome.DefaultConfig()
	if cfg.Outcome.DrawdownThreshold > 0 {
		c.DrawdownThreshold = cfg.Outcome.DrawdownThreshold
	}
	return outcome.NewScorer(c, lgr)
}

// ProvideDistiller creates the lesson distiller.
func ProvideDistiller() *outcome.Distiller {
	return outcome.NewDistiller()
}

// ProvideCycleRunner creates the per-snapshot decision cycle.
func ProvideCycleRunner(
	runner *strategy.Runner,
	policy domsvc.SynthesisPolicy,
	rec *recorder.CHRecorder,
	store *knowledge.FileStore,
	pub domrepo.DecisionPublisher,
	m domrepo.Metrics,
	lgr *applogger.Logger,
	loc *time.Location,
) *usecase.CycleRunner {
	return usecase.NewCycleRunner(runner, policy, rec, store, pub, m, lgr, loc)
}

// ProvideReviewer creates the end-of-session reviewer.
func ProvideReviewer(
	rec *recorder.CHRecorder,
	store *knowledge.FileStore,
	distiller *outcome.Distiller,
	m domrepo.Metrics,
	lgr *applogger.Logger,
) *usecase.SessionReviewer {
	return usecase.NewSessionReviewer(rec, store, distiller, m, lgr)
}

// ProvideOutcomeHandler creates the kafka handler for fills and outcomes.
func ProvideOutcomeHandler(
	cfg *config.Config,
	rec *recorder.CHRecorder,
	scorer domsvc.OutcomeScorer,
	store *knowledge.FileStore,
	m domrepo.Metrics,
	lgr *applogger.Logger,
) pkgkafka.MessageHandler {
	return usecase.NewOutcomeHandler(cfg.Kafka.OutcomesTopic, rec, scorer, store, m, lgr)
}

// ProvideStream creates the market-data WebSocket stream.
func ProvideStream(cfg *config.Config, loc *time.Location) domrepo.SnapshotStream {
	return feed.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Symbols,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
		loc,
	)
}

// ProvidePipeline creates the snapshot pipeline in front of the cycle.
func ProvidePipeline(cycle *usecase.CycleRunner, m domrepo.Metrics, lgr *applogger.Logger, cfg *config.Config) *mid.SnapshotPipeline {
	var opts []mid.PipelineOption
	if cfg.Pipeline.CycleInterval > 0 {
		opts = append(opts, mid.WithMinInterval(cfg.Pipeline.CycleInterval))
	}
	return mid.NewSnapshotPipeline(cycle, m, lgr, opts...)
}

// ProvideReplayEngine creates the session replay engine over the durable
// decision log.
func ProvideReplayEngine(rec *recorder.CHRecorder, lgr *applogger.Logger) *replay.Engine {
	return replay.NewEngine(rec, lgr)
}

// ProvideHTTPHandler creates the read-only HTTP API.
func ProvideHTTPHandler(
	lgr *applogger.Logger,
	rec *recorder.CHRecorder,
	store *knowledge.FileStore,
	pipeline *mid.SnapshotPipeline,
	replayer *replay.Engine,
	loc *time.Location,
) xhttp.Handler {
	return api.NewDecisionsEchoHandler(lgr, rec, store, pipeline, replayer, loc)
}

// ProvideApp assembles the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	stream domrepo.SnapshotStream,
	pipeline *mid.SnapshotPipeline,
	consumer *pkgkafka.Consumer,
	oh pkgkafka.MessageHandler,
	q *pkgqueue.RedisQueue,
	rec *recorder.CHRecorder,
	reviewer *usecase.SessionReviewer,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
	loc *time.Location,
) *server.App {
	// registered here rather than in ProvideQueue because the retry job
	// needs the recorder, which needs the queue
	q.RegisterJob(recorder.NewRetryJob(rec, lgr))

	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}

	app := server.New(cfg, lgr, stream, pipeline, consumer, oh, q, reviewer, chClient, loc)
	app.SetHTTPHandler(httpHandler)
	return app
}
