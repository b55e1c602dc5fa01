package di

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	"MarketPulse/internal/domain/service"
	"MarketPulse/internal/handler/api"
	internalrepo "MarketPulse/internal/repository"
	"MarketPulse/internal/service/finnhub"
	"MarketPulse/internal/services/forecast"
	"MarketPulse/internal/services/nn"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	"MarketPulse/pkg/http/middleware"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
	"MarketPulse/pkg/queue"
	"MarketPulse/pkg/scheduler"
	"MarketPulse/pkg/server"
	"MarketPulse/pkg/sqldb"
)

// PredictCLI is what cmd/predict needs.
type PredictCLI struct {
	Batch  *usecase.BatchPredictor
	Logger *applogger.Logger
}

// SyncCLI is what cmd/sync needs.
type SyncCLI struct {
	Sync   *usecase.MarketSync
	Logger *applogger.Logger
}

// ProvideLogger builds the process logger. With the digest enabled, deduplicated warn/error
// lines are shipped to Kafka; producer is nil when Kafka is off.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {}
	if cfg.Log.Digest.Enabled && producer != nil {
		d := applogger.NewDigest(applogger.DigestConfig{
			Interval:  cfg.Log.Digest.Interval,
			Topic:     cfg.Log.Digest.Topic,
			Publisher: producer,
		})
		l.AttachDigest(d)
		cleanup = d.Close
	}
	return l.With(applogger.String("env", cfg.Environment)), cleanup, nil
}

// ProvideRegistry returns a process registry with Go runtime and process collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

// ProvideSQLDB opens the relational database and applies the schema.
func ProvideSQLDB(cfg *config.Config) (*sqlx.DB, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := sqldb.Open(ctx, sqldb.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	return db, func() { _ = db.Close() }, nil
}

func ProvideSQLStore(db *sqlx.DB, l *applogger.Logger) (*internalrepo.SQLStore, error) {
	s := internalrepo.NewSQLStore(db, l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// ProvideClickHouseClient connects only when a storage role is configured for ClickHouse.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.Storage.UsesClickHouse() {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(ctx, pkgch.ClientConfig{
		Host:        ch.Host,
		Port:        ch.Port,
		Database:    ch.Database,
		User:        ch.User,
		Password:    ch.Password,
		UseHTTP:     ch.UseHTTP,
		DialTimeout: ch.DialTimeout,
		ReadTimeout: ch.ReadTimeout,
		MaxExecTime: ch.MaxExecutionTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.CHSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

func ProvideCHStore(ch *pkgch.Client, sql *internalrepo.SQLStore, l *applogger.Logger) *internalrepo.CHStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHStore(ch, sql, l)
}

func ProvidePriceStore(cfg *config.Config, sql *internalrepo.SQLStore, ch *internalrepo.CHStore) repository.PriceHistoryStore {
	if cfg.Storage.Prices == "clickhouse" && ch != nil {
		return ch
	}
	return sql
}

func ProvideForecastStore(cfg *config.Config, sql *internalrepo.SQLStore, ch *internalrepo.CHStore) repository.ForecastStore {
	if cfg.Storage.Forecasts == "clickhouse" && ch != nil {
		return ch
	}
	return sql
}

// ProvideForecastReader reads from wherever forecasts are written, through the cache.
func ProvideForecastReader(cfg *config.Config, sql *internalrepo.SQLStore, ch *internalrepo.CHStore, c cache.Service) *internalrepo.CachedForecastReader {
	var next repository.ForecastReader = sql
	if cfg.Storage.Forecasts == "clickhouse" && ch != nil {
		next = ch
	}
	return internalrepo.NewCachedForecastReader(next, c, cfg.Cache.TTL)
}

// ProvideRedisClient returns nil when redis is disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := cache.DialRedis(context.Background(), cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache is an in-process LRU, layered over redis when redis is enabled.
func ProvideCache(cfg *config.Config, client *redis.Client) (cache.Service, func()) {
	mem := cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Cache.MaxEntries),
		cache.WithMemoryCleanup(cfg.Cache.CleanupPeriod),
	)
	if client == nil {
		return mem, func() { _ = mem.Close() }
	}
	layered := cache.NewLayeredCache(mem, cache.NewRedisCacheFromClient(client, cfg.Redis.Prefix+"cache"), cfg.Cache.TTL)
	return layered, func() { _ = layered.Close() }
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	k := cfg.Kafka
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      k.Brokers,
		RequiredAcks: k.RequiredAcks,
		Compression:  k.Compression,
		MaxAttempts:  k.Producer.MaxAttempts,
		WriteTimeout: k.Producer.WriteTimeout,
		BatchSize:    k.Producer.BatchSize,
		BatchBytes:   k.Producer.BatchBytes,
		Linger:       k.Producer.Linger,
		Async:        k.Producer.Async,
		Registerer:   reg,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

func ProvideForecastPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ForecastPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.Topic)
}

// ModelConfig maps prediction.model onto the network settings.
func ModelConfig(cfg *config.Config) nn.Config {
	m := cfg.Prediction.Model
	return nn.Config{
		Kind:       m.Kind,
		LSTMUnits:  m.LSTMUnits,
		DenseUnits: m.DenseUnits,
		Dropout:    m.Dropout,
		ClipNorm:   m.ClipNorm,
		Ridge:      m.Ridge,
		Seed:       m.Seed,
	}
}

func ProvideModelFactory(cfg *config.Config) (service.RegressorFactory, error) {
	return nn.NewFactory(ModelConfig(cfg))
}

func ProvideEngine(cfg *config.Config, factory service.RegressorFactory, l *applogger.Logger) *forecast.Engine {
	p := cfg.Prediction
	return forecast.NewEngine(forecast.Config{
		WindowSize:     p.WindowSize,
		MaxTrainPoints: p.MaxTrainPoints,
		FeatureOffset:  p.FeatureOffset,
		MinSequences:   p.MinSequences,
		Horizons:       Horizons(cfg),
		Train: service.TrainOptions{
			Epochs:       p.Model.Epochs,
			BatchSize:    p.Model.BatchSize,
			LearningRate: p.Model.LearningRate,
			Shuffle:      true,
		},
	}, factory, l)
}

// Horizons converts configured horizons to domain horizons.
func Horizons(cfg *config.Config) []models.Horizon {
	out := make([]models.Horizon, len(cfg.Prediction.Horizons))
	for i, h := range cfg.Prediction.Horizons {
		out[i] = models.Horizon{Name: h.Name, Days: h.Days}
	}
	return out
}

func ProvideReclaimer(rec *metrics.Recorder, l *applogger.Logger) *usecase.MemoryReclaimer {
	return usecase.NewMemoryReclaimer(rec, l)
}

// ProvideBatchPredictor wires the batch and registers the read cache for invalidation.
func ProvideBatchPredictor(
	cfg *config.Config,
	prices repository.PriceHistoryStore,
	store repository.ForecastStore,
	pub repository.ForecastPublisher,
	engine *forecast.Engine,
	rec *metrics.Recorder,
	reclaimer *usecase.MemoryReclaimer,
	reader *internalrepo.CachedForecastReader,
	l *applogger.Logger,
) *usecase.BatchPredictor {
	b := usecase.NewBatchPredictor(prices, store, pub, engine, rec, reclaimer, usecase.BatchConfig{
		MinHistory:   cfg.Prediction.MinHistory,
		TopN:         cfg.Prediction.TopN,
		Workers:      cfg.Prediction.Workers,
		ReclaimEvery: cfg.Prediction.ReclaimEvery,
	}, l)
	b.OnComplete(reader)
	return b
}

// ProvideQueue returns nil unless both the queue and redis are enabled.
func ProvideQueue(cfg *config.Config, client *redis.Client, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || client == nil {
		return nil
	}
	return queue.NewRedisQueue(l, queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
		PopTimeout: cfg.Queue.PollInterval,
		KeyPrefix:  cfg.Redis.Prefix + "queue:" + cfg.Queue.Name,
	}, client)
}

func ProvidePredictions(cfg *config.Config, reader *internalrepo.CachedForecastReader, q *queue.RedisQueue) *usecase.Predictions {
	var pub queue.Publisher
	if q != nil {
		pub = q
	}
	return usecase.NewPredictions(reader, pub, Horizons(cfg), "1w")
}

func ProvideHTTPServer(cfg *config.Config, reg *prometheus.Registry, preds *usecase.Predictions, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(reg, cfg.Metrics.Path))
	}
	if rl := cfg.Server.RateLimit; rl.Enabled {
		opts = append(opts, xhttp.WithRateLimit(middleware.RateLimitConfig{
			PerSecond: rl.PerSecond,
			Burst:     int(rl.Burst),
			IdleTTL:   10 * time.Minute,
		}))
	}
	return xhttp.NewServer(l, []xhttp.Handler{api.NewPredictionsEchoHandler(l, preds)}, opts...)
}

func ProvideScheduler(l *applogger.Logger) *scheduler.Scheduler {
	return scheduler.New(l)
}

func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	q *queue.RedisQueue,
	sched *scheduler.Scheduler,
	batch *usecase.BatchPredictor,
) *server.App {
	return server.New(cfg, l, srv, q, sched, batch)
}

func ProvideFinnhubClient(cfg *config.Config, l *applogger.Logger) *finnhub.Client {
	return finnhub.New(finnhub.Config{
		APIKey:            cfg.Finnhub.APIKey,
		BaseURL:           cfg.Finnhub.BaseURL,
		Timeout:           cfg.Finnhub.Timeout,
		RequestsPerMinute: cfg.Finnhub.RequestsPerMinute,
	}, l)
}

func ProvideMarketSync(cfg *config.Config, src *finnhub.Client, store *internalrepo.SQLStore, l *applogger.Logger) *usecase.MarketSync {
	return usecase.NewMarketSync(src, store, cfg.Sync.Universe, cfg.Sync.Concurrency, l)
}
