// Package app assembles the service from configuration. The API server, the
// measurement worker and the CLI serve command all start from here.
package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/application/knowledgesync"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/config"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/source"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/interfaces/consumer"
	httpserver "github.com/turtacn/NeuroRisk-Intelligence/internal/interfaces/http"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/interfaces/http/middleware"
)

// ServiceName tags logs and published events.
const ServiceName = "neurorisk"

// Role selects which long-running components Run starts.
type Role int

const (
	// RoleAPI serves the HTTP API and watches the knowledge files.
	RoleAPI Role = 1 << iota
	// RoleWorker consumes measurements from Kafka. Its HTTP listener only
	// exposes health and metrics.
	RoleWorker

	RoleAll = RoleAPI | RoleWorker
)

func (r Role) String() string {
	var parts []string
	if r&RoleAPI != 0 {
		parts = append(parts, "api")
	}
	if r&RoleWorker != 0 {
		parts = append(parts, "worker")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// ParseRole accepts api, worker or all.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "api":
		return RoleAPI, nil
	case "worker":
		return RoleWorker, nil
	case "all", "api+worker":
		return RoleAll, nil
	}
	return 0, fmt.Errorf("app: unknown role %q; expected api|worker|all", s)
}

// Options adjust how New builds the App.
type Options struct {
	Role    Role
	Version string
	// Logger replaces the logger built from cfg.Log.
	Logger logging.Logger
}

// App owns every component built from one Config.
type App struct {
	cfg     *config.Config
	role    Role
	version string
	logger  logging.Logger

	collector prom.MetricsCollector
	metrics   *prom.AppMetrics
	source    source.Source
	loader    *source.Loader
	service   *assessment.Service
	producer  *kafka.Producer
	consumer  *kafka.Consumer
	intake    *consumer.MeasurementHandler
	redis     *redis.Client
	sync      *knowledgesync.Coordinator
	server    *httpserver.Server

	closeOnce sync.Once
}

// New builds the App and performs the initial knowledge load. A knowledge
// base that cannot be loaded fails startup.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	if opts.Role == 0 {
		opts.Role = RoleAPI
	}
	a := &App{cfg: cfg, role: opts.Role, version: opts.Version, logger: opts.Logger}
	// Release whatever was opened before a failure.
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.logger == nil {
		if a.logger, err = logging.NewLogger(logging.LogConfig{
			Level:       cfg.Log.Level,
			Format:      cfg.Log.Format,
			OutputPaths: cfg.Log.OutputPaths,
			Service:     ServiceName,
		}); err != nil {
			return nil, err
		}
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	if cfg.Metrics.Enabled {
		if a.collector, err = prom.NewMetricsCollector(prom.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableGoMetrics:      cfg.Metrics.EnableGoMetrics,
			EnableProcessMetrics: cfg.Metrics.EnableProcessMetrics,
		}, a.logger); err != nil {
			return nil, err
		}
		a.metrics = prom.NewAppMetrics(a.collector)
	}

	if a.source, err = NewKnowledgeSource(ctx, cfg, a.logger); err != nil {
		return nil, err
	}
	a.loader = source.NewLoader(a.source, a.logger.Named("knowledge"))

	svcOpts := []assessment.Option{
		assessment.WithHistory(assessment.NewHistory(cfg.Assessment.HistoryLimit)),
		assessment.WithLogger(a.logger),
		assessment.WithBatchConcurrency(cfg.Assessment.BatchConcurrency),
		assessment.WithMaxBatchSize(cfg.Assessment.MaxBatchSize),
		assessment.WithPublishTimeout(cfg.Assessment.PublishTimeout),
	}
	if a.metrics != nil {
		svcOpts = append(svcOpts, assessment.WithMetrics(a.metrics))
	}
	if cfg.Kafka.Enabled {
		if err = a.initKafka(ctx); err != nil {
			return nil, err
		}
		svcOpts = append(svcOpts, assessment.WithPublisher(
			kafka.NewEventPublisher(a.producer, cfg.Kafka.AssessmentTopic, ServiceName, a.logger,
				kafka.WithCircuitBreaker(cfg.Kafka.BreakerThreshold, cfg.Kafka.BreakerTimeout))))
	}
	a.service = assessment.NewService(svcOpts...)

	if err = a.service.ReloadFrom(ctx, a.loader); err != nil {
		return nil, err
	}
	if err = a.initSync(ctx); err != nil {
		return nil, err
	}

	a.server = httpserver.NewServer(httpserver.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, a.buildRouter(), a.logger)
	return a, nil
}

// NewKnowledgeSource returns the source selected by cfg.Knowledge.Source.
// For MinIO it connects and checks the bucket first.
func NewKnowledgeSource(ctx context.Context, cfg *config.Config, logger logging.Logger) (source.Source, error) {
	switch cfg.Knowledge.Source {
	case config.SourceMinIO:
		src, err := minio.Connect(ctx, minio.Config{
			Endpoint:        cfg.MinIO.Endpoint,
			AccessKeyID:     cfg.MinIO.AccessKeyID,
			SecretAccessKey: cfg.MinIO.SecretAccessKey,
			UseSSL:          cfg.MinIO.UseSSL,
			Region:          cfg.MinIO.Region,
			Bucket:          cfg.MinIO.Bucket,
			Prefix:          cfg.MinIO.Prefix,
			ProfilesObject:  cfg.Knowledge.ProfilesFile,
			CatalogObject:   cfg.Knowledge.CatalogFile,
			ConnectTimeout:  cfg.MinIO.ConnectTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceFile, "":
		return source.NewFileSource(cfg.Knowledge.Dir, cfg.Knowledge.ProfilesFile, cfg.Knowledge.CatalogFile), nil
	default:
		return nil, fmt.Errorf("app: unknown knowledge source %q", cfg.Knowledge.Source)
	}
}

func securityConfig(k config.KafkaConfig) kafka.SecurityConfig {
	return kafka.SecurityConfig{
		SASLEnabled:   k.SASLMechanism != "",
		SASLMechanism: k.SASLMechanism,
		SASLUsername:  k.SASLUsername,
		SASLPassword:  k.SASLPassword,
		TLSEnabled:    k.TLSCertPath != "",
		TLSCertPath:   k.TLSCertPath,
	}
}

func (a *App) initKafka(ctx context.Context) error {
	k := a.cfg.Kafka
	sec := securityConfig(k)

	if k.AutoCreateTopics {
		tm, err := kafka.NewTopicManager(k.Brokers, a.logger)
		if err != nil {
			return err
		}
		names := kafka.TopicNames{
			Assessments:  k.AssessmentTopic,
			Measurements: k.MeasurementTopic,
			DeadLetter:   k.DeadLetterTopic,
		}
		err = tm.EnsureTopics(ctx, kafka.ServiceTopics(names, k.NumPartitions, k.ReplicationFactor))
		_ = tm.Close()
		if err != nil {
			return err
		}
	}

	p, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:          k.Brokers,
		Acks:             k.Acks,
		MaxRetries:       k.MaxRetries,
		CompressionCodec: k.Compression,
		Security:         sec,
	}, a.logger.Named("producer"))
	if err != nil {
		return err
	}
	a.producer = p

	if a.role&RoleWorker == 0 {
		return nil
	}
	c, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         k.Brokers,
		GroupID:         k.GroupID,
		Topics:          []string{k.MeasurementTopic},
		AutoOffsetReset: k.AutoOffsetReset,
		Security:        sec,
		Retry: kafka.RetryConfig{
			MaxRetries:      k.MaxRetries,
			DeadLetterTopic: k.DeadLetterTopic,
		},
	}, a.logger.Named("consumer"))
	if err != nil {
		return err
	}
	a.consumer = c
	return nil
}

// initSync builds the reload coordinator. With Redis enabled, reloads are
// serialized by a shared lock and announced to peer replicas.
func (a *App) initSync(ctx context.Context) error {
	opts := []knowledgesync.Option{
		knowledgesync.WithLogger(a.logger.Named("sync")),
		knowledgesync.WithNodeID(a.cfg.Redis.NodeID),
	}
	if a.metrics != nil {
		opts = append(opts, knowledgesync.WithMetrics(a.metrics))
	}
	if r := a.cfg.Redis; r.Enabled {
		client, err := redis.NewClient(ctx, redis.Config{
			Mode:          r.Mode,
			Addr:          r.Addr,
			MasterName:    r.MasterName,
			SentinelAddrs: r.SentinelAddrs,
			ClusterAddrs:  r.ClusterAddrs,
			Username:      r.Username,
			Password:      r.Password,
			DB:            r.DB,
			PoolSize:      r.PoolSize,
			DialTimeout:   r.DialTimeout,
			TLSEnabled:    r.TLSEnabled,
			TLSCAFile:     r.TLSCAFile,
			KeyPrefix:     r.KeyPrefix,
		}, a.logger.Named("redis"))
		if err != nil {
			return err
		}
		a.redis = client
		opts = append(opts,
			knowledgesync.WithBus(knowledgesync.NewRedisBus(client, a.logger.Named("sync"))),
			knowledgesync.WithLocker(redis.NewMutex(client, knowledgesync.LockName, redis.WithLockTTL(r.LockTTL))))
	}
	a.sync = knowledgesync.NewCoordinator(a.Reload, a.service, opts...)
	return nil
}

func (a *App) buildRouter() http.Handler {
	rc := httpserver.RouterConfig{
		Logging:     middleware.DefaultLoggingConfig(),
		MaxBodySize: a.cfg.Server.MaxBodySize,
		AdminToken:  a.cfg.Server.AdminToken,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: a.cfg.Server.RateLimitRPS,
			Burst:             a.cfg.Server.RateLimitBurst,
		},
		Logger: a.logger.Named("http"),
	}
	if a.metrics != nil {
		rc.Metrics = a.metrics
		rc.MetricsHandler = a.collector.Handler()
		rc.MetricsPath = a.cfg.Metrics.Path
	}

	kh := handlers.NewKnowledgeHandler(a.service)
	checkers := []handlers.HealthChecker{kh.ReadinessChecker()}
	if a.redis != nil {
		checkers = append(checkers, handlers.CheckerFunc{ComponentName: "redis", Fn: a.redis.Ping})
	}
	rc.HealthHandler = handlers.NewHealthHandler(a.version, checkers...)
	if a.role&RoleAPI != 0 {
		rc.KnowledgeHandler = kh
		rc.AssessmentHandler = handlers.NewAssessmentHandler(a.service)
		rc.ReloadHandler = handlers.NewReloadHandler(a.sync)
		cors := middleware.DefaultCORSConfig()
		rc.CORS = &cors
	}
	return httpserver.NewRouter(rc)
}

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the root logger.
func (a *App) Logger() logging.Logger { return a.logger }

// Service returns the assessment service.
func (a *App) Service() *assessment.Service { return a.service }

// Metrics returns the application metrics, or nil when metrics are disabled.
func (a *App) Metrics() *prom.AppMetrics { return a.metrics }

// Handler returns the HTTP route tree.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Reload reloads the knowledge base from its configured source.
func (a *App) Reload(ctx context.Context) error {
	return a.service.ReloadFrom(ctx, a.loader)
}

// Sync returns the reload coordinator.
func (a *App) Sync() *knowledgesync.Coordinator { return a.sync }

// Run starts the components of the App's role and blocks until ctx is done
// or one of them fails. It shuts the HTTP server down before returning.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	var watcher *source.Watcher
	if fs, ok := a.source.(*source.FileSource); ok && a.role&RoleAPI != 0 && a.cfg.Knowledge.Watch {
		w, err := source.NewWatcher(fs, a.Reload, a.cfg.Knowledge.WatchDebounce, a.logger)
		if err != nil {
			return fmt.Errorf("knowledge watcher: %w", err)
		}
		watcher = w
	}
	if a.consumer != nil {
		a.intake = consumer.NewMeasurementHandler(a.cfg.Kafka.MeasurementTopic, a.service, a.ingestMetrics(), a.logger)
		a.consumer.Subscribe(a.intake.Topic(), a.intake.Handle)
		if err := a.consumer.Start(gctx); err != nil {
			if watcher != nil {
				watcher.Stop()
			}
			return err
		}
	}

	a.logger.Info("starting",
		logging.String("role", a.role.String()),
		logging.String("version", a.version),
		logging.String("knowledge_source", a.source.Describe()),
		logging.Int("port", a.cfg.Server.Port))

	g.Go(func() error {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.server.Stop(sctx)
	})
	if a.role&RoleAPI != 0 {
		g.Go(func() error { return a.sync.Run(gctx) })
	}
	if watcher != nil {
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && !stderrors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	a.logger.Info("stopped", logging.String("role", a.role.String()))
	return err
}

func (a *App) ingestMetrics() consumer.IngestMetrics {
	if a.metrics == nil {
		return nil
	}
	return a.metrics
}

// Close releases Kafka and Redis clients and flushes the logger. It is safe to call
// more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.consumer != nil {
			st := a.consumer.GetMetrics()
			a.logger.Info("measurement consumer stopped",
				logging.Int64("processed", st.MessagesProcessed),
				logging.Int64("failed", st.MessagesFailed),
				logging.Int64("retried", st.MessagesRetried),
				logging.Int64("dead_lettered", st.MessagesDeadLettered))
			if err := a.consumer.Close(); err != nil {
				a.logger.Warn("consumer close failed", logging.Err(err))
			}
		}
		if a.producer != nil {
			st := a.producer.GetMetrics()
			a.logger.Info("event producer stopped",
				logging.Int64("sent", st.MessagesSent),
				logging.Int64("failed", st.MessagesFailed),
				logging.Int64("bytes", st.BytesSent))
			if err := a.producer.Close(); err != nil {
				a.logger.Warn("producer close failed", logging.Err(err))
			}
		}
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				a.logger.Warn("redis close failed", logging.Err(err))
			}
		}
		if a.logger != nil {
			_ = a.logger.Sync()
		}
	})
}
