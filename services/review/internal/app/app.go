package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/healthapp/reviews/pkg/database"
	"github.com/healthapp/reviews/pkg/health"
	pkgkafka "github.com/healthapp/reviews/pkg/kafka"
	"github.com/healthapp/reviews/pkg/middleware"
	"github.com/healthapp/reviews/pkg/tracing"
	"github.com/healthapp/reviews/services/review/internal/auth"
	"github.com/healthapp/reviews/services/review/internal/config"
	"github.com/healthapp/reviews/services/review/internal/event"
	handler "github.com/healthapp/reviews/services/review/internal/handler/http"
	"github.com/healthapp/reviews/services/review/internal/repository/postgres"
	"github.com/healthapp/reviews/services/review/internal/repository/redis"
	"github.com/healthapp/reviews/services/review/internal/service"
	"github.com/healthapp/reviews/services/review/migrations"
)

// idempotencyTTL bounds how long consumed event IDs are remembered.
const idempotencyTTL = 24 * time.Hour

// App wires together all dependencies and runs the review service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	consumer       *pkgkafka.Consumer
	limiter        *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.Postgres.Host),
		slog.Int("port", cfg.Postgres.Port),
		slog.String("database", cfg.Postgres.DBName),
	)

	reg := prometheus.DefaultRegisterer
	reg.MustRegister(database.NewPoolCollector(pool, "review"))

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	// Initialize Redis for the rating cache and consumer idempotency.
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis.Addr()))

	// Initialize Kafka producer.
	producer := pkgkafka.NewProducer(cfg.Kafka, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.Kafka.Brokers))

	// Build the dependency graph.
	reviewRepo := postgres.NewReviewRepository(pool)
	voteRepo := postgres.NewVoteRepository(pool)
	reportRepo := postgres.NewReportRepository(pool)
	ratingRepo := postgres.NewRatingRepository(pool)
	ratingCache := redis.NewRatingCache(redisClient, cfg.RatingCacheTTL)
	eventProducer := event.NewProducer(producer, logger)

	moderator := service.AutoModerator{
		Enabled:  cfg.AutoApprove,
		MinChars: cfg.MinAutoApproveChars,
	}
	if cfg.ProfanityFilter {
		moderator.Profanity = regexp.MustCompile(cfg.ProfanityPattern)
	}

	ratingService := service.NewRatingService(reviewRepo, ratingRepo, ratingCache, eventProducer, reg, logger)
	reviewService := service.NewReviewService(reviewRepo, voteRepo, reportRepo, ratingService, eventProducer,
		moderator, cfg.ReportFlagThreshold, logger)
	moderationService := service.NewModerationService(reviewRepo, reportRepo, eventProducer, logger)

	// Rating projector: recompute aggregates when reviews become visible.
	ratingConsumer := event.NewConsumer(ratingService, logger)
	consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.ConsumerGroup,
		Topics:  event.ConsumedTopics,
	}, pkgkafka.IdempotentHandler(
		pkgkafka.NewRedisIdempotencyStore(redisClient, "review:consumed:", idempotencyTTL),
		ratingConsumer.Handle,
		logger,
	), logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", producer.Ping)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	// HTTP router.
	router := handler.NewRouter(handler.RouterDeps{
		Reviews:     reviewService,
		Ratings:     ratingService,
		Moderation:  moderationService,
		Tokens:      jwtManager.TokenValidator(),
		RateLimiter: limiter,
		Metrics:     middleware.NewHTTPMetrics(reg, "review"),
		Health:      healthHandler,
		Gatherer:    prometheus.DefaultGatherer,
		CORS:        cfg.CORS,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		consumer:       consumer,
		limiter:        limiter,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server, the rating consumer and the rate limiter
// sweeper, and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	stopSweep := make(chan struct{})
	defer close(stopSweep)
	go a.limiter.Run(stopSweep)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	go func() {
		if err := a.consumer.Start(consumerCtx); err != nil {
			errCh <- fmt.Errorf("rating consumer: %w", err)
		}
	}()

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		stopConsumer()
		return errors.Join(err, a.Shutdown())
	}

	stopConsumer()
	return a.Shutdown()
}

// Shutdown gracefully stops all components: HTTP first so in-flight requests
// can still publish, then the tracer, Kafka, Redis and finally PostgreSQL.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.consumer.Close(); err != nil {
		a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
