package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/comeencasa/restaurant-api/internal/auth"
	"github.com/comeencasa/restaurant-api/internal/config"
	"github.com/comeencasa/restaurant-api/internal/event"
	handler "github.com/comeencasa/restaurant-api/internal/handler/http"
	"github.com/comeencasa/restaurant-api/internal/notifier"
	"github.com/comeencasa/restaurant-api/internal/repository/postgres"
	"github.com/comeencasa/restaurant-api/internal/service"
	"github.com/comeencasa/restaurant-api/migrations"
	"github.com/comeencasa/restaurant-api/pkg/database"
	"github.com/comeencasa/restaurant-api/pkg/health"
	"github.com/comeencasa/restaurant-api/pkg/httpclient"
	pkgkafka "github.com/comeencasa/restaurant-api/pkg/kafka"
	"github.com/comeencasa/restaurant-api/pkg/tracing"
)

const (
	denylistPrefix    = "restaurant:denylist"
	idempotencyPrefix = "restaurant:notifier:seen"
	idempotencyTTL    = 24 * time.Hour
)

// App wires together all dependencies and runs the restaurant API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	consumers      []*pkgkafka.Consumer
	deadLetters    *pkgkafka.DeadLetterQueue
	httpServer     *http.Server
	shutdownTracer func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	a.shutdownTracer = shutdownTracer

	database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)

	// PostgreSQL
	pgCfg := cfg.Postgres()
	a.pool, err = database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, a.pool, config.ServiceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Redis
	a.redis, err = database.NewRedisClient(ctx, cfg.Redis(), logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))

	// Kafka
	var publisher pkgkafka.Publisher = event.Discard{}
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers, config.ServiceName), logger)
		publisher = a.producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("kafka disabled, events are discarded")
	}
	producer := event.NewProducer(publisher)

	// Repositories
	userRepo := postgres.NewUserRepository(a.pool)
	tokenRepo := postgres.NewRefreshTokenRepository(a.pool)
	menuRepo := postgres.NewMenuRepository(a.pool)
	orderRepo := postgres.NewOrderRepository(a.pool)

	// Auth core
	jwtManager := auth.NewManager(auth.ManagerConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTTL(),
		RefreshTTL:    cfg.RefreshTTL(),
		Issuer:        cfg.JWTIssuer,
	})
	denylist := auth.NewRedisDenylist(a.redis, denylistPrefix)
	guards := handler.Guards{
		Bearer: auth.NewBearerGuard(jwtManager, userRepo, denylist),
		Admin:  auth.NewBasicAuthGuard(cfg.AdminCredentials),
	}

	services := handler.Services{
		Auth:   service.NewAuthService(userRepo, tokenRepo, auth.NewHasher(cfg.BcryptCost), jwtManager, denylist, logger),
		Menu:   service.NewMenuService(menuRepo, producer, logger),
		Orders: service.NewOrderService(orderRepo, menuRepo, producer, logger),
	}

	// Notifications
	if cfg.KafkaEnabled && cfg.NotificationsEnabled {
		dispatcher := notifier.NewDispatcher(BuildSenders(cfg, logger), logger)
		store := pkgkafka.NewRedisIdempotencyStore(a.redis, idempotencyPrefix, idempotencyTTL)
		a.deadLetters = pkgkafka.NewDeadLetterQueue(cfg.KafkaBrokers, logger)
		a.consumers = event.NewConsumers(cfg.KafkaBrokers, a.deadLetters,
			pkgkafka.IdempotentHandler(store, dispatcher.Handle, logger), logger)
		logger.Info("notification consumers initialized",
			slog.Any("senders", dispatcher.Senders()),
			slog.Int("topics", len(a.consumers)),
		)
	}

	// Health checks
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return a.redis.Ping(ctx).Err()
	})
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
	}

	opts := handler.Options{
		ServiceName:    config.ServiceName,
		CORS:           cfg.CORS(),
		PprofAllowlist: cfg.PprofAllowlist(),
	}
	if rl, ok := cfg.AuthRateLimit(); ok {
		opts.AuthRateLimit = &rl
	}
	router := handler.NewRouter(services, guards, healthHandler, logger, opts)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return nil
}

// BuildSenders returns a sender for every configured notification channel.
func BuildSenders(cfg *config.Config, logger *slog.Logger) []notifier.Sender {
	var senders []notifier.Sender

	if cfg.TelegramEnabled() {
		client := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("telegram"),
			logger,
		)
		senders = append(senders, notifier.NewTelegramSender(client, cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.TelegramChatID))
	}

	if cfg.EmailEnabled() {
		senders = append(senders, notifier.NewEmailSender(notifier.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			To:       cfg.NotifyEmails,
		}))
	}

	if len(senders) == 0 {
		logger.Warn("no notification channel configured, notifications are only logged")
	}
	return senders
}

// Run starts the HTTP server and Kafka consumers, then blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	consumerCtx, stopConsumers := context.WithCancel(ctx)
	defer stopConsumers()

	var wg sync.WaitGroup
	for _, c := range a.consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Start(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("kafka consumer error", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	stopConsumers()
	shutdownErr := a.Shutdown()
	wg.Wait()
	return errors.Join(runErr, shutdownErr)
}

// Shutdown stops the HTTP server first so no new events are published, then
// the consumers, the producer and finally the stores.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}
	errs = append(errs, a.closeResources())

	if err := a.shutdownTracer(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		a.logger.Error("shutdown finished with errors", slog.String("error", err.Error()))
	} else {
		a.logger.Info("application shutdown complete")
	}
	return err
}

func (a *App) closeResources() error {
	var errs []error
	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka consumer close: %w", err))
		}
	}
	if a.deadLetters != nil {
		if err := a.deadLetters.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka dead-letter writer close: %w", err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka producer close: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}
