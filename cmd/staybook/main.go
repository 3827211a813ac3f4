package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	availabilityapp "staybook/internal/app/handlers/availability"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/middleware"
	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/schedule"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainpricing "staybook/internal/domain/pricing"
	"staybook/internal/infra/broker/kafka"
	"staybook/internal/infra/config"
	mongodb "staybook/internal/infra/db/mongo"
	ginserver "staybook/internal/infra/http/gin"
	redislock "staybook/internal/infra/lock/redis"
	"staybook/internal/infra/obs"
	infraoutbox "staybook/internal/infra/outbox"
	"staybook/internal/infra/storage/memory"
	"staybook/internal/infra/validation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger = obs.NewLogger(cfg.Env)

	metrics := obs.NewMetrics()
	app, err := buildApplication(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger, Metrics: metrics}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	var wg sync.WaitGroup
	for name, run := range app.background {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background loop stopped", "loop", name, "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
	}
	wg.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, closeFn := range app.closers {
		if err := closeFn(closeCtx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers   ginserver.Handlers
	ready      func(context.Context) error
	background map[string]func(context.Context) error
	closers    []func(context.Context) error
}

// storage is what a backend hands to the application layer.
type storage struct {
	factory     uow.UoWFactory
	outbox      appoutbox.Outbox
	idempotency middleware.IdempotencyStore
	ready       func(context.Context) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *obs.Metrics) (*application, error) {
	app := &application{background: map[string]func(context.Context) error{}}

	publisher, err := buildPublisher(cfg, logger, app)
	if err != nil {
		return nil, err
	}

	var store storage
	switch cfg.StorageMode {
	case config.StorageMongo:
		store, err = buildMongoStorage(ctx, cfg, logger, metrics, publisher, app)
	default:
		store, err = buildMemoryStorage(cfg, logger, metrics, publisher, app)
	}
	if err != nil {
		return nil, err
	}

	locker, lockReady := buildLocker(ctx, cfg, logger, app)
	app.ready = func(ctx context.Context) error {
		return errors.Join(store.ready(ctx), lockReady(ctx))
	}

	clock := policies.SystemClock{}
	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	bookingapp.Register(commandBus, queryBus, bookingapp.Deps{
		UoWFactory:  store.factory,
		Clock:       clock,
		Pricing:     domainpricing.Policy{ServiceFeeBasisPoints: cfg.ServiceFeeBasisPoints},
		Rules:       domainbooking.Rules{CompletionGrace: cfg.CompletionGrace},
		Encoder:     appoutbox.JSONEventEncoder{IDGenerator: uuid.NewString},
		IDGenerator: uuid.NewString,
		Metrics:     metrics,
		Logger:      logger,
	})
	availabilityapp.Register(queryBus, store.factory)

	validator := validation.New()
	commandBusWithMiddleware := commandChain(commandBus, validator, metrics, store, locker, logger)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(middleware.RequireActor{}),
	)

	sweeper := &schedule.CompletionSweeper{
		Commands: commandBusWithMiddleware,
		Queries:  queryBusWithMiddleware,
		Clock:    clock,
		Grace:    cfg.CompletionGrace,
		Interval: cfg.CompletionSweepInterval,
		Logger:   logger,
	}
	app.background["completion_sweeper"] = sweeper.Run

	var auth ginserver.AuthMiddleware
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, every booking route will answer 401")
	} else {
		auth = ginserver.AuthMiddleware{Secret: []byte(cfg.JWTSecret), Logger: logger}
	}

	app.handlers = ginserver.Handlers{
		Booking: ginserver.BookingHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
			Logger:   logger,
		},
		Availability: ginserver.AvailabilityHandler{
			Queries: queryBusWithMiddleware,
			Logger:  logger,
		},
		AuthMiddleware: auth.Handle,
		Metrics:        metrics.Handler(),
	}
	return app, nil
}

// commandChain wraps the command bus, outermost first. The relay flush runs
// after the listing lock is released so broker latency stays out of the
// critical section.
func commandChain(bus commands.Bus, validator middleware.Validator, metrics policies.Metrics, store storage, locker policies.ListingLocker, logger *slog.Logger) commands.Bus {
	return middleware.ChainCommands(
		bus,
		middleware.Validation(validator),
		middleware.Instrument(metrics),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.OutboxFlush(store.outbox, logger),
		middleware.ListingLock(locker),
		middleware.Idempotency(store.idempotency, nil, logger),
		middleware.Transaction(store.factory, nil),
	)
}

// buildPublisher returns the Kafka relay when brokers are configured, or nil.
func buildPublisher(cfg config.Config, logger *slog.Logger, app *application) (appoutbox.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("KAFKA_BROKERS not set, lifecycle events stay local")
		return nil, nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, "staybook", nil)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	app.closers = append(app.closers, func(context.Context) error { return producer.Close() })
	logger.Info("kafka relay enabled", "brokers", cfg.KafkaBrokers, "topic_prefix", cfg.KafkaTopicPrefix)
	return &infraoutbox.Relay{
		Producer:    producer,
		TopicPrefix: cfg.KafkaTopicPrefix,
		IDGenerator: uuid.NewString,
	}, nil
}

func buildMemoryStorage(cfg config.Config, logger *slog.Logger, metrics *obs.Metrics, publisher appoutbox.Publisher, app *application) (storage, error) {
	listings := memory.NewListingRepository()
	loadListingFixtures(listings, cfg.ListingsFixtures, logger)

	if publisher == nil {
		publisher = &memory.EventLog{}
	}
	relay := memory.NewOutbox(publisher)
	store := memory.NewStore(listings, relay)

	// Records that failed to publish on the request path are retried here.
	app.background["outbox_relay"] = func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.OutboxPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := relay.Flush(ctx); err != nil && ctx.Err() == nil {
					logger.Warn("outbox relay retry failed", "pending", relay.Pending(), "error", err)
				}
				metrics.SetOutboxPending(relay.Pending())
			}
		}
	}
	return storage{
		factory:     store,
		outbox:      relay,
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		ready:       store.Ping,
	}, nil
}

func buildMongoStorage(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *obs.Metrics, publisher appoutbox.Publisher, app *application) (storage, error) {
	client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storage{}, fmt.Errorf("mongo connect: %w", err)
	}
	app.closers = append(app.closers, client.Close)

	outboxStore := infraoutbox.NewStore(client.DB)
	idempotency := mongodb.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL)
	if err := errors.Join(
		client.EnsureIndexes(ctx),
		outboxStore.EnsureIndexes(ctx),
		idempotency.EnsureIndexes(ctx),
	); err != nil {
		return storage{}, fmt.Errorf("mongo indexes: %w", err)
	}

	listings := mongodb.NewListingRepository(client.DB)
	seed := memory.NewListingRepository()
	loadListingFixtures(seed, cfg.ListingsFixtures, logger)
	for _, snap := range seed.All() {
		if err := listings.Put(ctx, snap); err != nil {
			return storage{}, fmt.Errorf("seed listing %s: %w", snap.ID, err)
		}
	}

	if publisher == nil {
		logger.Warn("outbox worker disabled, records accumulate until a broker is configured")
	} else {
		worker := &infraoutbox.Worker{
			Store:     outboxStore,
			Publisher: publisher,
			Interval:  cfg.OutboxPollInterval,
			Backoff:   cfg.RetryBackoff,
			Logger:    logger,
		}
		app.background["outbox_worker"] = worker.Run
	}
	app.background["outbox_gauge"] = func(ctx context.Context) error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if n, err := outboxStore.Pending(ctx); err == nil {
					metrics.SetOutboxPending(int(n))
				}
			}
		}
	}

	return storage{
		factory: mongodb.Factory{
			DB:          client.DB,
			Listings:    listings,
			Outbox:      outboxStore,
			IDGenerator: uuid.NewString,
		},
		outbox:      outboxStore,
		idempotency: idempotency,
		ready:       client.Ping,
	}, nil
}

// buildLocker prefers the Redis lease so replicas serialize on the same
// listing; a single process falls back to the in-memory keyed mutex.
func buildLocker(ctx context.Context, cfg config.Config, logger *slog.Logger, app *application) (policies.ListingLocker, func(context.Context) error) {
	if cfg.RedisAddr == "" {
		return memory.NewKeyedLocker(), func(context.Context) error { return nil }
	}
	client := redislock.NewClient(redislock.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	app.closers = append(app.closers, func(context.Context) error { return client.Close() })
	if err := redislock.Ping(ctx, client); err != nil {
		logger.Warn("redis not reachable yet", "addr", cfg.RedisAddr, "error", err)
	}
	logger.Info("redis listing lock enabled", "addr", cfg.RedisAddr, "ttl", cfg.ListingLockTTL)
	locker := &redislock.Locker{
		Client: client,
		TTL:    cfg.ListingLockTTL,
		Prefix: "staybook:",
		Logger: logger,
	}
	return locker, func(ctx context.Context) error { return redislock.Ping(ctx, client) }
}

func loadListingFixtures(repo *memory.ListingRepository, path string, logger *slog.Logger) {
	if path == "" {
		path = defaultListingFixturesPath()
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Info("listing fixtures file not found, skipping", "path", path)
		return
	}
	n, err := repo.LoadFixturesFile(path)
	if err != nil {
		logger.Warn("listing fixtures load failed", "error", err, "path", path)
		return
	}
	logger.Info("listing fixtures imported", "path", path, "count", n)
}

func defaultListingFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "listings.yaml"),
		filepath.Join("data", "listings.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
