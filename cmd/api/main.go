package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/task-service/internal/api/http"
	"github.com/spec-kit/task-service/internal/api/http/handlers"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/observability"
	"github.com/spec-kit/task-service/internal/persistence"
	"github.com/spec-kit/task-service/internal/ratelimit"
	"github.com/spec-kit/task-service/internal/repository"
	"github.com/spec-kit/task-service/internal/service"
	"github.com/spec-kit/task-service/internal/worker"
)

type repositories struct {
	users   repository.UserRepository
	tasks   repository.TaskRepository
	tokens  repository.TokenRepository
	history repository.TaskHistoryRepository
	tx      repository.TxRunner
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	logger = logger.With(zap.String("service", cfg.App.Name), zap.String("env", cfg.App.Env))
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos := buildRepositories(pg)

	notifier := worker.NewNotificationWorker(events.NewInMemoryDispatcher(), cfg.Notification, logger)
	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := worker.StartNotificationWorker(workerCtx, notifier,
		service.NewNotificationService(notifier, logger, cfg.Notification))

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:  repos.users,
		TokenRepo: repos.tokens,
		Logger:    logger,
	})
	taskService := service.NewTaskService(service.TaskDependencies{
		TaskRepo:    repos.tasks,
		UserRepo:    repos.users,
		HistoryRepo: repos.history,
		Tx:          repos.tx,
		Dispatcher:  notifier,
		Logger:      logger,
	})

	metrics := observability.NewMetrics()
	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())

	var pgPinger handlers.Pinger
	if pg.Enabled() {
		pgPinger = pg
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pgPinger, redis),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tasks:          handlers.NewTasksHandler(taskService),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
		RateLimit: ratelimit.Middleware(
			ratelimit.NewLimiter(redis.Client, cfg.RateLimit.KeyPrefix),
			cfg.RateLimit,
			logger,
		),
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	stopWorker()
	if err := <-workerDone; err != nil {
		logger.Warn("notification worker", zap.Error(err))
	}
}

// buildRepositories picks Postgres when a pool exists and the in-memory store otherwise.
func buildRepositories(pg *persistence.Postgres) repositories {
	if !pg.Enabled() {
		store := repository.NewMemoryStore()
		return repositories{
			users:   store.Users(),
			tasks:   store.Tasks(),
			tokens:  store.Tokens(),
			history: store.History(),
			tx:      store,
		}
	}
	pool := pg.PoolHandle()
	return repositories{
		users:   repository.NewUserRepository(pool),
		tasks:   repository.NewTaskRepository(pool),
		tokens:  repository.NewTokenRepository(pool),
		history: repository.NewTaskHistoryRepository(pool),
		tx:      repository.NewTxRunner(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
