package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/tournament-bracket/alerts"
	"github.com/Dosada05/tournament-bracket/brackets"
	"github.com/Dosada05/tournament-bracket/config"
	"github.com/Dosada05/tournament-bracket/db"
	"github.com/Dosada05/tournament-bracket/events"
	"github.com/Dosada05/tournament-bracket/handlers"
	"github.com/Dosada05/tournament-bracket/metrics"
	"github.com/Dosada05/tournament-bracket/models"
	"github.com/Dosada05/tournament-bracket/repositories"
	api "github.com/Dosada05/tournament-bracket/routes"
	"github.com/Dosada05/tournament-bracket/scheduler"
	"github.com/Dosada05/tournament-bracket/services"
	"github.com/Dosada05/tournament-bracket/storage"
	"github.com/go-chi/chi/v5"
	"gopkg.in/natefinch/lumberjack.v2"
)

const shutdownTimeout = 15 * time.Second

func newLogger(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     28, // дней
			Compress:   true,
		})
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("store", cfg.Store),
		slog.Int("group_size", cfg.Engine.GroupSize))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Хранилище сеток
	var repo repositories.BracketRepository
	switch cfg.Store {
	case config.StoreMemory:
		repo = repositories.NewMemoryBracketRepository()
		logger.Warn("using in-memory bracket store, data is lost on restart")
	default:
		dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			} else {
				logger.Info("database connection closed")
			}
		}()
		logger.Info("database connection established")

		if cfg.MigrateOnStart {
			if err := db.Migrate(ctx, dbConn); err != nil {
				logger.Error("failed to apply migrations", slog.Any("error", err))
				os.Exit(1)
			}
			logger.Info("migrations applied")
		}
		repo = repositories.NewPostgresBracketRepository(dbConn)
	}

	// Метрики и алерты
	recorder := metrics.NewRecorder()

	var alerter services.IntegrityAlerter
	var sentryAlerter *alerts.SentryAlerter
	if cfg.SentryDSN != "" {
		sentryAlerter, err = alerts.NewSentryAlerter(alerts.SentryConfig{DSN: cfg.SentryDSN, Environment: cfg.Environment}, logger)
		if err != nil {
			logger.Error("failed to initialize sentry", slog.Any("error", err))
			os.Exit(1)
		}
		alerter = sentryAlerter
		logger.Info("sentry alerts enabled")
	}

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger)
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	// Движок сетки
	topology := brackets.NewTwoGroupDoubleElimination()
	gate := services.NewStageGate()
	resolver := services.NewAdvancementResolver(gate, recorder, logger)
	bracketOpts := services.BracketOptions{
		DefaultGroupSize: cfg.Engine.GroupSize,
		SplitPolicy:      models.SplitPolicy(cfg.Engine.SplitPolicy),
		MaxTxRetries:     cfg.Engine.TxMaxRetries,
	}

	// Публикация событий
	publishers := events.Multi{
		events.LogPublisher{Logger: logger, Level: slog.LevelDebug},
		events.NewHubPublisher(wsHub),
	}
	if cfg.RedisURL != "" {
		redisClient, err := events.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisClient.Close()
		publishers = append(publishers, events.NewRedisPublisher(redisClient, logger))
		logger.Info("redis event publisher enabled")
	}

	var archiver *services.SnapshotArchiver
	if cfg.R2.Enabled() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
			KeyPrefix:       "brackets",
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		viewer := services.NewBracketService(repo, topology, gate, resolver, nil, logger, bracketOpts)
		archiver = services.NewSnapshotArchiver(viewer, uploader, logger)
		publishers = append(publishers, archiver)
		logger.Info("bracket snapshot archive enabled")
	}

	// Инициализация сервисов
	bracketService := services.NewBracketService(repo, topology, gate, resolver, publishers, logger, bracketOpts)
	matchService := services.NewMatchService(repo, resolver, publishers, recorder, alerter, logger,
		services.MatchOptions{MaxTxRetries: cfg.Engine.TxMaxRetries})
	consistencyService := services.NewConsistencyService(repo, recorder, logger, cfg.Engine.SweepConcurrency)
	logger.Info("Services initialized")

	// Планировщик проверок целостности
	sched, err := scheduler.New(cfg.Engine.ConsistencySchedule, consistencyService, logger)
	if err != nil {
		logger.Error("failed to create scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	sched.Start()

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router,
		api.Config{
			JWTSecret:       []byte(cfg.JWTSecretKey),
			OperatorKeyHash: []byte(cfg.OperatorKeyHash),
			CORSOrigins:     cfg.CORSOrigins,
			Metrics:         recorder.Middleware,
			MetricsHandler:  recorder.Handler(),
			Health:          handlers.Health(repo),
		},
		api.Handlers{
			Bracket:   handlers.NewBracketHandler(bracketService),
			Match:     handlers.NewMatchHandler(bracketService, matchService),
			Operator:  handlers.NewOperatorHandler(consistencyService, matchService),
			WebSocket: handlers.NewWebSocketHandler(wsHub, bracketService, cfg.CORSOrigins),
		},
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
	}
	sched.Stop(shutdownCtx)
	if archiver != nil {
		archiver.Wait()
	}
	if sentryAlerter != nil {
		sentryAlerter.Flush()
	}
	logger.Info("application exited")
}
