package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bibliora/library-system/internal/api"
	"github.com/bibliora/library-system/internal/core/service"
	"github.com/bibliora/library-system/internal/infrastructure/config"
	mongodb "github.com/bibliora/library-system/internal/infrastructure/db/mongo"
	redisdb "github.com/bibliora/library-system/internal/infrastructure/db/redis"
	"github.com/bibliora/library-system/internal/infrastructure/queue"
	"github.com/bibliora/library-system/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	// --- MongoDB ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("index creation failed")
	}

	// --- Redis ---
	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	// --- Repositories ---
	copyRepo := mongodb.NewCopyRepository(db)
	cardRepo := mongodb.NewCardRepository(db)
	userRepo := mongodb.NewUserRepository(db)
	auditStore := mongodb.NewAuditRepository(db)

	// --- Audit pipeline ---
	dispatcher := queue.NewDispatcher(
		cfg.Audit.Workers,
		auditStore,
		redisdb.NewAuditDedup(rdb),
		logger.Component("audit"),
	)
	dispatcher.Start(ctx)

	// --- Services ---
	copyService := service.NewCopyLifecycleService(copyRepo, dispatcher, logger.Component("copies"))
	cardService := service.NewCardLifecycleService(
		cardRepo,
		userRepo,
		redisdb.NewActiveCardCache(rdb),
		dispatcher,
		logger.Component("cards"),
	)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, 24*time.Hour)

	// --- HTTP server ---
	e := api.NewRouter(api.Dependencies{
		DB:    db,
		Redis: rdb,

		CopyService: copyService,
		CardService: cardService,
		AuthService: authService,

		JWTSecret:          cfg.JWTSecret,
		LoanPeriodDays:     cfg.Policy.DefaultLoanPeriodDays,
		DailyFineRate:      cfg.Policy.DailyFineRate,
		CardValidityMonths: cfg.Policy.CardValidityMonths,

		Logger: logger.Component("http"),
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
