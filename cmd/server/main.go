package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Simon2219/BetterIntelligence/internal/api"
	"github.com/Simon2219/BetterIntelligence/internal/api/handler"
	"github.com/Simon2219/BetterIntelligence/internal/core/service"
	"github.com/Simon2219/BetterIntelligence/internal/hooks"
	"github.com/Simon2219/BetterIntelligence/internal/infrastructure/config"
	mongodb "github.com/Simon2219/BetterIntelligence/internal/infrastructure/db/mongo"
	redisdb "github.com/Simon2219/BetterIntelligence/internal/infrastructure/db/redis"
	"github.com/Simon2219/BetterIntelligence/internal/infrastructure/hash"
	"github.com/Simon2219/BetterIntelligence/internal/realtime"
	"github.com/Simon2219/BetterIntelligence/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("mongo bootstrap failed")
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = rdb.Close() }()

	// --- Repositories & services ---
	users := mongodb.NewUserRepository(db)
	agents := mongodb.NewAgentRepository(db)
	conversations := mongodb.NewConversationRepository(db)
	messages := mongodb.NewMessageRepository(db)
	credentials := redisdb.NewCredentialStore(rdb)

	tokens := service.NewTokenService(credentials,
		cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret,
		service.WithAccessTTL(cfg.Auth.AccessTTL()),
		service.WithRefreshTTL(cfg.Auth.RefreshTTL()),
	)
	hasher := hash.NewBcryptHasher(cfg.Auth.BcryptCost)
	authService := service.NewAuthService(users, tokens, hasher,
		log.With().Str("component", "auth").Logger())

	// --- Realtime & hooks ---
	hub := realtime.NewHub()
	registry := hooks.NewRegistry()
	hookHub := hooks.NewHub(registry, hub,
		log.With().Str("component", "hooks").Logger(),
		hooks.WithDeliveryTimeout(cfg.Hooks.DeliveryTimeout))
	hookHub.Start(ctx)

	gateway := realtime.NewGateway(hub, tokens, users, agents, conversations, messages,
		hookHub, log.With().Str("component", "realtime").Logger())

	// --- HTTP ---
	authHandler := handler.NewAuthHandler(authService, cfg.Auth.RefreshTTL(), cfg.Env == "production")
	e := api.NewRouter(api.Deps{
		AuthService: authService,
		Tokens:      tokens,
		Users:       users,
		Gateway:     gateway,
		Registry:    registry,
		AuthHandler: authHandler,
		Mongo:       db,
		Redis:       rdb,
		Log:         log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
