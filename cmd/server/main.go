// Package main is the entry point for the star clicker server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"star-clicker/internal/api"
	"star-clicker/internal/auth"
	"star-clicker/internal/bot"
	"star-clicker/internal/cache"
	"star-clicker/internal/config"
	"star-clicker/internal/kafka"
	"star-clicker/internal/pkg/db"
	"star-clicker/internal/repository"
	"star-clicker/internal/repository/memory"
	"star-clicker/internal/service"
	"star-clicker/internal/shop"
	"star-clicker/internal/websocket"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Str("store", cfg.Store.Driver).Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rules, err := service.NewRules(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid economy configuration")
	}

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token verifier")
	}

	ready := make(map[string]api.Pinger)

	// Store
	var store repository.Store
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool.Pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}
		store = repository.NewPostgresStore(pool.Pool)
	default:
		log.Warn().Msg("Using in-memory store, state is lost on restart")
		store = memory.NewStore()
	}
	ready["store"] = store

	// Leaderboard cache
	var lbCache service.LeaderboardCache
	if cfg.Redis.Enabled() {
		daily, err := cache.NewDailyLeaderboard(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer daily.Close()
		lbCache = daily
		ready["redis"] = daily
	}

	// Click event stream
	var publisher service.ClickPublisher
	var historyConsumer *kafka.HistoryConsumer
	if cfg.Kafka.Enabled() {
		p, err := kafka.NewPublisher(&cfg.Kafka)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Kafka publisher")
		}
		defer p.Close()
		publisher = p

		historyConsumer, err = kafka.NewHistoryConsumer(&cfg.Kafka, store)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Kafka history consumer")
		}
		historyConsumer.Start()
	}

	// Services
	leaderboardService := service.NewLeaderboardService(store, lbCache, nil, rules)
	clickService := service.NewClickService(store, leaderboardService, publisher, rules)
	sessionService := service.NewSessionService(store, rules)
	shopService := service.NewShopService(store, shop.DefaultCatalog(), rules)
	referralService := service.NewReferralService(store, rules)

	// Live leaderboard
	hub := websocket.NewHub()
	go hub.Run()

	broadcaster := websocket.NewBroadcaster(hub, leaderboardService, rules.LeaderboardLimit, cfg.Leaderboard.BroadcastInterval)
	leaderboardService.SetNotifier(broadcaster)
	go broadcaster.Run(ctx)

	handler := api.NewHandler(&api.Dependencies{
		Verifier:        verifier,
		Click:           clickService,
		Session:         sessionService,
		Shop:            shopService,
		Referral:        referralService,
		Leaderboard:     leaderboardService,
		LiveLeaderboard: websocket.NewHandler(hub, leaderboardService, rules.LeaderboardLimit, cfg.Server.AllowedOrigins),
		Ready:           ready,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server is starting...")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Telegram companion bot
	var telegramBot *bot.Bot
	if cfg.Bot.Token != "" {
		telegramBot, err = bot.New(&bot.Dependencies{
			Config:      cfg,
			Session:     sessionService,
			Click:       clickService,
			Shop:        shopService,
			Referral:    referralService,
			Leaderboard: leaderboardService,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create bot")
		}
		go telegramBot.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if telegramBot != nil {
		telegramBot.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()
	hub.Stop()
	if historyConsumer != nil {
		if err := historyConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("Kafka consumer shutdown failed")
		}
	}

	log.Info().Msg("Server stopped gracefully")
}
