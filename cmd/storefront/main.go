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
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/checkout"
	"github.com/vasiliy-maslov/storefront-service/internal/config"
	"github.com/vasiliy-maslov/storefront-service/internal/coupon"
	"github.com/vasiliy-maslov/storefront-service/internal/db"
	storefrontHttp "github.com/vasiliy-maslov/storefront-service/internal/handler/http"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
	"github.com/vasiliy-maslov/storefront-service/internal/session"
	"github.com/vasiliy-maslov/storefront-service/internal/user"
)

func setupLogger(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(os.Stdout)
	if cfg.Env != "production" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	log.Logger = logger.With().Timestamp().Str("service", cfg.Name).Logger()
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg.App)
	log.Info().Str("env", cfg.App.Env).Msg("Starting storefront...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pg, err := db.New(ctx, cfg.Postgres)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	if err := db.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	redisClient, err := session.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}()
	sessions := session.NewRedisStore(redisClient, cfg.App.Name, cfg.Redis.SessionTTL)

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	catalogSvc := catalog.NewService(catalog.NewRepository(pg.X))
	couponSvc := coupon.NewService(coupon.NewRepository(pg.X))
	cartSvc := cart.NewService(cart.NewRepository(pg.Pool), catalogSvc)
	orderSvc := order.NewService(order.NewRepository(pg.Pool))
	checkoutSvc := checkout.NewService(checkout.NewStore(pg.Pool), cartSvc, couponSvc)
	userSvc := user.NewService(user.NewRepository(pg.Pool), tokens)

	router := storefrontHttp.NewRouter(storefrontHttp.Handlers{
		Auth:    storefrontHttp.NewAuthHandler(userSvc),
		Catalog: storefrontHttp.NewCatalogHandler(catalogSvc),
		Cart:    storefrontHttp.NewCartHandler(cartSvc, checkoutSvc, catalogSvc, couponSvc, sessions),
		Orders:  storefrontHttp.NewOrderHandler(orderSvc, checkoutSvc, sessions),
		Admin:   storefrontHttp.NewAdminHandler(orderSvc, couponSvc, userSvc),
	}, tokens.WithAccounts(userSvc))

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("port", cfg.App.Port).Msg("Could not listen")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Storefront stopped gracefully.")
}
