// Package main provides the entry point for the Shortly URL shortener service.
package main

import (
	"Shortly-Backend/internal/analytics"
	"Shortly-Backend/internal/auth"
	"Shortly-Backend/internal/cache"
	"Shortly-Backend/internal/config"
	"Shortly-Backend/internal/database"
	httpHandler "Shortly-Backend/internal/handler/http"
	"Shortly-Backend/internal/repository/postgres"
	"Shortly-Backend/internal/service"
	"Shortly-Backend/pkg/logger"
	"Shortly-Backend/pkg/useragent"
	"context"
	"errors"
	lg "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)
	defer func() {
		if err := log.Sync(); err != nil {
			lg.Printf("ERROR: failed to sync zap logger: %v\n", err)
		}
	}()

	log.Info("starting Shortly service", zap.String("env", cfg.Env))

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, cfg.Env, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, log); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations if enabled
	if cfg.Database.AutoMigrate {
		log.Info("running database migrations (auto_migrate: true)")
		if err := database.AutoMigrate(db, log); err != nil {
			log.Fatal("failed to run database migrations", zap.Error(err))
		}
	} else {
		log.Info("skipping database migrations (auto_migrate: false)")
	}

	storage := postgres.New(db, log)

	// Redis кеш редиректов необязателен
	var (
		linkCache   service.LinkCache
		cachePinger httpHandler.Pinger
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(context.Background(), &cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, resolve cache disabled", zap.Error(err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					log.Error("failed to close redis client", zap.Error(err))
				}
			}()
			redisCache := cache.New(redisClient, cfg.Redis.TTL, log)
			linkCache = redisCache
			cachePinger = redisCache
			log.Info("resolve cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
		}
	}

	urlShortenerService := service.NewURLShortener(storage, linkCache, &cfg.URLShortener, log)

	jwtService := auth.NewJWTService(&auth.JWTConfig{
		SecretKey:           []byte(cfg.JWT.Secret),
		AccessTokenDuration: cfg.JWT.AccessTokenTTL,
		Issuer:              cfg.JWT.Issuer,
	})
	authService := auth.NewService(storage, jwtService, auth.NewPasswordServiceWithCost(cfg.Password.BcryptCost), log)

	// Асинхронная аналитика переходов
	var (
		clicks       httpHandler.ClickSubmitter
		clickStats   httpHandler.StatsProvider
		clickProcess *analytics.Processor
	)
	if cfg.Analytics.Enabled {
		parser, err := useragent.NewParser(cfg.Analytics.RegexesPath, log)
		if err != nil {
			log.Fatal("failed to initialize User-Agent parser", zap.Error(err))
		}

		clickProcess = analytics.NewProcessor(storage, parser, log, analytics.ProcessorConfig{
			WorkerCount:     cfg.Analytics.Workers,
			BufferSize:      cfg.Analytics.BufferSize,
			RetryAttempts:   cfg.Analytics.RetryAttempts,
			RetryDelay:      cfg.Analytics.RetryDelay,
			ShutdownTimeout: cfg.Analytics.ShutdownTimeout,
		})
		if err := clickProcess.Start(); err != nil {
			log.Fatal("failed to start analytics processor", zap.Error(err))
		}
		clicks = clickProcess
		clickStats = clickProcess
	}

	healthHandler := httpHandler.NewHealthHandler(storage, cachePinger, clickStats, log)
	httpAPIServer := httpHandler.NewServer(
		authService,
		urlShortenerService,
		clicks,
		healthHandler,
		cfg.HTTPServer.AllowedOrigins,
		log,
	)

	server := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      httpAPIServer.SetupRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", zap.String("address", cfg.HTTPServer.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down Shortly service", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("HTTP server failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	// Сервер остановлен, новых кликов не будет: дописываем очередь
	if clickProcess != nil {
		if err := clickProcess.Stop(); err != nil {
			log.Error("failed to stop analytics processor", zap.Error(err))
		}
	}
}
