package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mailcast/mailcast/internal/api"
	"github.com/mailcast/mailcast/internal/circuitbreaker"
	"github.com/mailcast/mailcast/internal/config"
	"github.com/mailcast/mailcast/internal/db"
	"github.com/mailcast/mailcast/internal/dispatch"
	"github.com/mailcast/mailcast/internal/metrics"
	"github.com/mailcast/mailcast/internal/observ"
	"github.com/mailcast/mailcast/internal/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting mailcast gateway",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.Duration("tick_interval", cfg.TickInterval),
	)

	ctx := context.Background()
	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	messageRepo := db.NewMessageRepository(database, logger)
	recipientRepo := db.NewRecipientRepository(database, logger)
	campaignRepo := db.NewCampaignRepository(database, logger)
	attemptLog := db.NewAttemptLog(database, logger)

	// Redis is optional: without it stats are computed per request and the
	// API runs unthrottled.
	redisClient, err := redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn("redis unavailable, stats cache and rate limiting disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
		redisClient = nil
	}

	var statsCache *redis.Cache
	var rateLimiter *redis.RateLimiter
	if redisClient != nil {
		statsCache = redis.NewCache(redisClient, logger, cfg.StatsTTL)
		rateLimiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
			Limit:  cfg.RateLimit,
			Window: 1 * time.Minute,
		})
		defer redisClient.Close()
	}

	// Delivery transport: SES in production, log sender for development.
	var sender dispatch.Sender
	if cfg.Sender == "ses" {
		sesSender, err := dispatch.NewSESSender(ctx, dispatch.SESConfig{
			Region:    cfg.AWSRegion,
			FromEmail: cfg.SESFromEmail,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create SES sender: %w", err)
		}
		sender = sesSender
	} else {
		sender = dispatch.NewLogSender(logger)
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:            cfg.Sender,
		MaxFailures:     5,
		RecoveryTimeout: 30 * time.Second,
	}, logger)
	protected := circuitbreaker.NewProtectedSender(sender, breaker, logger)

	store := dispatch.NewPostgresStore(campaignRepo, recipientRepo, attemptLog)
	dispatcher := dispatch.New(store, protected, dispatch.Config{
		TickInterval: cfg.TickInterval,
	}, logger)

	dispatcherCtx, dispatcherCancel := context.WithCancel(context.Background())
	defer dispatcherCancel()
	go dispatcher.Start(dispatcherCtx)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	var handler *api.Handler
	if statsCache != nil {
		handler = api.NewHandlerWithCache(logger, messageRepo, recipientRepo, campaignRepo, attemptLog, statsCache)
	} else {
		handler = api.NewHandler(logger, messageRepo, recipientRepo, campaignRepo, attemptLog)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.ActorKeyFunc))

		r.Post("/messages", handler.CreateMessage)
		r.Get("/messages", handler.ListMessages)
		r.Get("/messages/{id}", handler.GetMessage)
		r.Put("/messages/{id}", handler.UpdateMessage)
		r.Delete("/messages/{id}", handler.DeleteMessage)

		r.Post("/recipients", handler.CreateRecipient)
		r.Get("/recipients", handler.ListRecipients)
		r.Get("/recipients/{id}", handler.GetRecipient)
		r.Put("/recipients/{id}", handler.UpdateRecipient)
		r.Delete("/recipients/{id}", handler.DeleteRecipient)

		r.Post("/campaigns", handler.CreateCampaign)
		r.Get("/campaigns", handler.ListCampaigns)
		r.Get("/campaigns/{id}", handler.GetCampaign)
		r.Delete("/campaigns/{id}", handler.DeleteCampaign)
		r.Post("/campaigns/{id}/activate", handler.ActivateCampaign)
		r.Post("/campaigns/{id}/complete", handler.CompleteCampaign)
		r.Get("/campaigns/{id}/attempts", handler.ListAttempts)

		r.Get("/stats", handler.GetStats)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unreachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Stop the dispatcher first so no tick is mid-flight during shutdown
		dispatcherCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}
