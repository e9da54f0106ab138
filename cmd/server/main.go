package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gthanmon/gemini-account-manager/internal/auth"
	"github.com/gthanmon/gemini-account-manager/internal/config"
	"github.com/gthanmon/gemini-account-manager/internal/database"
	"github.com/gthanmon/gemini-account-manager/internal/handler"
	"github.com/gthanmon/gemini-account-manager/internal/jobs"
	"github.com/gthanmon/gemini-account-manager/internal/metrics"
	"github.com/gthanmon/gemini-account-manager/internal/middleware"
	"github.com/gthanmon/gemini-account-manager/internal/redis"
	"github.com/gthanmon/gemini-account-manager/internal/repository"
	"github.com/gthanmon/gemini-account-manager/internal/service"
	"github.com/gthanmon/gemini-account-manager/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := cfg.IsProduction()
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if cfg.RunMigrations {
		if err := db.Migrate(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Msg("migrations applied")
	}

	var (
		redisClient *redis.Client
		locker      service.AccountLocker
		totpLimit   func(http.Handler) http.Handler
	)
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")

		locker = redis.NewAccountLock(redisClient.Client, cfg.LockTTL(), config.LockRetryInterval)
		totpLimit = middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.TOTPRateLimitPerMin).Handler
	} else {
		log.Warn().Msg("REDIS_URL not set: using process-local locks and rate limits")
		locker = service.NewLocalLocker()
		totpLimit = middleware.NewLocalRateLimit(cfg.TOTPRateLimitPerMin)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	accountRepo := repository.NewAccountRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()
	m.TrackStreamClients(broker.TotalClients)

	accountService := service.NewAccountService(accountRepo, locker, m, cfg.LockWait())
	notificationService := service.NewNotificationService(accountRepo, m)

	authMiddleware := middleware.NewAuthMiddleware(auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer))
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxRequestBodyBytes)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	accountHandler := handler.NewAccountHandler(accountService, totpLimit)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	eventsHandler := handler.NewEventsHandler(broker, notificationService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeadersMiddleware.Handler)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("health check: database unreachable")
			status, code = "degraded", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Handler)

		// Streams outlive the request timeout.
		r.Get("/events", eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Mount("/accounts", accountHandler.Routes())
			r.Mount("/notifications", notificationHandler.Routes())
		})
	})

	if interval := cfg.ExpiryScanInterval(); interval > 0 {
		expiryJob := jobs.NewExpiryJob(accountRepo, broker, m, interval)
		expiryJob.Start()
		defer expiryJob.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
