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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/opsdeck/pairing-server-go/internal/config"
	"github.com/opsdeck/pairing-server-go/internal/database"
	"github.com/opsdeck/pairing-server-go/internal/handler"
	"github.com/opsdeck/pairing-server-go/internal/jobs"
	"github.com/opsdeck/pairing-server-go/internal/middleware"
	"github.com/opsdeck/pairing-server-go/internal/notify"
	"github.com/opsdeck/pairing-server-go/internal/redis"
	"github.com/opsdeck/pairing-server-go/internal/repository"
	"github.com/opsdeck/pairing-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("ENVIRONMENT") == "production"
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

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	pairingRepo := repository.NewPairingRepository(db.DB, config.PairingRetention)
	tenantRepo := repository.NewTenantRepository(db.DB)

	pairingService := service.NewPairingService(pairingRepo, cfg.PairingTTL(), cfg.MaxPendingPerTenant)

	var smsSender notify.SMSSender
	if cfg.SMSGatewayURL != "" {
		smsSender = notify.NewHTTPSender(cfg.SMSGatewayURL, cfg.SMSGatewayToken)
	} else {
		smsSender = notify.DisabledSender{}
	}

	tenantAuthMiddleware := middleware.NewTenantAuthMiddleware(tenantRepo)
	confirmRateLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		redisClient.Client, config.ConfirmRateLimitPerMin, "confirm",
	)
	tenantRateLimitMiddleware := middleware.NewTenantRateLimitMiddleware(redisClient.Client)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	pairingHandler := handler.NewPairingHandler(pairingService, smsSender, cfg.PairBaseURL)
	deviceHandler := handler.NewDeviceHandler(pairingService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/pair", func(r chi.Router) {
		// the confirming device has no tenant token; it is throttled by IP
		r.With(confirmRateLimitMiddleware.Handler).Post("/confirm", deviceHandler.Confirm)

		r.Group(func(r chi.Router) {
			r.Use(tenantAuthMiddleware.Handler)
			r.Use(tenantRateLimitMiddleware.Handler)
			r.Post("/start", pairingHandler.Start)
			r.Get("/status/{code}", pairingHandler.Status)
			r.Get("/{code}/qr.png", pairingHandler.QRImage)
			r.Post("/{code}/sms", pairingHandler.SendSMS)
			r.Delete("/{code}", pairingHandler.Cancel)
		})
	})

	cleanupJob := jobs.NewCleanupJob(pairingRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
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
