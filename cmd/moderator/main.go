package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pocketmarket/moderation/internal/api"
	"github.com/pocketmarket/moderation/internal/audit"
	"github.com/pocketmarket/moderation/internal/config"
	"github.com/pocketmarket/moderation/internal/logger"
	"github.com/pocketmarket/moderation/internal/messaging"
	"github.com/pocketmarket/moderation/internal/metrics"
	"github.com/pocketmarket/moderation/internal/moderation"
	"github.com/pocketmarket/moderation/internal/ratelimit"
	"github.com/pocketmarket/moderation/internal/service"
	"github.com/pocketmarket/moderation/internal/strike"
	"github.com/pocketmarket/moderation/internal/verdictcache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "json")
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Debug().Msg("no .env file found")
	}
	log.Info().Msg("Starting Pocket Market moderation service")

	// Redis setup.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to Redis")
	}
	cancel()

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsClient, err := messaging.NewNATSClient(natsConfig, logger.Component(log, "nats"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}

	// Audit log. Optional: without a DSN flags are only logged and published.
	var (
		db       *sql.DB
		auditLog *audit.Store
	)
	if cfg.AuditDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err = audit.Open(ctx, cfg.AuditDriver, cfg.AuditDSN)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("driver", cfg.AuditDriver).Msg("failed to open audit database")
		}
		if err := audit.Migrate(db, cfg.AuditDriver); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate audit database")
		}
		auditLog = audit.NewStore(db, cfg.AuditDriver)
	} else {
		log.Warn().Msg("DATABASE_URL not set, audit log disabled")
	}

	filter := moderation.NewFilter()
	strikes := strike.NewStore(rdb)

	deps := service.Deps{
		Filter:      filter,
		Limiter:     ratelimit.NewLimiter(rdb, logger.Component(log, "ratelimit")),
		Strikes:     strikes,
		Publisher:   natsClient,
		ListingRule: ratelimit.RuleListingCheck.WithLimit(cfg.ListingChecksPerMinute),
		MessageRule: ratelimit.RuleMessageCheck.WithLimit(cfg.MessageChecksPerMinute),
		Logger:      log,
	}
	if cfg.VerdictCacheTTL > 0 {
		deps.Cache = verdictcache.New(rdb, cfg.VerdictCacheTTL)
	}
	var flags api.FlagLog
	if auditLog != nil {
		deps.Audit = auditLog
		flags = auditLog
	}
	moderator := service.NewModerator(deps)

	// NATS request/reply.
	if err := natsClient.Serve(messaging.SubjectListingCheck, cfg.NATSQueue, natsConfig.HandlerTimeout, moderator.HandleListingRequest); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to listing checks")
	}
	if err := natsClient.Serve(messaging.SubjectMessageCheck, cfg.NATSQueue, natsConfig.HandlerTimeout, moderator.HandleMessageRequest); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to message checks")
	}

	// HTTP API.
	handler := api.NewHandler(moderator, strikes, flags, log)
	handler.AddCheck("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	handler.AddCheck("nats", func(context.Context) error {
		if !natsClient.Connected() {
			return errors.New("not connected")
		}
		return nil
	})
	if db != nil {
		handler.AddCheck("audit", db.PingContext)
	}
	container := api.NewContainer(handler, logger.Component(log, "http"))
	container.Handle("/metrics", metrics.Handler())

	server := newHTTPServer(cfg, container)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().
		Str("listen_addr", cfg.HTTPAddr).
		Str("redis_addr", cfg.RedisAddr).
		Str("nats_url", cfg.NATSURL).
		Str("nats_queue", cfg.NATSQueue).
		Bool("audit", auditLog != nil).
		Str("filter_version", filter.Version()).
		Msg("Pocket Market moderation service running")

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}

	// Close waits for in-flight NATS checks so their strike and audit writes
	// finish before Redis and the database go away.
	natsClient.Close()
	if db != nil {
		db.Close()
	}
	rdb.Close()
}

// newHTTPServer wraps h with CORS and the server timeouts.
func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      corsHandler.Handler(h),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
