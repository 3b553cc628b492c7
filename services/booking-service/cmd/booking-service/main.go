package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/slotledger/libs/config"
	"github.com/md-rashed-zaman/slotledger/libs/db"
	"github.com/md-rashed-zaman/slotledger/libs/httpx"
	"github.com/md-rashed-zaman/slotledger/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotledger/libs/otel"
	"github.com/md-rashed-zaman/slotledger/libs/runtime"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/exceptions"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/reconcile"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/storage/memory"
)

// store is satisfied by both the Postgres repository and the in-memory store.
type store interface {
	schedule.Store
	exceptions.Store
	ledger.Store
	reconcile.Store
	availability.OccupancySource
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLoggerWithConfig(service, runtime.LogConfig{
		Level: config.String("LOG_LEVEL", "info"),
		File:  config.String("LOG_FILE", ""),
	})
	if err := run(logger, service); err != nil {
		logger.Error("booking-service exited", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, service string) error {
	port, err := config.Port("PORT", "8083")
	if err != nil {
		return err
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	zone, err := calendar.NewZone(config.String("BUSINESS_TIMEZONE", "UTC"))
	if err != nil {
		return err
	}
	defaults := schedule.ClosedWeek()
	if path := config.String("SCHEDULE_DEFAULTS_PATH", ""); path != "" {
		if defaults, err = schedule.LoadDefaults(path); err != nil {
			return err
		}
	}

	readyChecks := []runtime.ReadyCheck{}
	var st store
	switch driver := config.String("STORAGE_DRIVER", "postgres"); driver {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart")
		st = memory.New()
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return err
		}
		pool, err := db.Open(ctx, dbURL)
		if err != nil {
			return fmt.Errorf("db connection failed: %w", err)
		}
		defer pool.Close()

		brokers := config.String("KAFKA_BROKERS", "")
		outboxRepo := outbox.NewRepository()
		if brokers == "" {
			outboxRepo = outbox.NewDiscardRepository()
			logger.Warn("KAFKA_BROKERS not set, booking events are not recorded")
		}
		repo := storage.NewRepository(pool, outboxRepo)
		if config.Bool("MIGRATE_ON_START", true) {
			if err := repo.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		st = repo
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		retention, err := config.Duration("OUTBOX_RETENTION", 7*24*time.Hour)
		if err != nil {
			return err
		}
		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
			Retention: retention,
		})
		go publisher.Run(ctx)
		if brokers != "" {
			readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be postgres or memory (got %q)", driver)
	}

	notifier, err := newNotifier(logger)
	if err != nil {
		return err
	}

	scheduleSvc := schedule.NewService(st, defaults, logger)
	exceptionSvc := exceptions.NewService(st, zone, logger)
	resolver := availability.NewResolver(zone, scheduleSvc, exceptionSvc, st)
	ledgerSvc := ledger.NewService(st, resolver, notifier, zone, logger, ledger.Config{
		PhoneRegion: config.String("PHONE_DEFAULT_REGION", "US"),
	})

	reconcileInterval, err := config.Duration("RECONCILE_INTERVAL", 5*time.Minute)
	if err != nil {
		return err
	}
	lockKey, err := strconv.ParseInt(config.String("RECONCILE_LOCK_KEY", "5150001"), 10, 64)
	if err != nil {
		return fmt.Errorf("RECONCILE_LOCK_KEY must be an integer: %w", err)
	}
	reconciler := reconcile.New(st, logger, reconcile.Config{Interval: reconcileInterval, LockKey: lockKey})
	if reconcileInterval > 0 {
		go reconciler.Run(ctx)
	}

	publicLimit, redisClient, err := newRateLimit(logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(redisClient)})
	}

	metrics.Register()
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/metrics", promhttp.Handler())
	handlers.NewPublicHandler(resolver, ledgerSvc, logger).Register(mux, publicLimit)
	handlers.NewAdminHandler(scheduleSvc, exceptionSvc, ledgerSvc, reconciler, logger).Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS")}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "timezone", zone.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}

func newNotifier(logger *slog.Logger) (notify.Notifier, error) {
	host := config.String("SMTP_HOST", "")
	if host == "" {
		logger.Warn("SMTP_HOST not set; booking confirmations are not sent")
		return notify.Noop{}, nil
	}
	port, err := config.Int("SMTP_PORT", 1025)
	if err != nil {
		return nil, err
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     host,
		Port:     port,
		Username: config.String("SMTP_USERNAME", ""),
		Password: config.String("SMTP_PASSWORD", ""),
		From:     config.String("SMTP_FROM", ""),
	})
}

// newRateLimit builds the limiter for public routes: Redis-backed when
// REDIS_ADDR is set so the budget is shared across instances.
func newRateLimit(logger *slog.Logger) (httpx.Middleware, *redis.Client, error) {
	perMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	if err != nil {
		return nil, nil, err
	}
	if perMinute <= 0 {
		return nil, nil, nil
	}
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		return httpx.NewRateLimiter(perMinute, time.Minute).Middleware(), nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
	})
	limiter := httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, "slotledger:ratelimit:")
	return limiter.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)), rdb, nil
}
