package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pveiga/agendle/internal/availability"
	"github.com/pveiga/agendle/internal/booking"
	"github.com/pveiga/agendle/internal/handlers"
	"github.com/pveiga/agendle/internal/notify"
	"github.com/pveiga/agendle/internal/outbox"
	"github.com/pveiga/agendle/internal/reminder"
	"github.com/pveiga/agendle/internal/schedule"
	"github.com/pveiga/agendle/internal/storage"
	"github.com/pveiga/agendle/libs/config"
	"github.com/pveiga/agendle/libs/db"
	"github.com/pveiga/agendle/libs/httpx"
	"github.com/pveiga/agendle/libs/kafkax"
	otelx "github.com/pveiga/agendle/libs/otel"
	"github.com/pveiga/agendle/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func buildNotifier(logger *slog.Logger) notify.Sender {
	url := config.String("WHATSAPP_WEBHOOK_URL", "")
	if url == "" {
		logger.Warn("whatsapp webhook url not configured; notifications disabled")
		return notify.NewNoopSender()
	}
	return notify.NewWebhookSender(url, config.String("WHATSAPP_WEBHOOK_TOKEN", ""))
}

func main() {
	service := config.String("SERVICE_NAME", "agendle")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	tenantRepo := storage.NewTenantRepository(pool)
	professionalRepo := storage.NewProfessionalRepository(pool)
	serviceRepo := storage.NewServiceRepository(pool)
	scheduleRepo := storage.NewScheduleRepository(pool)
	appointmentRepo := storage.NewAppointmentRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	hours := schedule.NewHoursResolver(scheduleRepo)
	registry := schedule.NewRegistry(scheduleRepo, hours, logger)
	calc := availability.NewCalculator(hours, registry, appointmentRepo, serviceRepo, logger)
	notifier := buildNotifier(logger)
	bookingSvc := booking.NewService(tenantRepo, professionalRepo, serviceRepo, hours, registry, appointmentRepo, notifier, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	sweeper := reminder.NewSweeper(tenantRepo, appointmentRepo, notifier, reminder.OutboxSink{Repo: outboxRepo}, logger, reminder.Config{
		Interval:  config.Duration("REMINDER_SWEEP_INTERVAL", time.Minute),
		Lookahead: config.Duration("REMINDER_LOOKAHEAD", 2*time.Hour),
	})
	go sweeper.Run(ctx)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	// Public booking endpoints are rate limited per client; the Redis
	// limiter shares counters across replicas, the in-memory one covers
	// single-instance deployments.
	publicLimit := config.Int("PUBLIC_RATE_LIMIT", 60)
	publicWindow := config.Duration("PUBLIC_RATE_WINDOW", time.Minute)
	var limit httpx.Middleware
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		limit = httpx.NewRedisRateLimiter(client, publicLimit, publicWindow, "agendle:public").Middleware(logger, true)
	} else {
		limit = httpx.NewRateLimiter(publicLimit, publicWindow).Middleware()
	}
	public := func(fn http.HandlerFunc) http.Handler { return limit(fn) }

	handler := handlers.New(bookingSvc, calc, registry, hours, tenantRepo, professionalRepo, serviceRepo, logger)
	handler.Register(mux, public)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
