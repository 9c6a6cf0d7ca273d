package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/carejournal/libs/config"
	"github.com/md-rashed-zaman/carejournal/libs/httpx"
	"github.com/md-rashed-zaman/carejournal/libs/kafkax"
	libmetrics "github.com/md-rashed-zaman/carejournal/libs/metrics"
	otelx "github.com/md-rashed-zaman/carejournal/libs/otel"
	"github.com/md-rashed-zaman/carejournal/libs/redisx"
	"github.com/md-rashed-zaman/carejournal/libs/runtime"
	"github.com/md-rashed-zaman/carejournal/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/carejournal/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/carejournal/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/carejournal/services/booking-service/internal/sessions"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// loadSchedule reads the practice hours. Clock values are HH:MM in the app time zone.
func loadSchedule(loc *time.Location) (availability.Schedule, error) {
	s := availability.DefaultSchedule(loc)
	var err error
	if s.WorkdayStart, err = availability.ParseClock(config.String("SLOT_WORKDAY_START", "09:00")); err != nil {
		return s, fmt.Errorf("SLOT_WORKDAY_START: %w", err)
	}
	if s.WorkdayEnd, err = availability.ParseClock(config.String("SLOT_WORKDAY_END", "17:00")); err != nil {
		return s, fmt.Errorf("SLOT_WORKDAY_END: %w", err)
	}
	if s.Duration, err = config.Duration("SLOT_DURATION", time.Hour); err != nil {
		return s, err
	}
	if s.Step, err = config.Duration("SLOT_STEP", s.Duration); err != nil {
		return s, err
	}
	if s.Breaks, err = availability.ParseBreaks(config.String("SLOT_BREAKS", "")); err != nil {
		return s, fmt.Errorf("SLOT_BREAKS: %w", err)
	}
	return s, s.Validate()
}

// newSessionStore picks the wizard session backend from SESSION_STORE.
func newSessionStore(rdb *redis.Client) (sessions.Store, error) {
	ttl, err := config.Duration("SESSION_TTL", sessions.DefaultTTL)
	if err != nil {
		return nil, err
	}
	switch backend := config.String("SESSION_STORE", "memory"); backend {
	case "memory":
		return sessions.NewMemoryStore(ttl), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("SESSION_STORE=redis requires REDIS_ADDR")
		}
		return sessions.NewRedisStore(rdb, ttl, config.String("SESSION_KEY_PREFIX", "booking:session:")), nil
	default:
		return nil, fmt.Errorf("unknown SESSION_STORE %q", backend)
	}
}

func main() {
	if err := config.LoadDotenv(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))
	if err := run(logger, service); err != nil {
		logger.Error("booking-service failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, service string) error {
	port, err := config.Port("PORT", "8083")
	if err != nil {
		return err
	}
	loc, err := config.Location("APP_TIMEZONE", "UTC")
	if err != nil {
		return err
	}
	schedule, err := loadSchedule(loc)
	if err != nil {
		return err
	}
	stack, err := httpx.StackConfigFromEnv()
	if err != nil {
		return err
	}

	ctx, stop := runtime.SignalContext(context.Background())
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(service)
	if err != nil {
		return err
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() { _ = otelShutdown.Close(5 * time.Second) }()
	}

	rdb, err := redisx.FromEnv()
	if err != nil {
		return err
	}
	checks := []runtime.ReadyCheck{}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
	}

	store, err := newSessionStore(rdb)
	if err != nil {
		return err
	}

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := kafkax.NewPublisher(brokers, logger)
	defer func() { _ = publisher.Close() }()
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	reg := libmetrics.NewRegistry()
	bookingHandler := handlers.NewBookingHandler(handlers.Options{
		Store:     store,
		Schedule:  schedule,
		Location:  loc,
		Publisher: publisher,
		Metrics:   metrics.NewBookingMetrics(reg),
		Logger:    logger,
	})

	mux := runtime.NewBaseMux(checks...)
	mux.Handle("/metrics", libmetrics.Handler(reg))
	bookingHandler.Register(mux)

	handler := stack.Wrap(mux, logger, rdb)
	handler = otelhttp.NewHandler(handler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("booking wizard ready", "timezone", loc.String(), "session_store", config.String("SESSION_STORE", "memory"))
	return runtime.Serve(ctx, srv, logger)
}
