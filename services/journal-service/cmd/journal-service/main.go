package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/carejournal/libs/config"
	"github.com/md-rashed-zaman/carejournal/libs/db"
	"github.com/md-rashed-zaman/carejournal/libs/httpx"
	"github.com/md-rashed-zaman/carejournal/libs/kafkax"
	libmetrics "github.com/md-rashed-zaman/carejournal/libs/metrics"
	otelx "github.com/md-rashed-zaman/carejournal/libs/otel"
	"github.com/md-rashed-zaman/carejournal/libs/redisx"
	"github.com/md-rashed-zaman/carejournal/libs/runtime"
	"github.com/md-rashed-zaman/carejournal/services/journal-service/internal/handlers"
	"github.com/md-rashed-zaman/carejournal/services/journal-service/internal/journal"
	"github.com/md-rashed-zaman/carejournal/services/journal-service/internal/metrics"
	"github.com/md-rashed-zaman/carejournal/services/journal-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// backend bundles the blob store with its readiness check and cleanup.
type backend struct {
	store storage.BlobStore
	ready *runtime.ReadyCheck
	close func()
}

// openBackend selects the blob store from JOURNAL_STORE.
func openBackend(ctx context.Context, kind string, rdb *redis.Client) (backend, error) {
	switch kind {
	case "", "memory":
		return backend{store: storage.NewMemoryBlobStore(), close: func() {}}, nil
	case "redis":
		if rdb == nil {
			return backend{}, fmt.Errorf("JOURNAL_STORE=redis requires REDIS_ADDR")
		}
		return backend{store: storage.NewRedisBlobStore(rdb), close: func() {}}, nil
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return backend{}, err
		}
		maxConns, err := config.Int("DB_MAX_CONNS", 0)
		if err != nil {
			return backend{}, err
		}
		pool, err := db.Open(ctx, dbURL, maxConns)
		if err != nil {
			return backend{}, fmt.Errorf("db connection failed: %w", err)
		}
		pg := storage.NewPostgresBlobStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return backend{}, err
		}
		return backend{
			store: pg,
			ready: &runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
			close: pool.Close,
		}, nil
	default:
		return backend{}, fmt.Errorf("unknown JOURNAL_STORE %q", kind)
	}
}

func main() {
	if err := config.LoadDotenv(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}
	service := config.String("SERVICE_NAME", "journal-service")
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))
	if err := run(logger, service); err != nil {
		logger.Error("journal-service failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, service string) error {
	port, err := config.Port("PORT", "8084")
	if err != nil {
		return err
	}
	loc, err := config.Location("APP_TIMEZONE", "UTC")
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
	var checks []runtime.ReadyCheck
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
	}

	kind := config.String("JOURNAL_STORE", "memory")
	be, err := openBackend(ctx, kind, rdb)
	if err != nil {
		return err
	}
	defer be.close()
	if be.ready != nil {
		checks = append(checks, *be.ready)
	}

	j, err := journal.Open(ctx, journal.Options{
		Store:    be.store,
		Key:      config.String("JOURNAL_STORAGE_KEY", journal.DefaultKey),
		Location: loc,
	})
	if err != nil {
		return err
	}
	logger.Info("journal loaded", "store", kind, "entries", j.Stats().Total)

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := kafkax.NewPublisher(brokers, logger)
	defer func() { _ = publisher.Close() }()
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	reg := libmetrics.NewRegistry()
	journalMetrics := metrics.NewJournalMetrics(reg, func() int { return j.Stats().Total })
	journalHandler := handlers.NewJournalHandler(j, publisher, journalMetrics, logger)

	mux := runtime.NewBaseMux(checks...)
	mux.Handle("/metrics", libmetrics.Handler(reg))
	journalHandler.Register(mux)

	handler := stack.Wrap(mux, logger, rdb)
	handler = otelhttp.NewHandler(handler, "journal")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return runtime.Serve(ctx, srv, logger)
}
