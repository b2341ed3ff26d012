package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/casefeed/internal/api"
	"example.com/casefeed/internal/audit"
	"example.com/casefeed/internal/auth"
	"example.com/casefeed/internal/config"
	"example.com/casefeed/internal/domain"
	"example.com/casefeed/internal/feed"
	"example.com/casefeed/internal/observability"
	"example.com/casefeed/internal/persistence/memory"
	"example.com/casefeed/internal/persistence/postgres"
	"example.com/casefeed/internal/persistence/sqlite"
	httptransport "example.com/casefeed/internal/transport/http"
)

const serviceName = "casefeed-api"

var version = "dev"

// store is what the feed needs from a persistence backend.
type store interface {
	domain.RecordStore
	domain.ClientDirectory
	Ping(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(serviceName, cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()
	observability.RecordBuildInfo(serviceName, version)

	records, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	sink, closeSink := newAuditSink(cfg, logger)
	defer closeSink()

	providers := feed.NewProviders(records, feed.SourceOptions{
		RowLimit: cfg.SourceRowLimit,
		Location: cfg.Location(),
	})
	dispatcher := feed.NewDispatcher(providers, feed.NewDirectoryResolver(records), logger.Named("dispatch"))
	service := feed.NewService(dispatcher, records, auth.NewRolePolicy(cfg.AllowedRoles), sink,
		feed.WithLogger(logger.Named("feed")),
		feed.WithTimeout(cfg.FeedTimeout),
	)

	handler := api.NewHandler(service, feed.Limits{
		DefaultLimit: cfg.DefaultLimit,
		MaxLimit:     cfg.MaxLimit,
		Location:     cfg.Location(),
	}, api.WithLogger(logger.Named("api")), api.WithReadiness(records))

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, auth.SkipOperational)
	chain := api.RequestLogger(logger.Named("http"))(observability.InstrumentHandler(authMiddleware.Wrap(mux)))

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		WriteTimeout: cfg.FeedTimeout + 5*time.Second,
	}, chain, logger)

	logger.Info("casefeed api starting",
		zap.String("store", cfg.StoreDriver),
		zap.String("audit_sink", cfg.AuditSink),
		zap.String("timezone", cfg.Location().String()),
	)
	return server.Run(ctx)
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return postgres.NewRepository(pool), pool.Close, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("close sqlite store", zap.Error(err))
			}
		}, nil
	default:
		s := memory.NewStore()
		memory.Seed(s)
		logger.Warn("using seeded in-memory store")
		return s, func() {}, nil
	}
}

func newAuditSink(cfg config.Config, logger *zap.Logger) (feed.AuditSink, func()) {
	switch cfg.AuditSink {
	case config.SinkKafka:
		producer := audit.NewKafkaProducer(cfg.KafkaBrokers)
		opts := []audit.KafkaOption{audit.WithKafkaLogger(logger.Named("audit"))}
		if cfg.SchemaRegistryURL != "" {
			opts = append(opts, audit.WithSchemaRegistry(audit.NewSchemaRegistryClient(cfg.SchemaRegistryURL)))
		}
		sink := audit.NewKafkaSink(producer, cfg.AuditTopic, cfg.AuditBuffer, opts...)
		return sink, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := sink.Close(ctx); err != nil {
				logger.Warn("audit sink did not drain", zap.Error(err))
			}
			if err := producer.Close(); err != nil {
				logger.Warn("close kafka producer", zap.Error(err))
			}
		}
	case config.SinkLog:
		return audit.NewLogSink(logger), func() {}
	default:
		return audit.Noop{}, func() {}
	}
}
