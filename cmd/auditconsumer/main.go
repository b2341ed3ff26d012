package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/casefeed/internal/config"
	"example.com/casefeed/internal/consumer"
	"example.com/casefeed/internal/observability"
	httptransport "example.com/casefeed/internal/transport/http"
)

const serviceName = "casefeed-audit-consumer"

var version = "dev"

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
	observability.RecordBuildInfo(serviceName, version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           cfg.AuditTopic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})
	defer reader.Close()

	proc := consumer.NewProcessor(reader, consumer.NewPersistenceHandler(pool), consumer.WithLogger(logger.Named("processor")))

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	metricsSrv := httptransport.NewServer(httptransport.ServerConfig{Address: cfg.MetricsAddress}, mux, logger.Named("metrics"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metricsSrv.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("audit consumer started",
			zap.String("topic", cfg.AuditTopic),
			zap.String("group", cfg.ConsumerGroupID),
		)
		if err := proc.Run(gctx); err != nil && !isCancel(err) {
			return fmt.Errorf("audit consumer stopped: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("audit consumer shut down")
	return err
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
