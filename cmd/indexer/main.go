package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/ledger"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg); err != nil {
		slog.Error("indexer service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slog.Info("starting indexer service",
		"data_dir", cfg.Indexer.DataDir,
		"build_shards", cfg.Indexer.BuildShards,
		"max_build_docs", cfg.Indexer.MaxBuildDocs,
	)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()
	checker.Register("data_dir", health.DirCheck(cfg.Indexer.DataDir))

	builder, err := indexer.NewBuilder(cfg.Indexer, m)
	if err != nil {
		return err
	}

	deps := consumer.Deps{Metrics: m}
	if cfg.Indexer.LedgerPath != "" {
		l, err := ledger.Open(cfg.Indexer.LedgerPath)
		if err != nil {
			return err
		}
		defer l.Close()
		deps.Ledger = l
	} else {
		slog.Warn("no ledger configured, redelivered documents will be indexed again")
	}
	if cfg.Postgres.Host != "" {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		deps.Status = db
		checker.Register("postgres", health.PingCheck(db.Ping))
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()
	deps.Notifier = producer

	indexConsumer := consumer.New(builder, deps)
	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentTokens, indexConsumer.HandleMessage)
	defer kafkaConsumer.Close()
	indexConsumer.SetCommitter(kafkaConsumer)

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, m, checker)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(sctx)
		}()
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	flushed := builder.StartFlushLoop(loopCtx)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentTokens,
		"group", cfg.Kafka.ConsumerGroup,
	)
	consumeErr := kafkaConsumer.Start(ctx)
	if consumeErr != nil {
		slog.Error("consumer stopped", "error", consumeErr)
	}

	slog.Info("flushing pending documents before shutdown", "pending", builder.Pending())
	stopLoop()
	<-flushed
	slog.Info("indexer service stopped")
	return consumeErr
}
