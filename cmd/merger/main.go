package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/merge"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	prune := flag.Bool("prune", false, "remove the round's input directories once the merged manifest is written")
	notify := flag.Bool("notify", true, "publish an index-complete event")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, *prune, *notify); err != nil {
		slog.Error("merge round failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, prune, notify bool) error {
	root := cfg.Indexer.DataDir
	round, err := merge.PlanRound(root, cfg.Merge.InputPattern, cfg.Merge.OutputPrefix)
	if err != nil {
		return err
	}
	if len(round.Builds) == 0 {
		slog.Info("no unmerged build manifests", "data_dir", root, "pattern", cfg.Merge.InputPattern, "previous", round.Previous)
		return nil
	}
	inputs := round.Inputs()
	outDir := round.OutDir

	m := metrics.New(prometheus.DefaultRegisterer)
	engine, err := merge.NewEngine(merge.Options{
		Threads:      cfg.Merge.Threads,
		OutputShards: cfg.Merge.OutputShards,
		Partition:    indexer.PartitionOptions(cfg.Indexer),
		Metrics:      m,
	})
	if err != nil {
		return err
	}
	res, err := engine.Run(ctx, inputs, outDir)
	if err != nil {
		return err
	}

	if notify {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		event := indexer.IndexCompleteEvent{
			Kind:         indexer.KindMerge,
			ManifestPath: res.ManifestPath,
			Documents:    int(res.Documents),
			Parts:        res.Parts,
			CompletedAt:  time.Now().UTC(),
		}
		if err := producer.Publish(ctx, kafka.Event{Key: res.ManifestPath, Value: event}); err != nil {
			m.CompletionEventFailed()
			slog.Error("failed to publish index-complete event", "error", err)
		}
	}

	if prune {
		for _, in := range inputs {
			dir := filepath.Dir(in)
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("pruning %s: %w", dir, err)
			}
			slog.Info("pruned merged input", "dir", dir)
		}
	}
	return nil
}
