// Package consumer feeds document-token events from Kafka into the build
// pipeline. Offsets are committed only after the documents behind them have
// been flushed to a build directory, and the ledger drops documents that
// come back after a crash between flush and commit.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/postgres"
)

// Ledger remembers documents that reached a flushed build.
type Ledger interface {
	Seen(id uint64) (bool, error)
	Record(lengths map[uint64]uint32) error
}

// StatusStore marks documents in the system of record.
type StatusStore interface {
	SetStatus(ctx context.Context, ids []uint64, status string) error
}

// Committer commits the offsets of handled messages.
type Committer interface {
	CommitPending(ctx context.Context) error
}

// Notifier announces completed builds.
type Notifier interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Deps are the optional collaborators of an IndexConsumer. Nil fields are
// skipped.
type Deps struct {
	Ledger   Ledger
	Status   StatusStore
	Notifier Notifier
	Metrics  *metrics.Metrics
}

// IndexConsumer turns Kafka messages into builder documents.
type IndexConsumer struct {
	builder   *indexer.Builder
	deps      Deps
	committer Committer
	logger    *slog.Logger
}

// New creates an IndexConsumer and registers its flush hook on builder.
func New(builder *indexer.Builder, deps Deps) *IndexConsumer {
	ic := &IndexConsumer{
		builder: builder,
		deps:    deps,
		logger:  slog.Default().With("component", "index-consumer"),
	}
	builder.OnFlush(ic.onFlush)
	return ic
}

// SetCommitter sets where offsets are committed after each flush. It must
// be called before messages are handled.
func (ic *IndexConsumer) SetCommitter(c Committer) {
	ic.committer = c
}

// HandleMessage is a kafka.MessageHandler. Undecodable messages and
// documents already indexed are skipped; builder errors are returned so
// that fatal ones stop the consumer.
func (ic *IndexConsumer) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	doc, err := kafka.DecodeJSON[indexer.Document](value)
	if err != nil {
		ic.logger.Error("failed to decode document event",
			"error", err,
			"key", string(key),
		)
		return nil
	}
	if ic.deps.Ledger != nil {
		seen, err := ic.deps.Ledger.Seen(doc.ID)
		if err != nil {
			return fmt.Errorf("checking ledger for document %d: %w", doc.ID, err)
		}
		if seen {
			ic.deps.Metrics.DocSkipped()
			ic.logger.Debug("document already indexed", "doc_id", doc.ID)
			return nil
		}
	}
	added, err := ic.builder.AddDocument(ctx, doc)
	if err != nil {
		return fmt.Errorf("indexing document %d: %w", doc.ID, err)
	}
	if !added {
		ic.deps.Metrics.DocSkipped()
		ic.logger.Debug("document already in current build", "doc_id", doc.ID)
	}
	return nil
}

// onFlush runs once a build is on disk. The ledger is written before
// offsets are committed; a failure there keeps the offsets pending.
func (ic *IndexConsumer) onFlush(ctx context.Context, res indexer.FlushResult) error {
	log := ic.logger.With("manifest", res.ManifestPath)
	if ic.deps.Ledger != nil {
		if err := ic.deps.Ledger.Record(res.PageLengths); err != nil {
			return fmt.Errorf("recording %d documents in ledger: %w", len(res.PageLengths), err)
		}
	}

	if ic.deps.Status != nil {
		ids := make([]uint64, 0, len(res.PageLengths))
		for id := range res.PageLengths {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		if err := ic.deps.Status.SetStatus(ctx, ids, postgres.StatusIndexed); err != nil {
			log.Error("failed to update document status",
				"documents", len(ids),
				"status", postgres.StatusIndexed,
				"error", err,
			)
		}
	}

	if ic.committer != nil {
		if err := ic.committer.CommitPending(ctx); err != nil {
			return fmt.Errorf("committing offsets: %w", err)
		}
	}

	if ic.deps.Notifier != nil {
		event := indexer.IndexCompleteEvent{
			Kind:         indexer.KindBuild,
			ManifestPath: res.ManifestPath,
			Documents:    len(res.PageLengths),
			Parts:        res.Parts,
			CompletedAt:  time.Now().UTC(),
		}
		if err := ic.deps.Notifier.Publish(ctx, kafka.Event{Key: res.ManifestPath, Value: event}); err != nil {
			ic.deps.Metrics.CompletionEventFailed()
			log.Error("failed to publish index-complete event", "error", err)
		}
	}
	log.Info("build handed off", "documents", len(res.PageLengths))
	return nil
}
