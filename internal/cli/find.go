package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/searcher/executor"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/redis"
)

func openSearcher(st *state, manifestPath string) (*executor.Searcher, error) {
	return executor.New(executor.Options{
		ManifestPath: manifestPath,
		Partition:    indexer.PartitionOptions(st.cfg.Indexer),
		DefaultLimit: st.cfg.Search.DefaultLimit,
		MaxResults:   st.cfg.Search.MaxResults,
	})
}

func newFindCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "find <manifest.json> <term>",
		Short: "Print the posting list of a word, pair or trine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSearcher(st, args[0])
			if err != nil {
				return err
			}
			postings, err := s.Postings(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%q: %d documents\n", args[1], len(postings))
			for _, e := range postings {
				length, _ := s.PageLength(e.ID)
				fmt.Fprintf(out, "  doc %-12d count %-3d length %d\n", e.ID, e.Count, length)
			}
			return nil
		},
	}
}

func newSearchCommand(st *state) *cobra.Command {
	var (
		query   string
		topK    int
		asJSON  bool
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "search <manifest.json>",
		Short: "Rank documents for a query with BM25",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSearcher(st, args[0])
			if err != nil {
				return err
			}
			compute := func() (*executor.SearchResult, error) {
				return s.Search(cmd.Context(), query, topK)
			}
			var res *executor.SearchResult
			cached := false
			if qc, closeCache := openCache(st, args[0], noCache); qc != nil {
				defer closeCache()
				res, cached, err = qc.GetOrCompute(cmd.Context(), query, topK, compute)
			} else {
				res, err = compute()
			}
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			if cached {
				fmt.Fprintln(out, "(cached)")
			}
			fmt.Fprintf(out, "%d matching documents\n", res.TotalHits)
			for i, d := range res.Results {
				fmt.Fprintf(out, "%3d. doc %-12d %.4f\n", i+1, d.DocID, d.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search query (required)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the Redis result cache")
	cmd.MarkFlagRequired("query")
	return cmd
}

// openCache connects the result cache when Redis is configured. Connection
// failures fall back to uncached searches.
func openCache(st *state, scope string, disabled bool) (*cache.QueryCache, func()) {
	if disabled || st.cfg.Redis.Addr == "" {
		return nil, nil
	}
	client, err := pkgredis.NewClient(st.cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		return nil, nil
	}
	return cache.New(client, scope, st.cfg.Search.CacheTTL, nil), func() { client.Close() }
}

func newFlushCacheCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "flush-cache",
		Short: "Drop every cached search result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			qc, closeCache := openCache(st, "", false)
			if qc == nil {
				return fmt.Errorf("redis is not configured or unreachable")
			}
			defer closeCache()
			if err := qc.Invalidate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "search cache flushed")
			return nil
		},
	}
}
