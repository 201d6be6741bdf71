package cli

import (
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/merge"
)

func newMergeCommand(st *state) *cobra.Command {
	var (
		outDir     string
		threads    int
		shards     int
		noProgress bool
	)
	cmd := &cobra.Command{
		Use:   "merge --out <dir> [manifest.json ...]",
		Short: "Merge manifests into a new set of output ranges",
		Long: `Merge folds the given manifests into --out. Without arguments the latest
merged manifest under the configured data directory is merged with the build
manifests it does not list as sources yet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := args
			if len(inputs) == 0 {
				var err error
				if inputs, err = discoverInputs(st); err != nil {
					return err
				}
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no unmerged manifests under %s", st.cfg.Indexer.DataDir)
			}
			if threads <= 0 {
				threads = st.cfg.Merge.Threads
			}
			if shards <= 0 {
				shards = st.cfg.Merge.OutputShards
			}

			opts := merge.Options{
				Threads:      threads,
				OutputShards: shards,
				Partition:    indexer.PartitionOptions(st.cfg.Indexer),
			}
			if !noProgress {
				opts.Progress = newProgress(cmd)
			}
			engine, err := merge.NewEngine(opts)
			if err != nil {
				return err
			}
			res, err := engine.Run(cmd.Context(), inputs, outDir)
			if err != nil {
				return fmt.Errorf("merge failed: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "merged %d manifests into %s\n", len(inputs), res.ManifestPath)
			fmt.Fprintf(out, "  documents: %d\n", res.Documents)
			fmt.Fprintf(out, "  parts:     %d (%d bytes)\n", res.Parts, res.Bytes)
			fmt.Fprintf(out, "  keys:      %d merged, %d added\n", res.Stats.Merged, res.Stats.Added)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (required)")
	cmd.Flags().IntVar(&threads, "threads", 0, "concurrent range merges (default from config)")
	cmd.Flags().IntVar(&shards, "shards", 0, "output ranges per granularity (default from config)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	cmd.MarkFlagRequired("out")
	return cmd
}

// discoverInputs returns the latest merged manifest under the data
// directory and the build manifests it has not folded in yet.
func discoverInputs(st *state) ([]string, error) {
	round, err := merge.PlanRound(st.cfg.Indexer.DataDir, st.cfg.Merge.InputPattern, st.cfg.Merge.OutputPrefix)
	if err != nil {
		return nil, err
	}
	if len(round.Builds) == 0 {
		return nil, nil
	}
	return round.Inputs(), nil
}

// newProgress draws a bar on stderr as output ranges complete.
func newProgress(cmd *cobra.Command) func(done, total int) {
	var (
		mu   sync.Mutex
		bar  *progressbar.ProgressBar
		seen int
	)
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Merging[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)
		}
		if done > seen {
			seen = done
			bar.Set(done)
		}
	}
}
