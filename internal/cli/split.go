package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/shard"
)

func newSplitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "split <partitions>",
		Short: "Print the key ranges for a partition count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("partition count %q: %w", args[0], err)
			}
			boundaries, err := shard.SplitAt(n)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, rng := range shard.Ranges(boundaries) {
				fmt.Fprintf(out, "%4d  %s\n", i, rng)
			}
			return nil
		},
	}
}
