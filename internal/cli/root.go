// Package cli implements shardctl, the operator tool for inspecting and
// maintaining partition files and manifests.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/pkg/logger"
)

// state is shared by the subcommands of one root command.
type state struct {
	cfgFile  string
	logLevel string
	cfg      *config.Config
}

// NewRootCommand builds the shardctl command tree.
func NewRootCommand() *cobra.Command {
	st := &state{}
	root := &cobra.Command{
		Use:   "shardctl",
		Short: "Inspect and maintain partitioned index files",
		Long: `shardctl works directly on partition files and manifests.

Example usage:
  shardctl split 38                                   # Print partition boundaries
  shardctl inspect data/index/merged-000003/manifest.json
  shardctl find data/index/merged-000003/manifest.json "quick fox"
  shardctl search data/index/merged-000003/manifest.json -q "quick brown fox"
  shardctl merge --out data/index/adhoc build-000001/manifest.json build-000002/manifest.json`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			st.cfg = cfg
			level := cfg.Logging.Level
			if st.logLevel != "" {
				level = st.logLevel
			}
			logger.Setup(level, "text")
			return nil
		},
	}
	root.PersistentFlags().StringVar(&st.cfgFile, "config", "", "config file (defaults apply when empty)")
	root.PersistentFlags().StringVar(&st.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newSplitCommand(),
		newInspectCommand(st),
		newFindCommand(st),
		newSearchCommand(st),
		newMergeCommand(st),
		newFlushCacheCommand(st),
	)
	return root
}

// Execute runs shardctl with the process arguments.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
