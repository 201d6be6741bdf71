package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/manifest"
	"github.com/Adithya-Monish-Kumar-K/Partitioned-Index-Engine/internal/indexer/segment"
)

func newInspectCommand(st *state) *cobra.Command {
	var terms int
	cmd := &cobra.Command{
		Use:   "inspect <manifest.json | file.part>",
		Short: "Summarise a manifest or a single partition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if filepath.Ext(path) == segment.Extension {
				return inspectPartition(cmd, st, path, terms)
			}
			return inspectManifest(cmd, path)
		},
	}
	cmd.Flags().IntVarP(&terms, "terms", "t", 0, "list the first n terms of a partition file")
	return cmd
}

func inspectManifest(cmd *cobra.Command, path string) error {
	m, ok, err := manifest.Load(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no manifest at %s", path)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "documents:       %d\n", m.TotalPages)
	fmt.Fprintf(out, "average length:  %.2f\n", m.AveragePageLength)
	if err := m.Validate(); err != nil {
		fmt.Fprintf(out, "layout:          INVALID (%v)\n", err)
	} else {
		fmt.Fprintf(out, "layout:          ok\n")
	}
	for _, g := range segment.Granularities {
		parts := m.Parts(g)
		fmt.Fprintf(out, "\n%s parts (%d):\n", g, len(parts))
		for _, p := range parts {
			size := "missing"
			if info, err := os.Stat(p.Resolve(path)); err == nil {
				size = fmt.Sprintf("%d bytes", info.Size())
			}
			fmt.Fprintf(out, "  %-20s %-24s %s\n", p.Path, p.Range(), size)
		}
	}
	return nil
}

func inspectPartition(cmd *cobra.Command, st *state, path string, terms int) error {
	p, ok, err := segment.Read(path, index.FullRange(), indexer.PartitionOptions(st.cfg.Indexer))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no partition file at %s", path)
	}
	defer p.Reset()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pages:       %d\n", p.PageCount())
	fmt.Fprintf(out, "keys:        %d\n", p.Len())
	fmt.Fprintf(out, "size:        %d bytes\n", p.Size())
	fmt.Fprintf(out, "arena:       %d bytes\n", p.ArenaBytes())
	if terms <= 0 {
		return nil
	}
	all := p.Terms()
	if len(all) > 0 {
		fmt.Fprintf(out, "first key:   %q\n", all[0])
		fmt.Fprintf(out, "last key:    %q\n", all[len(all)-1])
	}
	if terms > len(all) {
		terms = len(all)
	}
	for _, term := range all[:terms] {
		posting, _ := p.Find(term)
		fmt.Fprintf(out, "  %-32q %d docs\n", term, posting.Len())
	}
	return nil
}
