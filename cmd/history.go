package cmd

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/user/hardenctl/pkg/config"
	"github.com/user/hardenctl/pkg/ledger"
	"github.com/user/hardenctl/pkg/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the compliance ledger",
	Long: `Prints every recorded scan with its score, per-category failure counts
and the fixes applied before it, then the first-vs-last improvement delta.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		store, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer store.Close()

		ctx := context.Background()
		entries, err := store.History(ctx)
		if err != nil {
			return fmt.Errorf("read ledger: %w", err)
		}

		pterm.DefaultSection.Println("Compliance History")
		ui.PrintHistory(entries)

		imp, ok, err := store.Improvement(ctx)
		if err != nil {
			return fmt.Errorf("compute improvement: %w", err)
		}
		ui.PrintImprovement(imp, ok)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
