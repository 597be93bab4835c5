package cmd

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/user/hardenctl/pkg/client"
	"github.com/user/hardenctl/pkg/config"
	"github.com/user/hardenctl/pkg/stig"
	"github.com/user/hardenctl/pkg/ui"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a compliance scan and record the baseline",
	Long: `Runs an OpenSCAP scan (or re-parses an existing results file), prints
the failed findings at or above the configured severity floor, and records
the score in the compliance ledger. Makes no changes to the host.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyHardenFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		resultsXML, _ := cmd.Flags().GetString("results")
		remoteBase, _ := cmd.Flags().GetString("remote")
		noRecord, _ := cmd.Flags().GetBool("no-record")

		ctx := context.Background()
		engines, cleanup, err := buildEngines(ctx, cfg, remoteBase, true)
		if err != nil {
			return err
		}
		defer cleanup()

		spinner := ui.StartSpinner("Running OpenSCAP scan...")
		jobID, err := engines.StartScan(ctx, client.ScanRequest{
			Profile:     cfg.Profile,
			MinSeverity: cfg.Floor(),
			ResultsXML:  resultsXML,
		})
		if err != nil {
			spinner.Fail("Scan failed to start")
			return err
		}
		status, err := client.WaitForScan(ctx, engines, jobID, 0, 0)
		if err != nil {
			spinner.Fail("Scan failed")
			return err
		}
		spinner.Success("Scan complete")

		var score stig.Score
		if status.Score != nil {
			score = *status.Score
		}
		ui.PrintFindings(status.Findings, score)

		if !noRecord {
			entry, err := engines.RecordScan(ctx, score, status.Findings, nil)
			if err != nil {
				return fmt.Errorf("record scan: %w", err)
			}
			pterm.Println(pterm.Gray(fmt.Sprintf("Recorded ledger entry #%d", entry.ID)))
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().String("results", "", "Reuse an existing XCCDF results file instead of scanning")
	scanCmd.Flags().String("remote", "", "Base URL of a hardenctl serve instance")
	scanCmd.Flags().String("profile", "", "SCAP profile to scan (default from config)")
	scanCmd.Flags().String("min-severity", "", "Severity floor: CAT_I, CAT_II, CAT_III or ALL")
	scanCmd.Flags().Bool("no-record", false, "Do not write a ledger entry for this scan")
	rootCmd.AddCommand(scanCmd)
}
