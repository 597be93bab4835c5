package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/user/hardenctl/pkg/config"
	"github.com/user/hardenctl/pkg/session"
	"github.com/user/hardenctl/pkg/ui"
)

var hardenCmd = &cobra.Command{
	Use:   "harden",
	Short: "Run a full interactive hardening session",
	Long: `Runs the complete workflow: OpenSCAP scan, AI triage, the per-finding
approval loop (apply/skip/quit), and a validation re-scan with an
executive summary when fixes were applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyHardenFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		scanOnly, _ := cmd.Flags().GetBool("scan-only")
		resultsXML, _ := cmd.Flags().GetString("results")
		remoteBase, _ := cmd.Flags().GetString("remote")
		assumeYes, _ := cmd.Flags().GetBool("yes")
		dryRun = dryRun || cfg.DryRun

		ctx := context.Background()
		engines, cleanup, err := buildEngines(ctx, cfg, remoteBase, dryRun)
		if err != nil {
			return err
		}
		defer cleanup()

		printConfigPanel(cfg, remoteBase, dryRun)

		pterm.DefaultSection.Println("Service Health")
		stdin := bufio.NewScanner(os.Stdin)
		if !ui.PrintHealth(engines.Health(ctx)) && !assumeYes {
			if !confirm(stdin, "One or more engines unhealthy. Continue anyway?", false) {
				return fmt.Errorf("aborted: engines unhealthy")
			}
		}

		s := session.New(session.Config{
			Profile:      cfg.Profile,
			MinSeverity:  cfg.Floor(),
			DryRun:       dryRun,
			AutoApplyLow: cfg.AutoApplyLow,
			ResultsXML:   resultsXML,
		}, engines, logrus.NewEntry(logrus.StandardLogger()))

		// Phase 1: scan
		pterm.DefaultSection.Println("PHASE 1: Scanning")
		spinner := ui.StartSpinner("Running OpenSCAP scan (this may take several minutes)...")
		if err := s.Start(ctx); err != nil {
			spinner.Fail("Scan failed")
			return sessionError(s, err)
		}
		spinner.Success("Scan complete")

		ui.PrintFindings(s.Findings(), s.BeforeScore())
		if len(s.Findings()) == 0 {
			pterm.Success.Println("Nothing to remediate.")
			return nil
		}
		if scanOnly {
			pterm.Info.Println("--scan-only mode. Done.")
			return nil
		}

		// Phase 2: batch triage
		pterm.DefaultSection.Println("PHASE 2: AI Triage Analysis")
		spinner = ui.StartSpinner("Analyzing all findings...")
		triage, err := s.Triage(ctx)
		if err != nil {
			spinner.Fail("Triage failed")
			return sessionError(s, err)
		}
		spinner.Success("Triage complete")
		_ = pterm.DefaultBox.WithTitle("AI Triage Report").Println(triage)

		proceed := assumeYes || confirm(stdin, "Proceed to remediation?", true)
		if err := s.Proceed(ctx, proceed); err != nil {
			return sessionError(s, err)
		}
		if !proceed {
			pterm.Info.Println("Exiting. No changes made.")
			return nil
		}

		// Phase 3: per-finding approval loop
		pterm.DefaultSection.Println("PHASE 3: Interactive Remediation")
		for s.Phase() == session.PhaseRemediating && s.Pending() != nil {
			p := s.Pending()
			ui.PrintApproval(p.Finding, p.Analysis, p.TaskYAML, p.Index, p.Total)

			decision := promptDecision(stdin)
			if decision == session.DecisionApply {
				pterm.Info.Printf("Applying %s...\n", p.Finding.RuleID)
			}
			if err := s.SubmitDecision(ctx, decision); err != nil {
				return sessionError(s, err)
			}
		}

		// Phase 4: final report (the validation scan ran inside the session)
		if report := s.FinalReport(); report != "" {
			pterm.DefaultSection.Println("PHASE 4: Final Report")
			_ = pterm.DefaultBox.WithTitle("Executive Summary").Println(report)
		}

		ui.PrintSummary(s.Summary(), s.BeforeScore(), s.AfterScore())
		if path, err := s.Tracker().SaveSessionLog(cfg.ReportsDir); err == nil {
			pterm.Println(pterm.Gray("Session log saved: " + path))
		}
		return nil
	},
}

func applyHardenFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("profile"); v != "" {
		cfg.Profile = v
	}
	if v, _ := cmd.Flags().GetString("min-severity"); v != "" {
		cfg.MinSeverity = v
	}
}

func printConfigPanel(cfg *config.Config, remoteBase string, dryRun bool) {
	mode := "in-process"
	if remoteBase != "" {
		mode = remoteBase
	} else if cfg.Engines.Scanner != "" {
		mode = cfg.Engines.Scanner
	}
	_ = pterm.DefaultBox.WithTitle("Configuration").Println(fmt.Sprintf(
		"Profile      : %s\nMin Severity : %s\nEngines      : %s\nDry Run      : %v",
		cfg.Profile, cfg.MinSeverity, mode, dryRun))
}

func promptDecision(stdin *bufio.Scanner) session.Decision {
	for {
		pterm.Print(pterm.Bold.Sprint("\nAction [apply/skip/quit] (default skip) > "))
		if !stdin.Scan() {
			return session.DecisionQuit
		}
		raw := strings.ToLower(strings.TrimSpace(stdin.Text()))
		if raw == "" {
			return session.DecisionSkip
		}
		decision, err := session.ParseDecision(raw)
		if err != nil {
			pterm.Warning.Printf("Invalid choice %q. Enter apply, skip or quit.\n", raw)
			continue
		}
		return decision
	}
}

func confirm(stdin *bufio.Scanner, question string, def bool) bool {
	suffix := "[y/N]"
	if def {
		suffix = "[Y/n]"
	}
	pterm.Printf("\n%s %s > ", question, suffix)
	if !stdin.Scan() {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(stdin.Text())) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}

func sessionError(s *session.Session, err error) error {
	if s.Phase() == session.PhaseError {
		return fmt.Errorf("session failed: %s", s.Err())
	}
	return err
}

func init() {
	hardenCmd.Flags().Bool("dry-run", false, "Validate fixes with ansible --check, change nothing")
	hardenCmd.Flags().Bool("scan-only", false, "Stop after the scan and baseline record")
	hardenCmd.Flags().Bool("yes", false, "Skip interactive confirmations (not approval decisions)")
	hardenCmd.Flags().String("results", "", "Reuse an existing XCCDF results file instead of scanning")
	hardenCmd.Flags().String("remote", "", "Base URL of a hardenctl serve instance")
	hardenCmd.Flags().String("profile", "", "SCAP profile to scan (default from config)")
	hardenCmd.Flags().String("min-severity", "", "Severity floor: CAT_I, CAT_II, CAT_III or ALL")
	rootCmd.AddCommand(hardenCmd)
}
