package ui

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/user/hardenctl/pkg/client"
	"github.com/user/hardenctl/pkg/ledger"
	"github.com/user/hardenctl/pkg/remediation"
	"github.com/user/hardenctl/pkg/stig"
)

func severityStyle(s stig.Severity) string {
	switch s {
	case stig.CatI:
		return pterm.FgRed.Sprint(s)
	case stig.CatII:
		return pterm.FgYellow.Sprint(s)
	default:
		return pterm.FgBlue.Sprint(s)
	}
}

// PrintFindings renders the failed-controls table plus the compliance score.
func PrintFindings(findings []stig.Finding, score stig.Score) {
	scoreStr := fmt.Sprintf("%.1f%%", score.Score)
	if score.Score >= 70 {
		scoreStr = pterm.FgGreen.Sprint(scoreStr)
	} else {
		scoreStr = pterm.FgRed.Sprint(scoreStr)
	}
	pterm.Printf("\nCompliance Score: %s  Pass: %d | Fail: %d\n\n",
		scoreStr, score.PassCount, score.FailCount)

	if len(findings) == 0 {
		pterm.Success.Println("No failures found at configured severity level!")
		return
	}

	data := [][]string{
		{"#", "Rule ID", "Sev", "Title"},
	}
	for i, f := range findings {
		title := f.Title
		if len(title) > 60 {
			title = title[:60]
		}
		data = append(data, []string{
			strconv.Itoa(i + 1),
			pterm.FgCyan.Sprint(f.RuleID),
			severityStyle(f.Severity),
			title,
		})
	}

	pterm.Warning.Printf("Failed STIG Controls (%d):\n", len(findings))
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// PrintHealth shows each engine's pre-session probe result.
func PrintHealth(statuses []client.HealthStatus) bool {
	allOK := true
	for _, st := range statuses {
		if st.Healthy {
			pterm.Success.Printf("%s: healthy\n", st.Component)
		} else {
			allOK = false
			pterm.Error.Printf("%s: %s\n", st.Component, st.Detail)
		}
	}
	return allOK
}

// PrintApproval renders one pending approval: the finding header, the
// engine's analysis and the proposed fix.
func PrintApproval(finding stig.Finding, analysis, taskYAML string, index, total int) {
	pterm.Println()
	pterm.DefaultSection.Printf("Finding %d/%d  %s  %s", index, total, severityStyle(finding.Severity), finding.RuleID)
	pterm.FgCyan.Println(finding.Title)

	_ = pterm.DefaultBox.WithTitle("AI Analysis").Println(analysis)
	_ = pterm.DefaultBox.WithTitle("Proposed Ansible Task").Println(taskYAML)
}

// PrintSummary renders the end-of-session counts and, when a validation scan
// ran, the before/after delta.
func PrintSummary(summary remediation.Summary, before stig.Score, after *stig.Score) {
	lines := fmt.Sprintf("Applied : %s\nSkipped : %s\nFailed  : %s",
		pterm.FgGreen.Sprint(len(summary.Applied)),
		pterm.FgYellow.Sprint(len(summary.Skipped)),
		pterm.FgRed.Sprint(len(summary.Failed)))
	if after != nil {
		lines += fmt.Sprintf("\nScore   : %.1f%% -> %.1f%%", before.Score, after.Score)
	}
	_ = pterm.DefaultBox.WithTitle("Session Complete").Println(lines)
}

// PrintHistory renders the ledger.
func PrintHistory(entries []ledger.Entry) {
	if len(entries) == 0 {
		pterm.Info.Println("No scans recorded yet.")
		return
	}

	data := [][]string{
		{"When", "Score", "Pass", "Fail", "CAT I", "CAT II", "CAT III", "Fixes Applied"},
	}
	for _, e := range entries {
		data = append(data, []string{
			e.Timestamp.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.1f%%", e.Score),
			strconv.Itoa(e.PassCount),
			strconv.Itoa(e.FailCount),
			strconv.Itoa(e.CatIFails),
			strconv.Itoa(e.CatIIFails),
			strconv.Itoa(e.CatIIIFails),
			strconv.Itoa(len(e.Applied)),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// PrintImprovement renders the first-vs-last delta line.
func PrintImprovement(imp *ledger.Improvement, ok bool) {
	if !ok {
		pterm.Info.Println("Need at least 2 scans to show improvement.")
		return
	}
	delta := fmt.Sprintf("%+.1f%%", imp.ScoreDelta)
	if imp.ScoreDelta >= 0 {
		delta = pterm.FgGreen.Sprint(delta)
	} else {
		delta = pterm.FgRed.Sprint(delta)
	}
	pterm.Printf("Improvement over %d scans: %s (%.1f%% -> %.1f%%), %d failures fixed\n",
		imp.ScanCount, delta, imp.FirstScore, imp.LastScore, imp.FailuresFixed)
}

func StartSpinner(text string) *pterm.SpinnerPrinter {
	spinner, _ := pterm.DefaultSpinner.Start(text)
	return spinner
}
