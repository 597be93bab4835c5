package adk

import (
	"fmt"
	"strings"

	"github.com/user/hardenctl/pkg/stig"
)

const analystSystemPrompt = "You are a senior STIG security analyst. Be concise and direct."

func buildAnalysisPrompt(f stig.Finding) string {
	return fmt.Sprintf(`
You are analyzing the following failed DISA STIG control on a RHEL 9 system.

Rule ID    : %s
Severity   : %s
Title      : %s
Description: %s
Check Text : %s

Please provide:
1. PLAIN ENGLISH EXPLANATION (2-3 sentences): What does this control mean and why does it exist?
2. ATTACK SCENARIO (1-2 sentences): How could an attacker exploit this if left unfixed?
3. BUSINESS RISK: Rate as Critical / High / Medium / Low and explain why in one sentence.
4. SIDE EFFECTS: Are there any known side effects or caveats to fixing this on a production system?

Be concise and practical. Avoid jargon where possible.
`, f.RuleID, f.Severity, f.Title, f.Description, f.CheckText)
}

func buildBatchAnalysisPrompt(findings []stig.Finding) string {
	var list strings.Builder
	for _, f := range findings {
		list.WriteString(fmt.Sprintf("- [%s] %s: %s\n", f.Severity, f.RuleID, f.Title))
	}
	return fmt.Sprintf(`
You are reviewing the following DISA STIG failures on a RHEL 9 system.

FAILED CONTROLS:
%s
Please:
1. Identify the TOP 5 most critical findings to address first and briefly explain why.
2. Flag any findings that commonly break system functionality if misapplied.
3. Suggest the best logical ORDER to apply remediations (dependencies, reboots required, etc.)

Be direct and practical.
`, list.String())
}

func buildRemediationPrompt(f stig.Finding) string {
	return fmt.Sprintf(`
Generate an Ansible task (or small set of tasks) to remediate the following DISA STIG finding on RHEL 9.

Rule ID    : %s
Severity   : %s
Title      : %s
Description: %s
DISA Fix Text:
%s

REQUIREMENTS:
- Use proper Ansible modules (lineinfile, file, service, sysctl, user, etc.); avoid shell/command modules unless absolutely necessary
- The task must be idempotent (safe to run multiple times)
- Include a 'name' field with a descriptive name referencing the rule ID
- Use 'become: true' where root is required
- If a service restart is needed, use a handler or notify pattern
- Handle RHEL 9 specifically (systemd, dnf, etc.)

OUTPUT FORMAT:
Return ONLY valid YAML for the task(s). Do not include playbook wrapper, just the task dict(s).
Do not include any explanation text outside the YAML.
`, f.RuleID, f.Severity, f.Title, f.Description, f.FixText)
}

// SummaryInput carries the before/after picture for the executive summary.
type SummaryInput struct {
	BeforeScore stig.Score
	AfterScore  stig.Score
	Applied     []string
	Skipped     []string
	Failed      []string
	Remaining   []stig.Finding
}

func buildSummaryPrompt(in SummaryInput) string {
	var remaining strings.Builder
	for i, f := range in.Remaining {
		if i >= 10 {
			break
		}
		remaining.WriteString(fmt.Sprintf("- [%s] %s: %s\n", f.Severity, f.RuleID, f.Title))
	}

	applied := in.Applied
	ellipsis := ""
	if len(applied) > 5 {
		applied = applied[:5]
		ellipsis = "..."
	}

	return fmt.Sprintf(`
Generate a concise executive summary of a STIG hardening session on RHEL 9.

BEFORE:
- Compliance Score  : %.1f%%
- Failed Controls   : %d

AFTER:
- Compliance Score  : %.1f%%
- Failed Controls   : %d

ACTIONS TAKEN:
- Applied  : %d fixes (%s%s)
- Skipped  : %d (user declined)
- Failed   : %d (errors during application)

REMAINING HIGH-PRIORITY FINDINGS:
%s
Write a 3-4 paragraph executive summary suitable for a security manager or auditor.
Include: what was accomplished, what remains, and recommended next steps.
`,
		in.BeforeScore.Score, in.BeforeScore.FailCount,
		in.AfterScore.Score, in.AfterScore.FailCount,
		len(in.Applied), strings.Join(applied, ", "), ellipsis,
		len(in.Skipped), len(in.Failed),
		remaining.String())
}
