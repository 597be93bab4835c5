package adk

import (
	"context"
	"time"

	"github.com/user/hardenctl/pkg/stig"
)

// Temperatures per role: remediation wants precise, correct code; analysis
// and reporting can be a little looser.
const (
	tempAnalysis    = 0.3
	tempRemediation = 0.1
	tempReport      = 0.2
)

const (
	DefaultAnalyzeTimeout = 2 * time.Minute
	DefaultBatchTimeout   = 3 * time.Minute
)

// Analyst drives the reasoning engine with the fixed prompts of the hardening
// workflow. All calls are bounded by Timeout; a timeout or transport failure
// propagates to the caller, which decides whether the session can continue.
type Analyst struct {
	provider Provider
	timeout  time.Duration
}

func NewAnalyst(provider Provider) *Analyst {
	return &Analyst{provider: provider, timeout: DefaultAnalyzeTimeout}
}

// WithTimeout overrides the per-call deadline.
func (a *Analyst) WithTimeout(d time.Duration) *Analyst {
	a.timeout = d
	return a
}

// Ping probes the provider with a cheap call so a dead engine is caught
// before a session starts rather than mid-triage.
func (a *Analyst) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := a.provider.ListModels(ctx)
	return err
}

// Analyze explains one finding in operational terms.
func (a *Analyst) Analyze(ctx context.Context, f stig.Finding) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.provider.Generate(ctx, analystSystemPrompt, buildAnalysisPrompt(f), tempAnalysis)
}

// AnalyzeBatch produces the triage report over the whole finding set. Used
// for operator context before the remediation loop, not for decisioning.
func (a *Analyst) AnalyzeBatch(ctx context.Context, findings []stig.Finding) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultBatchTimeout)
	defer cancel()
	return a.provider.Generate(ctx, analystSystemPrompt, buildBatchAnalysisPrompt(findings), tempAnalysis)
}

// ProposeRemediation asks for the Ansible task YAML for one finding. The
// output is untrusted: the remediation generator parses it best-effort.
func (a *Analyst) ProposeRemediation(ctx context.Context, f stig.Finding) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.provider.Generate(ctx, "", buildRemediationPrompt(f), tempRemediation)
}

// Summarize writes the executive summary of the session.
func (a *Analyst) Summarize(ctx context.Context, in SummaryInput) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.provider.Generate(ctx,
		"You are a compliance officer writing for a security manager.",
		buildSummaryPrompt(in), tempReport)
}
