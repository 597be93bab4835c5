package adk

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/user/hardenctl/pkg/stig"
)

// recordingProvider captures the last Generate call.
type recordingProvider struct {
	system      string
	prompt      string
	temperature float32
	reply       string
	err         error
	listErr     error
}

func (p *recordingProvider) Generate(ctx context.Context, system, prompt string, temperature float32) (string, error) {
	p.system = system
	p.prompt = prompt
	p.temperature = temperature
	return p.reply, p.err
}

func (p *recordingProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{"model-a"}, p.listErr
}

var analystFinding = stig.Finding{
	RuleID:      "xccdf_org.ssgproject.content_rule_sshd_disable_root_login",
	Title:       "Disable SSH Root Login",
	Severity:    stig.CatI,
	Description: "Root must not log in directly over SSH.",
	FixText:     "Set PermitRootLogin no",
	CheckText:   "grep PermitRootLogin /etc/ssh/sshd_config",
}

func TestAnalyzePromptAndTemperature(t *testing.T) {
	p := &recordingProvider{reply: "analysis"}
	a := NewAnalyst(p)

	out, err := a.Analyze(context.Background(), analystFinding)
	if err != nil {
		t.Fatal(err)
	}
	if out != "analysis" {
		t.Errorf("out = %q", out)
	}
	if p.system != analystSystemPrompt {
		t.Errorf("system prompt = %q", p.system)
	}
	if p.temperature != tempAnalysis {
		t.Errorf("temperature = %v, want %v", p.temperature, tempAnalysis)
	}
	for _, want := range []string{analystFinding.RuleID, analystFinding.Title, "ATTACK SCENARIO"} {
		if !strings.Contains(p.prompt, want) {
			t.Errorf("analysis prompt missing %q", want)
		}
	}
}

func TestProposeRemediationUsesLowTemperature(t *testing.T) {
	p := &recordingProvider{reply: "- name: fix"}
	a := NewAnalyst(p)

	if _, err := a.ProposeRemediation(context.Background(), analystFinding); err != nil {
		t.Fatal(err)
	}
	if p.temperature != tempRemediation {
		t.Errorf("temperature = %v, want %v", p.temperature, tempRemediation)
	}
	if !strings.Contains(p.prompt, analystFinding.FixText) {
		t.Error("remediation prompt must carry the vendor fix text")
	}
	if !strings.Contains(p.prompt, "idempotent") {
		t.Error("remediation prompt must demand idempotent tasks")
	}
}

func TestAnalyzeBatchListsEveryFinding(t *testing.T) {
	p := &recordingProvider{reply: "triage"}
	a := NewAnalyst(p)

	findings := []stig.Finding{
		analystFinding,
		{RuleID: "rule_two", Title: "Second", Severity: stig.CatII},
	}
	if _, err := a.AnalyzeBatch(context.Background(), findings); err != nil {
		t.Fatal(err)
	}
	for _, f := range findings {
		if !strings.Contains(p.prompt, f.RuleID) {
			t.Errorf("batch prompt missing %s", f.RuleID)
		}
	}
}

func TestSummarizePrompt(t *testing.T) {
	p := &recordingProvider{reply: "summary"}
	a := NewAnalyst(p)

	_, err := a.Summarize(context.Background(), SummaryInput{
		BeforeScore: stig.Score{Score: 40, FailCount: 12},
		AfterScore:  stig.Score{Score: 70, FailCount: 6},
		Applied:     []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7"},
		Skipped:     []string{"r8"},
		Remaining:   []stig.Finding{{RuleID: "r9", Severity: stig.CatI, Title: "left over"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.temperature != tempReport {
		t.Errorf("temperature = %v, want %v", p.temperature, tempReport)
	}
	if !strings.Contains(p.prompt, "40.0%") || !strings.Contains(p.prompt, "70.0%") {
		t.Error("summary prompt missing before/after scores")
	}
	if !strings.Contains(p.prompt, "7 fixes") {
		t.Error("summary prompt must count all applied fixes")
	}
	if strings.Contains(p.prompt, "r6") {
		t.Error("applied list in the prompt is truncated to five entries")
	}
	if !strings.Contains(p.prompt, "r9") {
		t.Error("summary prompt missing remaining findings")
	}
}

func TestGenerateErrorPropagates(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	a := NewAnalyst(&recordingProvider{err: wantErr})

	if _, err := a.Analyze(context.Background(), analystFinding); !errors.Is(err, wantErr) {
		t.Errorf("got %v, want %v", err, wantErr)
	}
}

func TestPing(t *testing.T) {
	if err := NewAnalyst(&recordingProvider{}).Ping(context.Background()); err != nil {
		t.Errorf("healthy provider: %v", err)
	}

	dead := &recordingProvider{listErr: errors.New("connection refused")}
	if err := NewAnalyst(dead).Ping(context.Background()); err == nil {
		t.Error("dead provider should fail the ping")
	}
}
