package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/user/hardenctl/pkg/stig"
)

const sampleResults = `<?xml version="1.0" encoding="UTF-8"?>
<Benchmark xmlns="http://checklists.nist.gov/xccdf/1.2" id="xccdf_org.ssgproject.content_benchmark_RHEL-9">
  <Group id="xccdf_org.ssgproject.content_group_system">
    <Group id="xccdf_org.ssgproject.content_group_accounts">
      <Rule id="xccdf_org.ssgproject.content_rule_sshd_disable_root_login" severity="high">
        <title>Disable SSH Root Login</title>
        <description>The root user should never log in over SSH directly.</description>
        <reference href="https://public.cyber.mil/stigs/">SV-230296r858705_rule</reference>
        <fixtext>Set PermitRootLogin no in /etc/ssh/sshd_config and restart sshd.</fixtext>
        <check system="http://oval.mitre.org/XMLSchema/oval-definitions-5">
          <check-content>grep PermitRootLogin /etc/ssh/sshd_config</check-content>
        </check>
      </Rule>
      <Rule id="xccdf_org.ssgproject.content_rule_accounts_tmout" severity="medium">
        <title>Set Interactive Session Timeout</title>
        <description>Idle sessions must time out.</description>
        <fixtext>Set TMOUT=900 in /etc/profile.</fixtext>
      </Rule>
      <Rule id="xccdf_org.ssgproject.content_rule_banner_etc_issue" severity="low">
        <title>Modify the System Login Banner</title>
        <fixtext>Install the DoD banner text into /etc/issue.</fixtext>
      </Rule>
      <Rule id="xccdf_org.ssgproject.content_rule_no_metadata" severity="medium">
      </Rule>
    </Group>
  </Group>
  <TestResult id="xccdf_org.open-scap_testresult">
    <rule-result idref="xccdf_org.ssgproject.content_rule_banner_etc_issue" severity="low">
      <result>fail</result>
    </rule-result>
    <rule-result idref="xccdf_org.ssgproject.content_rule_accounts_tmout" severity="medium">
      <result>fail</result>
    </rule-result>
    <rule-result idref="xccdf_org.ssgproject.content_rule_sshd_disable_root_login" severity="high">
      <result>fail</result>
    </rule-result>
    <rule-result idref="xccdf_org.ssgproject.content_rule_no_metadata">
      <result>fail</result>
    </rule-result>
    <rule-result idref="xccdf_org.ssgproject.content_rule_passing_one" severity="high">
      <result>pass</result>
    </rule-result>
    <rule-result idref="xccdf_org.ssgproject.content_rule_passing_two" severity="medium">
      <result>pass</result>
    </rule-result>
    <rule-result idref="xccdf_org.ssgproject.content_rule_skipped" severity="low">
      <result>notchecked</result>
    </rule-result>
    <rule-result idref="xccdf_org.ssgproject.content_rule_na" severity="low">
      <result>notapplicable</result>
    </rule-result>
  </TestResult>
</Benchmark>`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.xml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseResultsFailedOnly(t *testing.T) {
	path := writeSample(t, sampleResults)

	findings, err := ParseResults(path, stig.FloorAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 4 {
		t.Fatalf("got %d findings, want 4 (fail results only)", len(findings))
	}
	for _, f := range findings {
		if f.Result != stig.ResultFail {
			t.Errorf("finding %s has result %q, want fail", f.RuleID, f.Result)
		}
	}
}

func TestParseResultsOrderedBySeverity(t *testing.T) {
	path := writeSample(t, sampleResults)

	findings, err := ParseResults(path, stig.FloorAll)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(findings); i++ {
		if findings[i-1].Severity.Rank() < findings[i].Severity.Rank() {
			t.Fatalf("findings out of order: %s (%s) before %s (%s)",
				findings[i-1].RuleID, findings[i-1].Severity,
				findings[i].RuleID, findings[i].Severity)
		}
	}
	if findings[0].Severity != stig.CatI {
		t.Errorf("first finding is %s, want CAT I", findings[0].Severity)
	}
}

func TestParseResultsFloorIsSubset(t *testing.T) {
	path := writeSample(t, sampleResults)

	all, err := ParseResults(path, stig.FloorAll)
	if err != nil {
		t.Fatal(err)
	}
	catII, err := ParseResults(path, stig.FloorCatII)
	if err != nil {
		t.Fatal(err)
	}
	catI, err := ParseResults(path, stig.FloorCatI)
	if err != nil {
		t.Fatal(err)
	}

	if len(catII) != 3 {
		t.Errorf("CAT_II floor: got %d findings, want 3", len(catII))
	}
	if len(catI) != 1 {
		t.Errorf("CAT_I floor: got %d findings, want 1", len(catI))
	}

	inAll := make(map[string]bool, len(all))
	for _, f := range all {
		inAll[f.RuleID] = true
	}
	for _, f := range append(append([]stig.Finding{}, catII...), catI...) {
		if !inAll[f.RuleID] {
			t.Errorf("finding %s admitted by a floor but absent without one", f.RuleID)
		}
	}
}

func TestParseResultsEnrichesFromRuleDef(t *testing.T) {
	path := writeSample(t, sampleResults)

	findings, err := ParseResults(path, stig.FloorCatI)
	if err != nil {
		t.Fatal(err)
	}
	f := findings[0]
	if f.RuleID != "xccdf_org.ssgproject.content_rule_sshd_disable_root_login" {
		t.Fatalf("unexpected finding %s", f.RuleID)
	}
	if f.Title != "Disable SSH Root Login" {
		t.Errorf("title = %q", f.Title)
	}
	if f.FixText == "" || f.CheckText == "" {
		t.Error("fix and check text should come from the rule definition")
	}
	if len(f.References) != 1 {
		t.Errorf("got %d references, want 1", len(f.References))
	}
}

func TestParseResultsDefaultsForSparseRules(t *testing.T) {
	path := writeSample(t, sampleResults)

	findings, err := ParseResults(path, stig.FloorAll)
	if err != nil {
		t.Fatal(err)
	}
	var sparse *stig.Finding
	for i := range findings {
		if findings[i].RuleID == "xccdf_org.ssgproject.content_rule_no_metadata" {
			sparse = &findings[i]
		}
	}
	if sparse == nil {
		t.Fatal("sparse rule not found")
	}
	if sparse.Title != sparse.RuleID {
		t.Errorf("empty title should default to the rule id, got %q", sparse.Title)
	}
	if sparse.Description != "No description available." {
		t.Errorf("description default missing, got %q", sparse.Description)
	}
	if sparse.FixText != "No automated fix available." {
		t.Errorf("fix text default missing, got %q", sparse.FixText)
	}
	// severity came only from the Rule element, not the rule-result
	if sparse.Severity != stig.CatII {
		t.Errorf("severity = %s, want CAT II from rule definition", sparse.Severity)
	}
}

func TestParseScore(t *testing.T) {
	path := writeSample(t, sampleResults)

	score, err := ParseScore(path)
	if err != nil {
		t.Fatal(err)
	}
	if score.PassCount != 2 || score.FailCount != 4 {
		t.Fatalf("pass=%d fail=%d, want 2/4", score.PassCount, score.FailCount)
	}
	if score.NotChecked != 1 || score.NotApplicable != 1 {
		t.Errorf("notchecked=%d notapplicable=%d, want 1/1", score.NotChecked, score.NotApplicable)
	}
	want := 100 * 2.0 / 6.0
	if diff := score.Score - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("score = %v, want %v", score.Score, want)
	}
}

func TestParseScoreZeroChecked(t *testing.T) {
	path := writeSample(t, `<Benchmark><TestResult>
		<rule-result idref="r1"><result>notchecked</result></rule-result>
	</TestResult></Benchmark>`)

	score, err := ParseScore(path)
	if err != nil {
		t.Fatal(err)
	}
	if score.Score != 0 {
		t.Errorf("score with zero checked rules = %v, want 0", score.Score)
	}
}

func TestParseResultsMissingFile(t *testing.T) {
	_, err := ParseResults(filepath.Join(t.TempDir(), "nope.xml"), stig.FloorAll)
	if !errors.Is(err, ErrReportNotFound) {
		t.Errorf("got %v, want ErrReportNotFound", err)
	}
}

func TestParseResultsMalformed(t *testing.T) {
	for name, content := range map[string]string{
		"truncated": `<Benchmark><TestResult><rule-result idref="x">`,
		"empty":     ``,
		"not xml":   `this is not xml at all`,
	} {
		path := writeSample(t, content)
		if _, err := ParseResults(path, stig.FloorAll); !errors.Is(err, ErrMalformedReport) {
			t.Errorf("%s: got %v, want ErrMalformedReport", name, err)
		}
	}
}
