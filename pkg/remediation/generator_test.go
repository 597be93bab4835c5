package remediation

import (
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/user/hardenctl/pkg/stig"
)

var testFinding = stig.Finding{
	RuleID:   "xccdf_org.ssgproject.content_rule_sshd_disable_root_login",
	Title:    "Disable SSH Root Login",
	Severity: stig.CatI,
	FixText:  "Set PermitRootLogin no in /etc/ssh/sshd_config",
}

func generate(t *testing.T, taskYAML string) []map[string]interface{} {
	t.Helper()
	g := NewGenerator(t.TempDir())
	path, err := g.GeneratePlaybook(testFinding, taskYAML)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var playbook []map[string]interface{}
	if err := yaml.Unmarshal(data, &playbook); err != nil {
		t.Fatalf("generated playbook is not valid YAML: %v", err)
	}
	if len(playbook) != 1 {
		t.Fatalf("got %d plays, want 1", len(playbook))
	}
	return playbook
}

func playTasks(t *testing.T, play map[string]interface{}) []interface{} {
	t.Helper()
	tasks, ok := play["tasks"].([]interface{})
	if !ok || len(tasks) == 0 {
		t.Fatalf("play has no tasks: %v", play["tasks"])
	}
	return tasks
}

func TestGenerateFromTaskList(t *testing.T) {
	playbook := generate(t, `
- name: Set PermitRootLogin
  lineinfile:
    path: /etc/ssh/sshd_config
    regexp: '^PermitRootLogin'
    line: 'PermitRootLogin no'
- name: Restart sshd
  service:
    name: sshd
    state: restarted
`)
	tasks := playTasks(t, playbook[0])
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
}

func TestGenerateFromSingleTaskMap(t *testing.T) {
	playbook := generate(t, `
name: Set PermitRootLogin
lineinfile:
  path: /etc/ssh/sshd_config
  line: 'PermitRootLogin no'
`)
	tasks := playTasks(t, playbook[0])
	if len(tasks) != 1 {
		t.Fatalf("single task map should become a one-task list, got %d", len(tasks))
	}
}

func TestGenerateStripsMarkdownFences(t *testing.T) {
	playbook := generate(t, "```yaml\n- name: Fix it\n  shell: echo ok\n```")
	tasks := playTasks(t, playbook[0])
	task := tasks[0].(map[string]interface{})
	if task["name"] != "Fix it" {
		t.Errorf("fenced YAML not parsed, got task %v", task)
	}
}

func TestGenerateFallsBackToFixText(t *testing.T) {
	playbook := generate(t, "sorry, I cannot produce YAML for that: {{{")
	tasks := playTasks(t, playbook[0])
	task := tasks[0].(map[string]interface{})
	shell, _ := task["shell"].(string)
	if !strings.Contains(shell, "PermitRootLogin") {
		t.Errorf("fallback task should wrap the vendor fix text, got %v", task)
	}
}

func TestGeneratePlaybookScaffolding(t *testing.T) {
	playbook := generate(t, "- name: noop\n  shell: \"true\"")
	play := playbook[0]

	if play["hosts"] != "localhost" {
		t.Errorf("hosts = %v, want localhost", play["hosts"])
	}
	if play["become"] != true {
		t.Error("playbook must run with become")
	}
	vars, _ := play["vars"].(map[string]interface{})
	if vars["stig_rule_id"] != testFinding.RuleID {
		t.Errorf("stig_rule_id var = %v", vars["stig_rule_id"])
	}

	post, _ := play["post_tasks"].([]interface{})
	if len(post) != 1 {
		t.Fatalf("want one audit post_task, got %d", len(post))
	}
	line := post[0].(map[string]interface{})["lineinfile"].(map[string]interface{})
	if line["path"] != AuditLogPath {
		t.Errorf("audit log path = %v", line["path"])
	}
}

func TestTrackerSummaryDisjointAndOrdered(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordApplied("rule_a")
	tracker.RecordSkipped("rule_b")
	tracker.RecordFailed("rule_c")
	tracker.RecordApplied("rule_d")

	s := tracker.Summary()
	if len(s.Applied) != 2 || s.Applied[0] != "rule_a" || s.Applied[1] != "rule_d" {
		t.Errorf("applied = %v", s.Applied)
	}
	if len(s.Skipped) != 1 || len(s.Failed) != 1 {
		t.Errorf("skipped = %v, failed = %v", s.Skipped, s.Failed)
	}

	seen := map[string]int{}
	for _, id := range append(append(append([]string{}, s.Applied...), s.Skipped...), s.Failed...) {
		seen[id]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("rule %s appears in more than one outcome set", id)
		}
	}
}

func TestTrackerSummaryIsACopy(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordApplied("rule_a")

	s := tracker.Summary()
	s.Applied[0] = "mutated"

	if got := tracker.Summary().Applied[0]; got != "rule_a" {
		t.Errorf("summary must copy internal state, got %q", got)
	}
}

func TestSaveSessionLog(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordApplied("rule_a")
	tracker.RecordFailed("rule_b")

	dir := t.TempDir()
	path, err := tracker.SaveSessionLog(dir)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "rule_a") || !strings.Contains(content, "rule_b") {
		t.Errorf("session log missing rule ids:\n%s", content)
	}
	if !strings.Contains(content, "Skipped  (0): none") {
		t.Errorf("empty outcome set should print none:\n%s", content)
	}
}
