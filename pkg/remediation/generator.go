// Package remediation turns engine-proposed fixes into runnable Ansible
// playbooks, applies them with a bounded timeout, and tracks per-rule
// outcomes for the session.
package remediation

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/hardenctl/pkg/stig"
)

// AuditLogPath is where applied playbooks record their audit line.
const AuditLogPath = "/var/log/stig_remediation.log"

var unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Generator writes one self-contained playbook per finding.
type Generator struct {
	PlaybooksDir string
}

func NewGenerator(playbooksDir string) *Generator {
	return &Generator{PlaybooksDir: playbooksDir}
}

// GeneratePlaybook renders the playbook for a finding. taskYAML is whatever
// the reasoning engine produced; it is parsed best-effort and replaced with a
// shell task wrapping the vendor fix text when it is not valid YAML, so a
// malformed proposal never aborts the session.
func (g *Generator) GeneratePlaybook(f stig.Finding, taskYAML string) (string, error) {
	if err := os.MkdirAll(g.PlaybooksDir, 0o755); err != nil {
		return "", fmt.Errorf("create playbooks dir: %w", err)
	}

	tasks := parseTasks(f, taskYAML)

	playbook := []map[string]interface{}{{
		"name":         fmt.Sprintf("STIG Remediation: %s", f.RuleID),
		"hosts":        "localhost",
		"become":       true,
		"gather_facts": true,
		"vars": map[string]interface{}{
			"stig_rule_id":  f.RuleID,
			"stig_severity": f.Severity.String(),
		},
		"tasks": tasks,
		"post_tasks": []map[string]interface{}{{
			"name": "Log remediation",
			"lineinfile": map[string]interface{}{
				"path":   AuditLogPath,
				"line":   fmt.Sprintf("{{ ansible_date_time.iso8601 }} APPLIED %s [%s]", f.RuleID, f.Severity),
				"create": true,
			},
		}},
	}}

	data, err := yaml.Marshal(playbook)
	if err != nil {
		return "", fmt.Errorf("marshal playbook: %w", err)
	}

	stamp := time.Now().Format("20060102_150405")
	safeID := unsafeIDChars.ReplaceAllString(f.RuleID, "_")
	path := filepath.Join(g.PlaybooksDir, fmt.Sprintf("remediate_%s_%s.yml", safeID, stamp))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write playbook: %w", err)
	}
	return path, nil
}

// parseTasks interprets the engine's task text. Accepts a single task map or
// a task list; anything else falls back to the vendor fix text as a shell
// step.
func parseTasks(f stig.Finding, taskYAML string) []interface{} {
	cleaned := stripFences(taskYAML)

	var asList []interface{}
	if err := yaml.Unmarshal([]byte(cleaned), &asList); err == nil && len(asList) > 0 {
		if allTaskMaps(asList) {
			return asList
		}
	}

	var asMap map[string]interface{}
	if err := yaml.Unmarshal([]byte(cleaned), &asMap); err == nil && len(asMap) > 0 {
		return []interface{}{asMap}
	}

	return []interface{}{map[string]interface{}{
		"name":   fmt.Sprintf("Apply fix for %s", f.RuleID),
		"shell":  f.FixText,
		"become": true,
	}}
}

func allTaskMaps(list []interface{}) bool {
	for _, item := range list {
		if _, ok := item.(map[string]interface{}); !ok {
			return false
		}
	}
	return true
}

// stripFences removes markdown code fences that chat models wrap around YAML.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
