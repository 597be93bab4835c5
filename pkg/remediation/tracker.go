package remediation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Summary is the per-session partition of processed rule ids. The three
// slices are disjoint and insertion-ordered.
type Summary struct {
	Applied []string `json:"applied"`
	Skipped []string `json:"skipped"`
	Failed  []string `json:"failed"`
}

// Tracker records apply/skip/fail outcomes for one session.
type Tracker struct {
	mu      sync.Mutex
	applied []string
	skipped []string
	failed  []string
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) RecordApplied(ruleID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applied = append(t.applied, ruleID)
}

func (t *Tracker) RecordSkipped(ruleID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skipped = append(t.skipped, ruleID)
}

func (t *Tracker) RecordFailed(ruleID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = append(t.failed, ruleID)
}

func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Summary{
		Applied: append([]string(nil), t.applied...),
		Skipped: append([]string(nil), t.skipped...),
		Failed:  append([]string(nil), t.failed...),
	}
}

// SaveSessionLog writes the human-readable outcome record for the session.
func (t *Tracker) SaveSessionLog(reportsDir string) (string, error) {
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return "", err
	}

	s := t.Summary()
	path := filepath.Join(reportsDir,
		fmt.Sprintf("session_log_%s.txt", time.Now().Format("20060102_150405")))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("STIG Hardening Session - %s\n", time.Now().Format(time.RFC3339)))
	sb.WriteString(strings.Repeat("=", 60) + "\n\n")
	sb.WriteString(fmt.Sprintf("Applied  (%d): %s\n", len(s.Applied), orNone(s.Applied)))
	sb.WriteString(fmt.Sprintf("Skipped  (%d): %s\n", len(s.Skipped), orNone(s.Skipped)))
	sb.WriteString(fmt.Sprintf("Failed   (%d): %s\n", len(s.Failed), orNone(s.Failed)))

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func orNone(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}
