package remediation

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultApplyTimeout bounds one ansible-playbook run. A fix that takes
	// longer than this is treated as failed, never left hanging.
	DefaultApplyTimeout = 2 * time.Minute

	// maxOutputBytes caps the captured stdout+stderr kept per apply. The tail
	// is kept because ansible prints the failure recap last.
	maxOutputBytes = 16 * 1024
)

// Executor runs generated playbooks against the local host.
type Executor struct {
	DryRun  bool
	Timeout time.Duration

	log *logrus.Entry
}

func NewExecutor(dryRun bool, log *logrus.Entry) *Executor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Executor{DryRun: dryRun, Timeout: DefaultApplyTimeout, log: log}
}

// ProbeBinary checks ansible-playbook is installed. Used as the remediation
// engine's health probe.
func (e *Executor) ProbeBinary() (string, error) {
	path, err := exec.LookPath("ansible-playbook")
	if err != nil {
		return "", fmt.Errorf("ansible-playbook not found on PATH (install ansible)")
	}
	return path, nil
}

// Apply executes the playbook and reports success plus captured output. In
// dry-run mode ansible's --check pass validates without mutating the host.
// Failures (nonzero exit, missing binary, timeout) are outcomes, not errors:
// the session records them and moves on.
func (e *Executor) Apply(ctx context.Context, playbookPath string) (bool, string) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultApplyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{playbookPath, "-v"}
	if e.DryRun {
		args = append(args, "--check")
		e.log.Warn("Dry run mode: no changes will be applied")
	}

	cmd := exec.CommandContext(ctx, "ansible-playbook", args...)
	out, err := cmd.CombinedOutput()
	output := truncate(string(out))

	if ctx.Err() == context.DeadlineExceeded {
		return false, fmt.Sprintf("playbook execution timed out after %s", timeout)
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return false, fmt.Sprintf("ansible-playbook not found or failed to start: %v", err)
		}
		return false, output
	}
	return true, output
}

func truncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return "..." + s[len(s)-maxOutputBytes:]
}
