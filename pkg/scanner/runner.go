package scanner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultScanTimeout bounds one oscap invocation. Full STIG profiles on a
	// loaded host take several minutes.
	DefaultScanTimeout = 10 * time.Minute

	profilePrefix = "xccdf_org.ssgproject.content_profile_"
)

// Runner executes OpenSCAP scans and writes results under ReportsDir.
type Runner struct {
	ContentPath string
	Profile     string
	ReportsDir  string
	Timeout     time.Duration

	log *logrus.Entry
}

func NewRunner(contentPath, profile, reportsDir string, log *logrus.Entry) *Runner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runner{
		ContentPath: contentPath,
		Profile:     profile,
		ReportsDir:  reportsDir,
		Timeout:     DefaultScanTimeout,
		log:         log,
	}
}

// CheckPrerequisites verifies oscap is installed and the SCAP datastream
// exists. Used as the scan engine's health probe.
func (r *Runner) CheckPrerequisites() error {
	if _, err := exec.LookPath("oscap"); err != nil {
		return fmt.Errorf("%w: oscap not found on PATH (install openscap-scanner)", ErrScanFailed)
	}
	if _, err := os.Stat(r.ContentPath); err != nil {
		return fmt.Errorf("%w: SCAP content not found at %s (install scap-security-guide)", ErrScanFailed, r.ContentPath)
	}
	return nil
}

// Run executes one oscap scan and returns the results XML and HTML report
// paths. oscap exits 2 when the scan completed but rules failed; that is the
// normal outcome on an unhardened host and is not an error. Every other
// nonzero status means the scan itself broke.
func (r *Runner) Run(ctx context.Context) (resultsXML, reportHTML string, err error) {
	if err := r.CheckPrerequisites(); err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(r.ReportsDir, 0o755); err != nil {
		return "", "", fmt.Errorf("%w: create reports dir: %v", ErrScanFailed, err)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stamp := time.Now().Format("20060102_150405")
	resultsXML = filepath.Join(r.ReportsDir, fmt.Sprintf("scan_results_%s.xml", stamp))
	reportHTML = filepath.Join(r.ReportsDir, fmt.Sprintf("scan_report_%s.html", stamp))

	cmd := exec.CommandContext(ctx, "oscap", "xccdf", "eval",
		"--profile", profilePrefix+r.Profile,
		"--results", resultsXML,
		"--report", reportHTML,
		"--oval-results",
		r.ContentPath,
	)

	r.log.WithFields(logrus.Fields{
		"profile": r.Profile,
		"content": r.ContentPath,
	}).Info("Starting OpenSCAP scan")

	out, runErr := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", "", fmt.Errorf("%w: scan timed out after %s", ErrScanFailed, timeout)
	}
	if runErr != nil {
		exitErr, ok := runErr.(*exec.ExitError)
		if !ok {
			return "", "", fmt.Errorf("%w: %v", ErrScanFailed, runErr)
		}
		// Exit 2 = completed with findings.
		if exitErr.ExitCode() != 2 {
			return "", "", fmt.Errorf("%w: oscap exited %d: %s",
				ErrScanFailed, exitErr.ExitCode(), tail(string(out), 500))
		}
	}

	r.log.WithField("results", resultsXML).Info("Scan complete")
	return resultsXML, reportHTML, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
