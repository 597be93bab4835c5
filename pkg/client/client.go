// Package client gives the session orchestrator one uniform contract for the
// scan, reasoning, remediation and ledger engines, whether they run in this
// process or behind an HTTP boundary.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/hardenctl/pkg/adk"
	"github.com/user/hardenctl/pkg/ledger"
	"github.com/user/hardenctl/pkg/stig"
)

var (
	// ErrEngineUnavailable means a collaborator engine was unreachable or
	// timed out. Not retried at this layer.
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrConfirmationRequired means an apply was attempted without the
	// explicit confirmation flag. Rejected before any system mutation.
	ErrConfirmationRequired = errors.New("confirmed must be true to apply remediations")
)

// Scan job states as reported by PollScan.
const (
	ScanQueued   = "queued"
	ScanRunning  = "running"
	ScanComplete = "complete"
	ScanError    = "error"
)

// ScanRequest starts a scan, or re-parses a pre-existing results file when
// ResultsXML is set.
type ScanRequest struct {
	Profile     string     `json:"profile,omitempty"`
	MinSeverity stig.Floor `json:"min_severity,omitempty"`
	ResultsXML  string     `json:"results_xml,omitempty"`
}

// ScanStatus is one poll observation of a scan job.
type ScanStatus struct {
	JobID      string         `json:"job_id"`
	Status     string         `json:"status"`
	Score      *stig.Score    `json:"score,omitempty"`
	Findings   []stig.Finding `json:"findings,omitempty"`
	ResultsXML string         `json:"results_xml,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// ApplyRequest asks the remediation engine to run one proposed fix.
// Confirmed must be true or the request is rejected outright.
type ApplyRequest struct {
	Finding   stig.Finding `json:"finding"`
	TaskYAML  string       `json:"task_yaml"`
	Confirmed bool         `json:"confirmed"`
}

// ApplyResult reports the outcome of one remediation apply.
type ApplyResult struct {
	RuleID  string `json:"rule_id"`
	Success bool   `json:"success"`
	Output  string `json:"output"`
	DryRun  bool   `json:"dry_run"`
}

// HealthStatus is one collaborator's probe result.
type HealthStatus struct {
	Component string `json:"component"`
	Healthy   bool   `json:"healthy"`
	Detail    string `json:"detail,omitempty"`
}

// Engines is the call-and-optionally-poll contract shared by the in-process
// and remote deployments. The session state machine never branches on which
// one it holds.
type Engines interface {
	Health(ctx context.Context) []HealthStatus

	StartScan(ctx context.Context, req ScanRequest) (jobID string, err error)
	PollScan(ctx context.Context, jobID string) (*ScanStatus, error)

	Analyze(ctx context.Context, f stig.Finding) (string, error)
	AnalyzeBatch(ctx context.Context, findings []stig.Finding) (string, error)
	ProposeRemediation(ctx context.Context, f stig.Finding) (string, error)
	Summarize(ctx context.Context, in adk.SummaryInput) (string, error)

	Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error)

	RecordScan(ctx context.Context, score stig.Score, findings []stig.Finding, applied []string) (ledger.Entry, error)
}

const (
	// DefaultPollInterval between scan status checks.
	DefaultPollInterval = 3 * time.Second

	// DefaultScanWait bounds the whole polling loop; matches the scanner's
	// own execution timeout.
	DefaultScanWait = 10 * time.Minute
)

// WaitForScan polls a scan job until it completes, errors, or the deadline
// expires. It never polls forever.
func WaitForScan(ctx context.Context, e Engines, jobID string, interval, timeout time.Duration) (*ScanStatus, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultScanWait
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := e.PollScan(ctx, jobID)
		if err != nil {
			return nil, err
		}
		switch status.Status {
		case ScanComplete:
			return status, nil
		case ScanError:
			return nil, errors.New("scan failed: " + status.Error)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: scan did not complete within %s", ErrEngineUnavailable, timeout)
		case <-ticker.C:
		}
	}
}
