// Package session implements the hardening session orchestrator: the phase
// state machine, the finding queue, and the human approval gate that ties the
// scan, reasoning and remediation engines into one resumable run.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/user/hardenctl/pkg/adk"
	"github.com/user/hardenctl/pkg/client"
	"github.com/user/hardenctl/pkg/remediation"
	"github.com/user/hardenctl/pkg/stig"
)

// Phase is the session's position in the hardening workflow.
type Phase string

const (
	PhaseQueued      Phase = "queued"
	PhaseScanning    Phase = "scanning"
	PhaseAnalyzing   Phase = "analyzing"
	PhaseRemediating Phase = "remediating"
	PhaseValidating  Phase = "validating"
	PhaseComplete    Phase = "complete"
	PhaseError       Phase = "error"
)

// Decision is the operator's verdict on one pending approval.
type Decision string

const (
	DecisionApply Decision = "apply"
	DecisionSkip  Decision = "skip"
	DecisionQuit  Decision = "quit"
)

// ParseDecision accepts the full words and their single-letter aliases.
func ParseDecision(raw string) (Decision, error) {
	switch raw {
	case "apply", "a":
		return DecisionApply, nil
	case "skip", "s":
		return DecisionSkip, nil
	case "quit", "q":
		return DecisionQuit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDecision, raw)
	}
}

var (
	// ErrInvalidDecision is returned for a decision outside apply/skip/quit.
	// The pending approval is left unchanged.
	ErrInvalidDecision = errors.New("invalid decision (expected apply, skip or quit)")

	// ErrNoPendingApproval means SubmitDecision was called with nothing
	// awaiting a decision.
	ErrNoPendingApproval = errors.New("no pending approval")

	// ErrWrongPhase means an operation was invoked outside its phase.
	ErrWrongPhase = errors.New("operation not valid in current phase")
)

// Config is the operator-supplied session configuration.
type Config struct {
	Profile      string
	MinSeverity  stig.Floor
	DryRun       bool
	AutoApplyLow bool

	// ResultsXML reuses an existing results file instead of scanning.
	ResultsXML string

	PollInterval time.Duration
	ScanWait     time.Duration
}

// Approval is the single in-flight record awaiting an operator decision.
type Approval struct {
	Finding  stig.Finding
	Analysis string
	TaskYAML string
	Index    int // 1-based position in the queue
	Total    int
}

// Session owns one hardening run. The finding queue, pending approval and
// outcome sets belong exclusively to this instance; only the ledger is shared
// across sessions.
type Session struct {
	ID string

	cfg     Config
	engines client.Engines
	tracker *remediation.Tracker
	log     *logrus.Entry

	phase        Phase
	errMsg       string
	findings     []stig.Finding
	pos          int
	pending      *Approval
	beforeScore  stig.Score
	afterScore   *stig.Score
	triageReport string
	finalReport  string
	remaining    []stig.Finding
}

func New(cfg Config, engines client.Engines, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.MinSeverity == "" {
		cfg.MinSeverity = stig.FloorCatII
	}
	id := uuid.NewString()
	return &Session{
		ID:      id,
		cfg:     cfg,
		engines: engines,
		tracker: remediation.NewTracker(),
		log:     log.WithField("session", id[:8]),
		phase:   PhaseQueued,
	}
}

func (s *Session) Phase() Phase             { return s.phase }
func (s *Session) Err() string              { return s.errMsg }
func (s *Session) Findings() []stig.Finding { return s.findings }
func (s *Session) BeforeScore() stig.Score  { return s.beforeScore }
func (s *Session) AfterScore() *stig.Score  { return s.afterScore }
func (s *Session) TriageReport() string     { return s.triageReport }
func (s *Session) FinalReport() string      { return s.finalReport }
func (s *Session) Pending() *Approval       { return s.pending }

// Summary returns the disjoint applied/skipped/failed partition so far.
func (s *Session) Summary() remediation.Summary { return s.tracker.Summary() }

// Remaining returns findings that were neither applied, skipped nor failed
// (populated when the queue is abandoned via quit, or from the validation
// scan once it has run).
func (s *Session) Remaining() []stig.Finding { return s.remaining }

// Tracker exposes the remediation tracker for end-of-session log writing.
func (s *Session) Tracker() *remediation.Tracker { return s.tracker }

// fail moves the session to the absorbing Error state. Further operations
// are frozen; the message stays on the session for inspection.
func (s *Session) fail(op string, err error) error {
	s.phase = PhaseError
	s.errMsg = fmt.Sprintf("%s: %v", op, err)
	s.pending = nil
	s.log.WithError(err).WithField("op", op).Error("Session entered error state")
	return err
}

// Start drives Queued through Scanning to Analyzing: launches the scan, waits for
// completion, records the baseline score and appends the first ledger entry
// (empty applied list). Scan or parse failure is fatal to the session.
func (s *Session) Start(ctx context.Context) error {
	if s.phase != PhaseQueued {
		return fmt.Errorf("%w: Start in %s", ErrWrongPhase, s.phase)
	}
	s.phase = PhaseScanning

	jobID, err := s.engines.StartScan(ctx, client.ScanRequest{
		Profile:     s.cfg.Profile,
		MinSeverity: s.cfg.MinSeverity,
		ResultsXML:  s.cfg.ResultsXML,
	})
	if err != nil {
		return s.fail("start scan", err)
	}
	s.log.WithField("job", jobID).Info("Scan started")

	status, err := client.WaitForScan(ctx, s.engines, jobID, s.cfg.PollInterval, s.cfg.ScanWait)
	if err != nil {
		return s.fail("scan", err)
	}

	s.findings = status.Findings
	if status.Score != nil {
		s.beforeScore = *status.Score
	}

	if _, err := s.engines.RecordScan(ctx, s.beforeScore, s.findings, nil); err != nil {
		return s.fail("record baseline", err)
	}

	s.phase = PhaseAnalyzing
	s.log.WithFields(logrus.Fields{
		"findings": len(s.findings),
		"score":    s.beforeScore.Score,
	}).Info("Baseline recorded")
	return nil
}

// Triage asks the reasoning engine for the whole-batch triage report. Engine
// unavailability here is fatal: no findings have been processed yet and the
// operator needs this context before approving anything.
func (s *Session) Triage(ctx context.Context) (string, error) {
	if s.phase != PhaseAnalyzing {
		return "", fmt.Errorf("%w: Triage in %s", ErrWrongPhase, s.phase)
	}
	if len(s.findings) == 0 {
		return "", nil
	}

	report, err := s.engines.AnalyzeBatch(ctx, s.findings)
	if err != nil {
		return "", s.fail("batch triage", err)
	}
	s.triageReport = report
	return report, nil
}

// Proceed records the operator's go/no-go after triage. Declining completes
// the session with nothing processed; proceeding enters Remediating and
// prepares the first approval.
func (s *Session) Proceed(ctx context.Context, proceed bool) error {
	if s.phase != PhaseAnalyzing {
		return fmt.Errorf("%w: Proceed in %s", ErrWrongPhase, s.phase)
	}
	if !proceed || len(s.findings) == 0 {
		s.remaining = s.findings
		s.phase = PhaseComplete
		return nil
	}
	s.phase = PhaseRemediating
	return s.advance(ctx)
}

// advance walks the queue from the current position: auto-applies CAT III
// findings when configured, otherwise fetches the per-finding analysis and
// proposed fix and exposes them as the one pending approval. When the queue
// is exhausted it closes out the remediation phase.
func (s *Session) advance(ctx context.Context) error {
	for s.pos < len(s.findings) {
		f := s.findings[s.pos]

		if s.cfg.AutoApplyLow && f.Severity == stig.CatIII {
			s.log.WithField("rule", f.RuleID).Info("Auto-applying low severity finding")
			if err := s.applyFinding(ctx, f, ""); err != nil {
				return err
			}
			s.pos++
			continue
		}

		// Both engine calls must complete before the gate opens.
		analysis, err := s.engines.Analyze(ctx, f)
		if err != nil {
			return s.fail("analysis", err)
		}
		taskYAML, err := s.engines.ProposeRemediation(ctx, f)
		if err != nil {
			return s.fail("propose remediation", err)
		}

		s.pending = &Approval{
			Finding:  f,
			Analysis: analysis,
			TaskYAML: taskYAML,
			Index:    s.pos + 1,
			Total:    len(s.findings),
		}
		return nil
	}

	return s.finishRemediation(ctx)
}

// SubmitDecision resolves the pending approval. Invalid decisions leave it
// in place; quit abandons the untouched remainder of the queue.
func (s *Session) SubmitDecision(ctx context.Context, d Decision) error {
	if s.phase != PhaseRemediating {
		return fmt.Errorf("%w: SubmitDecision in %s", ErrWrongPhase, s.phase)
	}
	if s.pending == nil {
		return ErrNoPendingApproval
	}

	f := s.pending.Finding
	taskYAML := s.pending.TaskYAML

	switch d {
	case DecisionApply:
		s.pending = nil
		if err := s.applyFinding(ctx, f, taskYAML); err != nil {
			return err
		}
		s.pos++
		return s.advance(ctx)
	case DecisionSkip:
		s.pending = nil
		s.tracker.RecordSkipped(f.RuleID)
		s.log.WithField("rule", f.RuleID).Info("Skipped")
		s.pos++
		return s.advance(ctx)
	case DecisionQuit:
		s.pending = nil
		s.remaining = s.findings[s.pos:]
		s.log.WithField("remaining", len(s.remaining)).Info("Operator quit remediation loop")
		return s.finishRemediation(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDecision, d)
	}
}

// applyFinding runs one apply and records the outcome. Apply failures
// (nonzero exit, timeout, an unreachable remediation engine) are local:
// the rule lands in failed and the queue moves on.
func (s *Session) applyFinding(ctx context.Context, f stig.Finding, taskYAML string) error {
	result, err := s.engines.Apply(ctx, client.ApplyRequest{
		Finding:   f,
		TaskYAML:  taskYAML,
		Confirmed: true,
	})
	if err != nil {
		if errors.Is(err, client.ErrConfirmationRequired) {
			return s.fail("apply", err)
		}
		s.tracker.RecordFailed(f.RuleID)
		s.log.WithError(err).WithField("rule", f.RuleID).Warn("Apply failed")
		return nil
	}

	if result.Success {
		s.tracker.RecordApplied(f.RuleID)
		s.log.WithField("rule", f.RuleID).Info("Applied")
	} else {
		s.tracker.RecordFailed(f.RuleID)
		s.log.WithField("rule", f.RuleID).Warn("Apply reported failure")
	}
	return nil
}

// finishRemediation decides whether a validation re-scan is worthwhile:
// only when at least one fix was applied and the session is live. Otherwise
// the session completes immediately.
func (s *Session) finishRemediation(ctx context.Context) error {
	summary := s.tracker.Summary()
	if len(summary.Applied) == 0 || s.cfg.DryRun {
		s.phase = PhaseComplete
		s.log.Info("Session complete without validation scan")
		return nil
	}
	return s.validate(ctx)
}

// validate re-scans at the original severity floor, records the second
// ledger entry with the real applied list, and fetches the executive
// summary.
func (s *Session) validate(ctx context.Context) error {
	s.phase = PhaseValidating
	summary := s.tracker.Summary()

	jobID, err := s.engines.StartScan(ctx, client.ScanRequest{
		Profile:     s.cfg.Profile,
		MinSeverity: s.cfg.MinSeverity,
	})
	if err != nil {
		return s.fail("validation scan", err)
	}

	status, err := client.WaitForScan(ctx, s.engines, jobID, s.cfg.PollInterval, s.cfg.ScanWait)
	if err != nil {
		return s.fail("validation scan", err)
	}

	s.remaining = status.Findings
	if status.Score != nil {
		s.afterScore = status.Score
	}

	after := s.beforeScore
	if s.afterScore != nil {
		after = *s.afterScore
	}

	if _, err := s.engines.RecordScan(ctx, after, s.remaining, summary.Applied); err != nil {
		return s.fail("record validation", err)
	}

	report, err := s.engines.Summarize(ctx, adk.SummaryInput{
		BeforeScore: s.beforeScore,
		AfterScore:  after,
		Applied:     summary.Applied,
		Skipped:     summary.Skipped,
		Failed:      summary.Failed,
		Remaining:   s.remaining,
	})
	if err != nil {
		return s.fail("final report", err)
	}
	s.finalReport = report

	s.phase = PhaseComplete
	s.log.WithFields(logrus.Fields{
		"before": s.beforeScore.Score,
		"after":  after.Score,
	}).Info("Session complete")
	return nil
}
