package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/user/hardenctl/pkg/adk"
	"github.com/user/hardenctl/pkg/ledger"
	"github.com/user/hardenctl/pkg/remediation"
	"github.com/user/hardenctl/pkg/scanner"
	"github.com/user/hardenctl/pkg/stig"
)

// InProcess runs every engine inside this process. Scans still run as
// background jobs behind the same start/poll contract the remote deployment
// uses, so the session never blocks on a connection for the scan duration.
type InProcess struct {
	Runner    *scanner.Runner
	Analyst   *adk.Analyst
	Generator *remediation.Generator
	Executor  *remediation.Executor
	Ledger    *ledger.Store

	log *logrus.Entry

	mu   sync.Mutex
	jobs map[string]*ScanStatus
}

func NewInProcess(runner *scanner.Runner, analyst *adk.Analyst, gen *remediation.Generator,
	exe *remediation.Executor, store *ledger.Store, log *logrus.Entry) *InProcess {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &InProcess{
		Runner:    runner,
		Analyst:   analyst,
		Generator: gen,
		Executor:  exe,
		Ledger:    store,
		log:       log,
		jobs:      make(map[string]*ScanStatus),
	}
}

func (p *InProcess) Health(ctx context.Context) []HealthStatus {
	var statuses []HealthStatus

	if err := p.Runner.CheckPrerequisites(); err != nil {
		statuses = append(statuses, HealthStatus{Component: "scanner", Detail: err.Error()})
	} else {
		statuses = append(statuses, HealthStatus{Component: "scanner", Healthy: true})
	}

	if _, err := p.Executor.ProbeBinary(); err != nil {
		statuses = append(statuses, HealthStatus{Component: "remediation", Detail: err.Error()})
	} else {
		statuses = append(statuses, HealthStatus{Component: "remediation", Healthy: true})
	}

	if err := p.Analyst.Ping(ctx); err != nil {
		statuses = append(statuses, HealthStatus{Component: "analyst", Detail: err.Error()})
	} else {
		statuses = append(statuses, HealthStatus{Component: "analyst", Healthy: true})
	}

	statuses = append(statuses, HealthStatus{Component: "ledger", Healthy: p.Ledger != nil})
	return statuses
}

// StartScan launches the scan in the background and returns immediately.
// When ResultsXML names an existing report, the scan step is skipped and the
// file is parsed directly.
func (p *InProcess) StartScan(ctx context.Context, req ScanRequest) (string, error) {
	jobID := uuid.NewString()

	p.mu.Lock()
	p.jobs[jobID] = &ScanStatus{JobID: jobID, Status: ScanQueued}
	p.mu.Unlock()

	// The job outlives the StartScan call on purpose; cancellation happens
	// through the polling loop's deadline, not the caller's request context.
	go p.runScanJob(context.Background(), jobID, req)
	return jobID, nil
}

func (p *InProcess) runScanJob(ctx context.Context, jobID string, req ScanRequest) {
	p.setJob(jobID, func(s *ScanStatus) { s.Status = ScanRunning })

	resultsXML := req.ResultsXML
	if resultsXML == "" {
		var err error
		resultsXML, _, err = p.Runner.Run(ctx)
		if err != nil {
			p.log.WithError(err).Error("Scan job failed")
			p.setJob(jobID, func(s *ScanStatus) {
				s.Status = ScanError
				s.Error = err.Error()
			})
			return
		}
	}

	floor := req.MinSeverity
	if floor == "" {
		floor = stig.FloorCatII
	}

	findings, err := scanner.ParseResults(resultsXML, floor)
	if err != nil {
		p.setJob(jobID, func(s *ScanStatus) {
			s.Status = ScanError
			s.Error = err.Error()
		})
		return
	}
	score, err := scanner.ParseScore(resultsXML)
	if err != nil {
		p.setJob(jobID, func(s *ScanStatus) {
			s.Status = ScanError
			s.Error = err.Error()
		})
		return
	}

	p.setJob(jobID, func(s *ScanStatus) {
		s.Status = ScanComplete
		s.Score = &score
		s.Findings = findings
		s.ResultsXML = resultsXML
	})
}

func (p *InProcess) setJob(jobID string, update func(*ScanStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if job, ok := p.jobs[jobID]; ok {
		update(job)
	}
}

func (p *InProcess) PollScan(ctx context.Context, jobID string) (*ScanStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("scan job %s not found", jobID)
	}
	copied := *job
	return &copied, nil
}

func (p *InProcess) Analyze(ctx context.Context, f stig.Finding) (string, error) {
	text, err := p.Analyst.Analyze(ctx, f)
	if err != nil {
		return "", fmt.Errorf("%w: analyze %s: %v", ErrEngineUnavailable, f.RuleID, err)
	}
	return text, nil
}

func (p *InProcess) AnalyzeBatch(ctx context.Context, findings []stig.Finding) (string, error) {
	text, err := p.Analyst.AnalyzeBatch(ctx, findings)
	if err != nil {
		return "", fmt.Errorf("%w: batch triage: %v", ErrEngineUnavailable, err)
	}
	return text, nil
}

func (p *InProcess) ProposeRemediation(ctx context.Context, f stig.Finding) (string, error) {
	text, err := p.Analyst.ProposeRemediation(ctx, f)
	if err != nil {
		return "", fmt.Errorf("%w: propose remediation %s: %v", ErrEngineUnavailable, f.RuleID, err)
	}
	return text, nil
}

func (p *InProcess) Summarize(ctx context.Context, in adk.SummaryInput) (string, error) {
	text, err := p.Analyst.Summarize(ctx, in)
	if err != nil {
		return "", fmt.Errorf("%w: final report: %v", ErrEngineUnavailable, err)
	}
	return text, nil
}

func (p *InProcess) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	if !req.Confirmed {
		return nil, ErrConfirmationRequired
	}

	playbookPath, err := p.Generator.GeneratePlaybook(req.Finding, req.TaskYAML)
	if err != nil {
		return nil, err
	}

	success, output := p.Executor.Apply(ctx, playbookPath)
	return &ApplyResult{
		RuleID:  req.Finding.RuleID,
		Success: success,
		Output:  output,
		DryRun:  p.Executor.DryRun,
	}, nil
}

func (p *InProcess) RecordScan(ctx context.Context, score stig.Score, findings []stig.Finding, applied []string) (ledger.Entry, error) {
	return p.Ledger.RecordScan(ctx, score, findings, applied)
}
