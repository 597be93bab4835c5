package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/hardenctl/pkg/adk"
	"github.com/user/hardenctl/pkg/ledger"
	"github.com/user/hardenctl/pkg/stig"
)

// EngineURLs locates the four engine services. They may all point at one
// hardenctl serve instance or at separate deployments.
type EngineURLs struct {
	Scanner     string
	Analyst     string
	Remediation string
	Compliance  string
}

// SingleHost points every engine at one base URL.
func SingleHost(base string) EngineURLs {
	return EngineURLs{Scanner: base, Analyst: base, Remediation: base, Compliance: base}
}

// RemoteHTTP talks JSON to engines behind a network boundary. Any transport
// failure or non-2xx response surfaces as ErrEngineUnavailable.
type RemoteHTTP struct {
	urls       EngineURLs
	httpClient *http.Client
}

func NewRemoteHTTP(urls EngineURLs) *RemoteHTTP {
	return &RemoteHTTP{
		urls: urls,
		// Per-request deadlines come from the call sites; this is the
		// absolute ceiling for any single exchange.
		httpClient: &http.Client{Timeout: 6 * time.Minute},
	}
}

func (r *RemoteHTTP) Health(ctx context.Context) []HealthStatus {
	probes := []struct {
		component string
		base      string
	}{
		{"scanner", r.urls.Scanner},
		{"analyst", r.urls.Analyst},
		{"remediation", r.urls.Remediation},
		{"compliance", r.urls.Compliance},
	}

	var statuses []HealthStatus
	seen := make(map[string]HealthStatus)
	for _, probe := range probes {
		if cached, ok := seen[probe.base]; ok {
			cached.Component = probe.component
			statuses = append(statuses, cached)
			continue
		}

		var body struct {
			Status string `json:"status"`
		}
		err := r.get(ctx, probe.base+"/health", 5*time.Second, &body)
		status := HealthStatus{Component: probe.component}
		if err != nil {
			status.Detail = "unreachable: " + err.Error()
		} else if body.Status != "healthy" {
			status.Detail = body.Status
		} else {
			status.Healthy = true
		}
		seen[probe.base] = status
		statuses = append(statuses, status)
	}
	return statuses
}

func (r *RemoteHTTP) StartScan(ctx context.Context, req ScanRequest) (string, error) {
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := r.post(ctx, r.urls.Scanner+"/scan", req, 30*time.Second, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

func (r *RemoteHTTP) PollScan(ctx context.Context, jobID string) (*ScanStatus, error) {
	var status ScanStatus
	if err := r.get(ctx, r.urls.Scanner+"/scan/"+jobID, 30*time.Second, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (r *RemoteHTTP) Analyze(ctx context.Context, f stig.Finding) (string, error) {
	var resp struct {
		Analysis string `json:"analysis"`
	}
	if err := r.post(ctx, r.urls.Analyst+"/analyze", f, 2*time.Minute, &resp); err != nil {
		return "", err
	}
	return resp.Analysis, nil
}

func (r *RemoteHTTP) AnalyzeBatch(ctx context.Context, findings []stig.Finding) (string, error) {
	req := struct {
		Findings []stig.Finding `json:"findings"`
	}{findings}
	var resp struct {
		TriageReport string `json:"triage_report"`
	}
	if err := r.post(ctx, r.urls.Analyst+"/analyze/batch", req, 3*time.Minute, &resp); err != nil {
		return "", err
	}
	return resp.TriageReport, nil
}

func (r *RemoteHTTP) ProposeRemediation(ctx context.Context, f stig.Finding) (string, error) {
	var resp struct {
		TaskYAML string `json:"task_yaml"`
	}
	if err := r.post(ctx, r.urls.Remediation+"/generate", f, 2*time.Minute, &resp); err != nil {
		return "", err
	}
	return resp.TaskYAML, nil
}

func (r *RemoteHTTP) Summarize(ctx context.Context, in adk.SummaryInput) (string, error) {
	req := struct {
		BeforeScore stig.Score     `json:"before_score"`
		AfterScore  stig.Score     `json:"after_score"`
		Applied     []string       `json:"applied"`
		Skipped     []string       `json:"skipped"`
		Failed      []string       `json:"failed"`
		Remaining   []stig.Finding `json:"remaining_findings"`
	}{in.BeforeScore, in.AfterScore, in.Applied, in.Skipped, in.Failed, in.Remaining}

	var resp struct {
		Report string `json:"report"`
	}
	if err := r.post(ctx, r.urls.Compliance+"/report/final", req, 2*time.Minute, &resp); err != nil {
		return "", err
	}
	return resp.Report, nil
}

func (r *RemoteHTTP) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	if !req.Confirmed {
		return nil, ErrConfirmationRequired
	}
	var result ApplyResult
	if err := r.post(ctx, r.urls.Remediation+"/apply", req, 3*time.Minute, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *RemoteHTTP) RecordScan(ctx context.Context, score stig.Score, findings []stig.Finding, applied []string) (ledger.Entry, error) {
	req := struct {
		Score    stig.Score     `json:"score"`
		Findings []stig.Finding `json:"findings"`
		Applied  []string       `json:"applied"`
	}{score, findings, applied}

	var resp struct {
		Entry ledger.Entry `json:"entry"`
	}
	if err := r.post(ctx, r.urls.Compliance+"/record", req, 30*time.Second, &resp); err != nil {
		return ledger.Entry{}, err
	}
	return resp.Entry, nil
}

func (r *RemoteHTTP) post(ctx context.Context, url string, payload interface{}, timeout time.Duration, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return r.do(ctx, req, timeout, out)
}

func (r *RemoteHTTP) get(ctx context.Context, url string, timeout time.Duration, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return r.do(ctx, req, timeout, out)
}

func (r *RemoteHTTP) do(ctx context.Context, req *http.Request, timeout time.Duration, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %s: %s",
			ErrEngineUnavailable, req.URL.Path, resp.Status, bytes.TrimSpace(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrEngineUnavailable, req.URL.Path, err)
	}
	return nil
}
