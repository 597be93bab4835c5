// Package server hosts the scan, reasoning, remediation and ledger engines
// behind an HTTP boundary, for deployments where the operator CLI runs on a
// different machine than the host being hardened.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/user/hardenctl/pkg/adk"
	"github.com/user/hardenctl/pkg/client"
	"github.com/user/hardenctl/pkg/remediation"
	"github.com/user/hardenctl/pkg/session"
	"github.com/user/hardenctl/pkg/stig"
)

// Server exposes the in-process engines over JSON endpoints that mirror the
// client.RemoteHTTP wire contract.
type Server struct {
	engines  *client.InProcess
	tracker  *remediation.Tracker
	registry *session.Registry
	log      *logrus.Entry

	hostedMu sync.Mutex
	hosted   map[string]*hostedSession
}

func New(engines *client.InProcess, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		engines:  engines,
		tracker:  remediation.NewTracker(),
		registry: session.NewRegistry(),
		log:      log,
		hosted:   make(map[string]*hostedSession),
	}
}

// Routes builds the HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /scan", s.handleStartScan)
	mux.HandleFunc("GET /scan/{id}", s.handlePollScan)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("POST /analyze/batch", s.handleAnalyzeBatch)
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("POST /apply", s.handleApply)
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("POST /record", s.handleRecord)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /improvement", s.handleImprovement)
	mux.HandleFunc("POST /report/final", s.handleFinalReport)
	mux.HandleFunc("POST /session", s.handleStartSession)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /session/{id}", s.handleGetSession)
	mux.HandleFunc("POST /session/{id}/decision", s.handleSessionDecision)
	mux.HandleFunc("DELETE /session/{id}", s.handleRemoveSession)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := s.engines.Health(r.Context())
	overall := "healthy"
	for _, st := range statuses {
		if !st.Healthy {
			overall = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     overall,
		"components": statuses,
	})
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req client.ScanRequest
	if !readJSON(w, r, &req) {
		return
	}

	jobID, err := s.engines.StartScan(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  jobID,
		"status":  client.ScanQueued,
		"message": "Scan started",
	})
}

func (s *Server) handlePollScan(w http.ResponseWriter, r *http.Request) {
	status, err := s.engines.PollScan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var f stig.Finding
	if !readJSON(w, r, &f) {
		return
	}

	analysis, err := s.engines.Analyze(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"rule_id":  f.RuleID,
		"analysis": analysis,
	})
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Findings []stig.Finding `json:"findings"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	report, err := s.engines.AnalyzeBatch(r.Context(), req.Findings)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"triage_report": report,
		"finding_count": len(req.Findings),
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var f stig.Finding
	if !readJSON(w, r, &f) {
		return
	}

	taskYAML, err := s.engines.ProposeRemediation(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"rule_id":   f.RuleID,
		"task_yaml": taskYAML,
	})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req client.ApplyRequest
	if !readJSON(w, r, &req) {
		return
	}

	result, err := s.engines.Apply(r.Context(), req)
	if errors.Is(err, client.ErrConfirmationRequired) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if result.Success {
		s.tracker.RecordApplied(req.Finding.RuleID)
	} else {
		s.tracker.RecordFailed(req.Finding.RuleID)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Summary())
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Score    stig.Score     `json:"score"`
		Findings []stig.Finding `json:"findings"`
		Applied  []string       `json:"applied"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	entry, err := s.engines.RecordScan(r.Context(), req.Score, req.Findings, req.Applied)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recorded": true,
		"entry":    entry,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.engines.Ledger.History(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

func (s *Server) handleImprovement(w http.ResponseWriter, r *http.Request) {
	imp, ok, err := s.engines.Ledger.Improvement(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Need at least 2 scans to show improvement",
		})
		return
	}
	writeJSON(w, http.StatusOK, imp)
}

func (s *Server) handleFinalReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BeforeScore stig.Score     `json:"before_score"`
		AfterScore  stig.Score     `json:"after_score"`
		Applied     []string       `json:"applied"`
		Skipped     []string       `json:"skipped"`
		Failed      []string       `json:"failed"`
		Remaining   []stig.Finding `json:"remaining_findings"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	report, err := s.engines.Summarize(r.Context(), adk.SummaryInput{
		BeforeScore: req.BeforeScore,
		AfterScore:  req.AfterScore,
		Applied:     req.Applied,
		Skipped:     req.Skipped,
		Failed:      req.Failed,
		Remaining:   req.Remaining,
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"report": report})
}

func readJSON(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
