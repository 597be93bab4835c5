package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/user/hardenctl/pkg/session"
	"github.com/user/hardenctl/pkg/stig"
)

// SessionView is the wire snapshot of one hosted session. Handlers never
// touch the session directly; the pipeline goroutine publishes a fresh view
// after every phase transition.
type SessionView struct {
	ID           string              `json:"session_id"`
	Phase        session.Phase       `json:"phase"`
	Error        string              `json:"error,omitempty"`
	BeforeScore  stig.Score          `json:"before_score"`
	AfterScore   *stig.Score         `json:"after_score,omitempty"`
	FindingCount int                 `json:"finding_count"`
	TriageReport string              `json:"triage_report,omitempty"`
	FinalReport  string              `json:"final_report,omitempty"`
	Pending      *ApprovalView       `json:"pending,omitempty"`
	Summary      map[string][]string `json:"summary"`
}

// ApprovalView is the pending approval as shown to a remote operator.
type ApprovalView struct {
	Finding  stig.Finding `json:"finding"`
	Analysis string       `json:"analysis"`
	TaskYAML string       `json:"task_yaml"`
	Index    int          `json:"index"`
	Total    int          `json:"total"`
}

// hostedSession runs one session's pipeline in a dedicated goroutine.
// Decisions arrive over a channel so SubmitDecision is only ever called from
// that goroutine; reads go through the published snapshot.
type hostedSession struct {
	sess      *session.Session
	decisions chan session.Decision

	mu   sync.Mutex
	view SessionView
}

func newHostedSession(s *session.Session) *hostedSession {
	h := &hostedSession{
		sess:      s,
		decisions: make(chan session.Decision),
	}
	h.publish()
	return h
}

func (h *hostedSession) publish() {
	s := h.sess
	view := SessionView{
		ID:           s.ID,
		Phase:        s.Phase(),
		Error:        s.Err(),
		BeforeScore:  s.BeforeScore(),
		AfterScore:   s.AfterScore(),
		FindingCount: len(s.Findings()),
		TriageReport: s.TriageReport(),
		FinalReport:  s.FinalReport(),
	}
	if p := s.Pending(); p != nil {
		view.Pending = &ApprovalView{
			Finding:  p.Finding,
			Analysis: p.Analysis,
			TaskYAML: p.TaskYAML,
			Index:    p.Index,
			Total:    p.Total,
		}
	}
	summary := s.Summary()
	view.Summary = map[string][]string{
		"applied": summary.Applied,
		"skipped": summary.Skipped,
		"failed":  summary.Failed,
	}

	h.mu.Lock()
	h.view = view
	h.mu.Unlock()
}

func (h *hostedSession) snapshot() SessionView {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.view
}

// run drives the pipeline to completion. Triage runs unconditionally and the
// remediation loop starts immediately: a hosted operator gets the triage
// report from the session view rather than a separate proceed step.
func (h *hostedSession) run(ctx context.Context) {
	defer h.publish()

	if err := h.sess.Start(ctx); err != nil {
		return
	}
	h.publish()

	if _, err := h.sess.Triage(ctx); err != nil {
		return
	}
	h.publish()

	if err := h.sess.Proceed(ctx, true); err != nil {
		return
	}
	h.publish()

	for h.sess.Phase() == session.PhaseRemediating && h.sess.Pending() != nil {
		d, ok := <-h.decisions
		if !ok {
			return
		}
		_ = h.sess.SubmitDecision(ctx, d)
		h.publish()
	}
}

// submit hands a decision to the pipeline goroutine. Reports false when the
// session is not waiting on one.
func (h *hostedSession) submit(d session.Decision) bool {
	view := h.snapshot()
	if view.Phase != session.PhaseRemediating || view.Pending == nil {
		return false
	}
	select {
	case h.decisions <- d:
		return true
	default:
		return false
	}
}

type startSessionRequest struct {
	Profile      string `json:"profile,omitempty"`
	MinSeverity  string `json:"min_severity,omitempty"`
	DryRun       bool   `json:"dry_run,omitempty"`
	AutoApplyLow bool   `json:"auto_apply_low,omitempty"`
	ResultsXML   string `json:"results_xml,omitempty"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !readJSON(w, r, &req) {
		return
	}

	floor, err := stig.ParseFloor(req.MinSeverity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sess := session.New(session.Config{
		Profile:      req.Profile,
		MinSeverity:  floor,
		DryRun:       req.DryRun,
		AutoApplyLow: req.AutoApplyLow,
		ResultsXML:   req.ResultsXML,
	}, s.engines, s.log)

	hosted := newHostedSession(sess)
	s.registry.Add(sess)
	s.hostedMu.Lock()
	s.hosted[sess.ID] = hosted
	s.hostedMu.Unlock()

	// The pipeline outlives this request; it stops on its own when the
	// session reaches Complete or Error.
	go hosted.run(context.Background())

	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": sess.ID,
		"phase":      string(session.PhaseQueued),
	})
}

func (s *Server) hostedByID(id string) (*hostedSession, bool) {
	s.hostedMu.Lock()
	defer s.hostedMu.Unlock()
	h, ok := s.hosted[id]
	return h, ok
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	h, ok := s.hostedByID(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, h.snapshot())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	type item struct {
		ID    string        `json:"session_id"`
		Phase session.Phase `json:"phase"`
	}
	var items []item
	for _, sess := range s.registry.List() {
		if h, ok := s.hostedByID(sess.ID); ok {
			view := h.snapshot()
			items = append(items, item{ID: view.ID, Phase: view.Phase})
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": items})
}

func (s *Server) handleSessionDecision(w http.ResponseWriter, r *http.Request) {
	h, ok := s.hostedByID(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	var req struct {
		Decision string `json:"decision"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	decision, err := session.ParseDecision(req.Decision)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if !h.submit(decision) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": session.ErrNoPendingApproval.Error(),
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"session_id": r.PathValue("id"),
		"decision":   string(decision),
	})
}

func (s *Server) handleRemoveSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h, ok := s.hostedByID(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	view := h.snapshot()
	if view.Phase != session.PhaseComplete && view.Phase != session.PhaseError {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "session still running",
		})
		return
	}

	s.registry.Remove(id)
	s.hostedMu.Lock()
	delete(s.hosted, id)
	s.hostedMu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"removed": id})
}
