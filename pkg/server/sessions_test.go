package server

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/hardenctl/pkg/session"
)

func pollSession(t *testing.T, baseURL, id string, until func(SessionView) bool) SessionView {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(baseURL + "/session/" + id)
		require.NoError(t, err)
		var view SessionView
		decodeBody(t, resp, &view)
		if until(view) {
			return view
		}
		require.NotEqual(t, session.PhaseError, view.Phase, view.Error)
		if time.Now().After(deadline) {
			t.Fatalf("session %s never reached the expected state, stuck in %s", id, view.Phase)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHostedSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resultsPath := filepath.Join(t.TempDir(), "results.xml")
	require.NoError(t, os.WriteFile(resultsPath, []byte(serverSampleResults), 0o644))

	resp := postJSON(t, srv.URL+"/session", map[string]interface{}{
		"min_severity": "ALL",
		"dry_run":      true,
		"results_xml":  resultsPath,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		SessionID string `json:"session_id"`
	}
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.SessionID)

	// the pipeline scans, triages and stops at the first approval
	view := pollSession(t, srv.URL, created.SessionID, func(v SessionView) bool {
		return v.Pending != nil
	})
	assert.Equal(t, session.PhaseRemediating, view.Phase)
	assert.Equal(t, "canned", view.TriageReport)
	assert.Equal(t, 1, view.FindingCount)
	assert.Equal(t, "rule_one", view.Pending.Finding.RuleID)
	assert.Equal(t, "canned", view.Pending.Analysis)
	assert.Equal(t, 1, view.Pending.Index)

	// a bad decision never reaches the session
	resp = postJSON(t, srv.URL+"/session/"+created.SessionID+"/decision",
		map[string]string{"decision": "maybe"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/session/"+created.SessionID+"/decision",
		map[string]string{"decision": "skip"})
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	view = pollSession(t, srv.URL, created.SessionID, func(v SessionView) bool {
		return v.Phase == session.PhaseComplete
	})
	assert.Equal(t, []string{"rule_one"}, view.Summary["skipped"])
	assert.Empty(t, view.Summary["applied"])
	assert.Nil(t, view.Pending)

	// finished sessions show up in the listing until removed
	resp, err := http.Get(srv.URL + "/sessions")
	require.NoError(t, err)
	var listing struct {
		Sessions []struct {
			SessionID string `json:"session_id"`
		} `json:"sessions"`
	}
	decodeBody(t, resp, &listing)
	require.Len(t, listing.Sessions, 1)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/session/"+created.SessionID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/session/" + created.SessionID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDecisionWithoutPendingApproval(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/session/nonexistent/decision",
		map[string]string{"decision": "apply"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
