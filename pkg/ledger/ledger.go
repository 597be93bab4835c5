// Package ledger keeps the durable, append-only history of scan snapshots.
// It is the only state that outlives a hardening session; improvement is
// always last-entry-minus-first-entry, so entries are never reordered or
// deleted.
package ledger

import (
	"time"

	"github.com/user/hardenctl/pkg/stig"
)

// Entry is one recorded scan snapshot.
type Entry struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Score       float64   `json:"score"`
	PassCount   int       `json:"pass_count"`
	FailCount   int       `json:"fail_count"`
	CatIFails   int       `json:"cat1_fails"`
	CatIIFails  int       `json:"cat2_fails"`
	CatIIIFails int       `json:"cat3_fails"`
	Applied     []string  `json:"applied_fixes"`
}

// Improvement compares the first and latest entries in the ledger.
type Improvement struct {
	ScoreDelta    float64 `json:"score_delta"`
	FailuresFixed int     `json:"failures_fixed"`
	FirstScore    float64 `json:"first_score"`
	LastScore     float64 `json:"last_score"`
	ScanCount     int     `json:"scan_count"`
}

func newEntry(score stig.Score, findings []stig.Finding, applied []string) Entry {
	counts := stig.CountBySeverity(findings)
	if applied == nil {
		applied = []string{}
	}
	return Entry{
		Timestamp:   time.Now().UTC(),
		Score:       score.Score,
		PassCount:   score.PassCount,
		FailCount:   score.FailCount,
		CatIFails:   counts[stig.CatI],
		CatIIFails:  counts[stig.CatII],
		CatIIIFails: counts[stig.CatIII],
		Applied:     applied,
	}
}

func improvement(history []Entry) (*Improvement, bool) {
	if len(history) < 2 {
		return nil, false
	}
	first := history[0]
	last := history[len(history)-1]
	return &Improvement{
		ScoreDelta:    last.Score - first.Score,
		FailuresFixed: first.FailCount - last.FailCount,
		FirstScore:    first.Score,
		LastScore:     last.Score,
		ScanCount:     len(history),
	}, true
}
