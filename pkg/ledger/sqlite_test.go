package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/hardenctl/pkg/stig"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestRecordAndHistory(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	findings := []stig.Finding{
		{RuleID: "rule_a", Severity: stig.CatI},
		{RuleID: "rule_b", Severity: stig.CatII},
		{RuleID: "rule_c", Severity: stig.CatII},
	}
	entry, err := store.RecordScan(ctx, stig.Score{Score: 40, PassCount: 2, FailCount: 3}, findings, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.ID)
	assert.Equal(t, 1, entry.CatIFails)
	assert.Equal(t, 2, entry.CatIIFails)
	assert.Equal(t, 0, entry.CatIIIFails)
	assert.NotNil(t, entry.Applied, "nil applied must be stored as an empty list")

	history, err := store.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 40.0, history[0].Score)
	assert.Equal(t, []string{}, history[0].Applied)
}

func TestAppliedFixesRoundTrip(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	applied := []string{"rule_a", "rule_b"}
	_, err := store.RecordScan(ctx, stig.Score{Score: 70, PassCount: 7, FailCount: 3}, nil, applied)
	require.NoError(t, err)

	history, err := store.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, applied, history[0].Applied)
}

func TestImprovementNeedsTwoScans(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	imp, ok, err := store.Improvement(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, imp)

	_, err = store.RecordScan(ctx, stig.Score{Score: 40, FailCount: 12}, nil, nil)
	require.NoError(t, err)

	_, ok, err = store.Improvement(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "one scan is not enough to measure improvement")
}

func TestImprovementFirstVsLast(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	_, err := store.RecordScan(ctx, stig.Score{Score: 40, PassCount: 8, FailCount: 12}, nil, nil)
	require.NoError(t, err)
	_, err = store.RecordScan(ctx, stig.Score{Score: 55, PassCount: 11, FailCount: 9}, nil, []string{"x"})
	require.NoError(t, err)
	_, err = store.RecordScan(ctx, stig.Score{Score: 70, PassCount: 14, FailCount: 6}, nil, []string{"y", "z"})
	require.NoError(t, err)

	imp, ok, err := store.Improvement(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 30.0, imp.ScoreDelta, 0.001)
	assert.Equal(t, 6, imp.FailuresFixed)
	assert.Equal(t, 40.0, imp.FirstScore)
	assert.Equal(t, 70.0, imp.LastScore)
	assert.Equal(t, 3, imp.ScanCount)
}

func TestHistorySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.RecordScan(ctx, stig.Score{Score: 40, FailCount: 5}, nil, nil)
	require.NoError(t, err)
	_, err = store.RecordScan(ctx, stig.Score{Score: 60, FailCount: 3}, nil, []string{"fix"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	history, err := reopened.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 40.0, history[0].Score)
	assert.Equal(t, 60.0, history[1].Score)

	imp, ok, err := reopened.Improvement(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 20.0, imp.ScoreDelta, 0.001)
}
