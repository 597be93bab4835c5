package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckPrerequisitesMissingContent(t *testing.T) {
	// Even if oscap is installed, missing datastream content must fail.
	r := NewRunner(filepath.Join(t.TempDir(), "missing-ds.xml"), "stig", t.TempDir(), nil)

	err := r.CheckPrerequisites()
	if err == nil {
		t.Skip("oscap and the default content are both present; nothing to assert")
	}
	if !errors.Is(err, ErrScanFailed) {
		t.Errorf("got %v, want ErrScanFailed", err)
	}
}

func TestRunRefusesWithoutPrerequisites(t *testing.T) {
	r := NewRunner(filepath.Join(t.TempDir(), "missing-ds.xml"), "stig", t.TempDir(), nil)

	if _, err := os.Stat(r.ContentPath); err == nil {
		t.Fatal("test setup: content path should not exist")
	}
	_, _, err := r.Run(context.Background())
	if !errors.Is(err, ErrScanFailed) {
		t.Errorf("got %v, want ErrScanFailed", err)
	}
}

func TestTail(t *testing.T) {
	if got := tail("short", 500); got != "short" {
		t.Errorf("tail should return short strings unchanged, got %q", got)
	}
	long := strings.Repeat("x", 600) + "END"
	got := tail(long, 10)
	if len(got) != 10 || !strings.HasSuffix(got, "END") {
		t.Errorf("tail should keep the end of the output, got %q", got)
	}
}
