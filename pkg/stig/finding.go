package stig

import (
	"fmt"
	"strings"
)

// Severity is the DISA category of a STIG control. CAT I is the most urgent.
type Severity string

const (
	CatI   Severity = "CAT I"
	CatII  Severity = "CAT II"
	CatIII Severity = "CAT III"
)

var severityRank = map[Severity]int{
	CatI:   3,
	CatII:  2,
	CatIII: 1,
}

// Rank returns the ordering weight of the severity (higher = more urgent).
// Unknown severities rank 0, below every real category.
func (s Severity) Rank() int {
	return severityRank[s]
}

func (s Severity) String() string {
	return string(s)
}

// SeverityFromRaw maps the raw XCCDF severity vocabulary onto categories.
// Anything unrecognized defaults to CAT II.
func SeverityFromRaw(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return CatI
	case "medium":
		return CatII
	case "low":
		return CatIII
	default:
		return CatII
	}
}

// Floor is the minimum-severity filter applied when selecting findings.
type Floor string

const (
	FloorCatI   Floor = "CAT_I"
	FloorCatII  Floor = "CAT_II"
	FloorCatIII Floor = "CAT_III"
	FloorAll    Floor = "ALL"
)

var floorRank = map[Floor]int{
	FloorCatI:   3,
	FloorCatII:  2,
	FloorCatIII: 1,
	FloorAll:    0,
}

// ParseFloor accepts the config spellings of a severity floor
// (CAT_I, cat ii, CAT-III, all, ...).
func ParseFloor(raw string) (Floor, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.ReplaceAll(norm, " ", "_")
	norm = strings.ReplaceAll(norm, "-", "_")
	switch Floor(norm) {
	case FloorCatI, FloorCatII, FloorCatIII, FloorAll:
		return Floor(norm), nil
	case "":
		return FloorCatII, nil
	default:
		return "", fmt.Errorf("invalid min_severity %q (expected CAT_I, CAT_II, CAT_III or ALL)", raw)
	}
}

// Admits reports whether a finding of the given severity passes the floor.
func (f Floor) Admits(s Severity) bool {
	return s.Rank() >= floorRank[f]
}

// Result is the outcome of one rule check within a scan.
type Result string

const (
	ResultPass          Result = "pass"
	ResultFail          Result = "fail"
	ResultNotChecked    Result = "notchecked"
	ResultNotApplicable Result = "notapplicable"
	ResultError         Result = "error"
)

// Finding is one failed STIG control from a scan. Immutable after parsing.
type Finding struct {
	RuleID      string   `json:"rule_id"`
	Title       string   `json:"title"`
	Severity    Severity `json:"severity"`
	Result      Result   `json:"result"`
	Description string   `json:"description"`
	FixText     string   `json:"fix_text"`
	CheckText   string   `json:"check_text"`
	References  []string `json:"references,omitempty"`
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.RuleID, f.Title)
}

// Score is the scan-wide compliance snapshot. The percentage counts
// pass/(pass+fail); notchecked and notapplicable are excluded.
type Score struct {
	Score         float64 `json:"score"`
	PassCount     int     `json:"pass_count"`
	FailCount     int     `json:"fail_count"`
	NotChecked    int     `json:"not_checked"`
	NotApplicable int     `json:"not_applicable"`
}

// Percent computes the compliance percentage from the counts, 0 when no
// rule was checked.
func (s Score) Percent() float64 {
	checked := s.PassCount + s.FailCount
	if checked == 0 {
		return 0
	}
	return float64(s.PassCount) / float64(checked) * 100
}

// CountBySeverity tallies findings per category.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}
