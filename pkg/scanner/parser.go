package scanner

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/user/hardenctl/pkg/stig"
)

// ruleDef is the metadata block of one Rule in the benchmark section.
type ruleDef struct {
	ID           string   `xml:"id,attr"`
	Severity     string   `xml:"severity,attr"`
	Title        string   `xml:"title"`
	Description  string   `xml:"description"`
	FixText      string   `xml:"fixtext"`
	CheckContent string   `xml:"check>check-content"`
	References   []string `xml:"reference"`
}

// ruleResult is one rule-result entry in the TestResult section.
type ruleResult struct {
	IDRef    string `xml:"idref,attr"`
	Severity string `xml:"severity,attr"`
	Result   string `xml:"result"`
}

type document struct {
	defs    map[string]ruleDef
	results []ruleResult
}

// ParseResults reads an XCCDF results file and returns the failed findings at
// or above the severity floor, ordered CAT I first. Ordering within a category
// follows the order rule-results appear in the report.
func ParseResults(path string, floor stig.Floor) ([]stig.Finding, error) {
	doc, err := parseDocument(path)
	if err != nil {
		return nil, err
	}

	var findings []stig.Finding
	for _, rr := range doc.results {
		if stig.Result(rr.Result) != stig.ResultFail {
			continue
		}

		def := doc.defs[rr.IDRef]
		rawSeverity := rr.Severity
		if rawSeverity == "" {
			rawSeverity = def.Severity
		}
		severity := stig.SeverityFromRaw(rawSeverity)

		if !floor.Admits(severity) {
			continue
		}

		f := stig.Finding{
			RuleID:      rr.IDRef,
			Title:       strings.TrimSpace(def.Title),
			Severity:    severity,
			Result:      stig.ResultFail,
			Description: strings.TrimSpace(def.Description),
			FixText:     strings.TrimSpace(def.FixText),
			CheckText:   strings.TrimSpace(def.CheckContent),
			References:  def.References,
		}
		if f.RuleID == "" {
			continue
		}
		if f.Title == "" {
			f.Title = f.RuleID
		}
		if f.Description == "" {
			f.Description = "No description available."
		}
		if f.FixText == "" {
			f.FixText = "No automated fix available."
		}
		findings = append(findings, f)
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() > findings[j].Severity.Rank()
	})
	return findings, nil
}

// ParseScore computes the scan-wide compliance score from every rule-result in
// the file, regardless of any severity floor.
func ParseScore(path string) (stig.Score, error) {
	doc, err := parseDocument(path)
	if err != nil {
		return stig.Score{}, err
	}

	var score stig.Score
	for _, rr := range doc.results {
		switch stig.Result(rr.Result) {
		case stig.ResultPass:
			score.PassCount++
		case stig.ResultFail:
			score.FailCount++
		case stig.ResultNotChecked:
			score.NotChecked++
		case stig.ResultNotApplicable:
			score.NotApplicable++
		}
	}
	score.Score = score.Percent()
	return score, nil
}

func parseDocument(path string) (*document, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeDocument(f)
}

// decodeDocument walks the token stream instead of decoding the whole tree:
// Rules nest arbitrarily inside Groups and only two element kinds matter.
func decodeDocument(r io.Reader) (*document, error) {
	doc := &document{defs: make(map[string]ruleDef)}
	dec := xml.NewDecoder(r)
	sawElement := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawElement = true

		switch start.Name.Local {
		case "Rule":
			var def ruleDef
			if err := dec.DecodeElement(&def, &start); err != nil {
				return nil, fmt.Errorf("%w: rule definition: %v", ErrMalformedReport, err)
			}
			if def.ID != "" {
				doc.defs[def.ID] = def
			}
		case "rule-result":
			var rr ruleResult
			if err := dec.DecodeElement(&rr, &start); err != nil {
				return nil, fmt.Errorf("%w: rule-result: %v", ErrMalformedReport, err)
			}
			doc.results = append(doc.results, rr)
		}
	}

	if !sawElement {
		return nil, fmt.Errorf("%w: no XML content", ErrMalformedReport)
	}
	return doc, nil
}
