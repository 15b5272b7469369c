// Package truth reads observed data published alongside the hub, either over
// HTTP or from a local checkout with the same layout.
package truth

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
)

var sourcePaths = map[domain.TruthSource]string{
	domain.TruthJHU:      "data-truth",
	domain.TruthNYTimes:  "data-truth/nytimes",
	domain.TruthUSAFacts: "data-truth/usafacts",
}

// RelPath returns the slash-separated path of the truth file for source and
// target, relative to the hub root.
func RelPath(source domain.TruthSource, target domain.TargetVariable) (string, error) {
	dir, ok := sourcePaths[source]
	if !ok {
		return "", &domain.ConfigurationError{Field: "truth_source", Reason: "unknown source", Values: []string{string(source)}}
	}
	title := target.TruthTitle()
	if title == "" {
		return "", &domain.ConfigurationError{Field: "target_variable", Reason: "no truth data for target", Values: []string{string(target)}}
	}
	return path.Join(dir, "truth-"+title+".csv"), nil
}

const issueDateColumn = "issue_date"

// Decode reads a truth table for target. Rows whose value is empty or NA are
// skipped. A table without the required columns cannot serve any request and
// is reported as unavailable rather than malformed.
func Decode(r io.Reader, name string, target domain.TargetVariable) ([]domain.TruthRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.DataAvailabilityError{Reason: fmt.Sprintf("truth table %s is empty", name)}
	}
	if err != nil {
		return nil, &domain.ParseError{File: name, Row: 1, Err: err}
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, c := range domain.TruthColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.DataAvailabilityError{
			Reason: fmt.Sprintf("truth table %s lacks columns %s", name, strings.Join(missing, ", ")),
		}
	}
	issueIdx, versioned := cols[issueDateColumn]

	var out []domain.TruthRecord
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, &domain.ParseError{File: name, Row: row, Err: err}
		}
		field := func(c string) string {
			i := cols[c]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		raw := field("value")
		if raw == "" || strings.EqualFold(raw, "NA") {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &domain.ParseError{File: name, Row: row, Err: fmt.Errorf("value: %w", err)}
		}
		date, err := time.Parse(domain.DateLayout, field("date"))
		if err != nil {
			return nil, &domain.ParseError{File: name, Row: row, Err: fmt.Errorf("date: %w", err)}
		}
		loc := field("location")
		if loc == "" {
			return nil, &domain.ParseError{File: name, Row: row, Err: errors.New("empty location")}
		}

		tr := domain.TruthRecord{Location: loc, TargetVariable: target, TargetEndDate: date, Value: value}
		if versioned && issueIdx < len(rec) {
			issued, err := time.Parse(domain.DateLayout, strings.TrimSpace(rec[issueIdx]))
			if err != nil {
				return nil, &domain.ParseError{File: name, Row: row, Err: fmt.Errorf("issue_date: %w", err)}
			}
			tr.IssueDate = &issued
		}
		out = append(out, tr)
	}
}
