package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// TruthSource identifies where observed data comes from.
type TruthSource string

const (
	TruthJHU      TruthSource = "JHU"
	TruthNYTimes  TruthSource = "NYTimes"
	TruthUSAFacts TruthSource = "USAFacts"
)

// TruthSources lists the supported sources in display order.
var TruthSources = []TruthSource{TruthJHU, TruthNYTimes, TruthUSAFacts}

// ParseTruthSource matches a source name case-insensitively.
func ParseTruthSource(s string) (TruthSource, error) {
	for _, src := range TruthSources {
		if strings.EqualFold(string(src), strings.TrimSpace(s)) {
			return src, nil
		}
	}
	names := make([]string, len(TruthSources))
	for i, src := range TruthSources {
		names[i] = string(src)
	}
	return "", &ConfigurationError{Field: "truth_source", Reason: "must be one of " + strings.Join(names, ", "), Values: []string{s}}
}

// Label is the synthetic model label truth rows carry in plot data.
func (s TruthSource) Label() string {
	return fmt.Sprintf("Observed Data (%s)", s)
}

// TruthRecord is one observed value. IssueDate is set when the source
// publishes versioned data.
type TruthRecord struct {
	Location       string         `json:"location"`
	TargetVariable TargetVariable `json:"target_variable"`
	TargetEndDate  time.Time      `json:"target_end_date"`
	Value          float64        `json:"value"`
	IssueDate      *time.Time     `json:"issue_date,omitempty"`
}

// TruthColumns are the columns a truth table must carry.
var TruthColumns = []string{"date", "location", "value"}

type truthKey struct {
	location string
	variable TargetVariable
	date     time.Time
}

// FilterTruthAsOf keeps, per location, target variable and date, the latest
// version issued on or before asOf. Unversioned records cannot be filtered
// and yield ErrTruthAsOfUnsupported.
func FilterTruthAsOf(records []TruthRecord, asOf time.Time) ([]TruthRecord, error) {
	for _, r := range records {
		if r.IssueDate == nil {
			return nil, ErrTruthAsOfUnsupported
		}
	}
	return latestVersions(records, func(r TruthRecord) bool { return !r.IssueDate.After(asOf) }), nil
}

// LatestTruth keeps the most recently issued version of every observation.
// Unversioned records count as older than any versioned one, so a table
// without issue dates passes through unchanged.
func LatestTruth(records []TruthRecord) []TruthRecord {
	return latestVersions(records, func(TruthRecord) bool { return true })
}

// latestVersions reduces records accepted by keep to one per key, in order of
// first appearance.
func latestVersions(records []TruthRecord, keep func(TruthRecord) bool) []TruthRecord {
	latest := make(map[truthKey]int)
	var order []truthKey
	for i, r := range records {
		if !keep(r) {
			continue
		}
		k := truthKey{r.Location, r.TargetVariable, r.TargetEndDate}
		j, ok := latest[k]
		if !ok {
			order = append(order, k)
			latest[k] = i
			continue
		}
		if newerIssue(r, records[j]) {
			latest[k] = i
		}
	}

	out := make([]TruthRecord, 0, len(order))
	for _, k := range order {
		out = append(out, records[latest[k]])
	}
	return out
}

// newerIssue reports whether a was issued after b. Ties keep b.
func newerIssue(a, b TruthRecord) bool {
	switch {
	case a.IssueDate == nil:
		return false
	case b.IssueDate == nil:
		return true
	default:
		return a.IssueDate.After(*b.IssueDate)
	}
}

// MergeTruth relabels truth records for target as plot rows of type truth,
// restricted to locations (all when empty) and ordered by location then date.
func MergeTruth(records []TruthRecord, source TruthSource, target TargetVariable, locations []string) []PlotRow {
	label := source.Label()
	var out []PlotRow
	for _, r := range records {
		if r.TargetVariable != target {
			continue
		}
		if len(locations) > 0 && !slices.Contains(locations, r.Location) {
			continue
		}
		value := r.Value
		out = append(out, PlotRow{
			Label:         label,
			TargetEndDate: r.TargetEndDate,
			Location:      r.Location,
			Type:          PlotTruth,
			Point:         &value,
		})
	}
	slices.SortStableFunc(out, func(a, b PlotRow) int {
		if c := strings.Compare(a.Location, b.Location); c != 0 {
			return c
		}
		return a.TargetEndDate.Compare(b.TargetEndDate)
	})
	return out
}
