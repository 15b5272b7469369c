package domain

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"
)

// Catalog is the canonical reference data a request is validated against.
type Catalog struct {
	Models    []string
	Locations []LocationAttributes
	Targets   []string
}

// LocationCodes returns the codes of all known locations, in catalog order.
func (c Catalog) LocationCodes() []string {
	codes := make([]string, len(c.Locations))
	for i, l := range c.Locations {
		codes[i] = l.Code
	}
	return codes
}

// LocationIndex maps location codes to their attributes.
func (c Catalog) LocationIndex() map[string]LocationAttributes {
	idx := make(map[string]LocationAttributes, len(c.Locations))
	for _, l := range c.Locations {
		idx[l.Code] = l
	}
	return idx
}

// RetrieveRequest selects submissions to load. Types hold lower-cased type
// names and Targets hold normalized compound targets.
type RetrieveRequest struct {
	RootDir       string
	Models        []string
	ForecastDates []time.Time
	Locations     []string
	Types         []ForecastType
	Targets       []string
}

// DefaultTypes is used when a request names no forecast types.
var DefaultTypes = []ForecastType{TypePoint, TypeQuantile}

// ForecastDateWindow returns every date from last-windowDays through last,
// ascending. A zero last date means today on the package clock.
func ForecastDateWindow(last time.Time, windowDays int) []time.Time {
	if last.IsZero() {
		now := clock.Now().UTC()
		last = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if windowDays < 0 {
		windowDays = 0
	}
	dates := make([]time.Time, 0, windowDays+1)
	for d := windowDays; d >= 0; d-- {
		dates = append(dates, last.AddDate(0, 0, -d))
	}
	return dates
}

// ValidateRetrieveRequest checks req against the catalog before any file is
// read, filling in defaults for empty filters. Every invalid field is reported
// with its offending values.
func ValidateRetrieveRequest(req RetrieveRequest, catalog Catalog) (RetrieveRequest, error) {
	var errs []error

	if req.RootDir == "" {
		errs = append(errs, &ConfigurationError{Field: "root_dir", Reason: "is required"})
	} else if info, err := os.Stat(req.RootDir); err != nil || !info.IsDir() {
		errs = append(errs, &ConfigurationError{Field: "root_dir", Reason: "directory does not exist", Values: []string{req.RootDir}})
	}

	req.Models = unique(req.Models)
	if len(req.Models) == 0 {
		req.Models = unique(catalog.Models)
	} else if bad := missingFrom(req.Models, catalog.Models); len(bad) > 0 {
		errs = append(errs, &ConfigurationError{Field: "models", Reason: "unknown models", Values: bad})
	}

	req.Locations = unique(req.Locations)
	if len(req.Locations) == 0 {
		req.Locations = unique(catalog.LocationCodes())
	} else if bad := missingFrom(req.Locations, catalog.LocationCodes()); len(bad) > 0 {
		errs = append(errs, &ConfigurationError{Field: "locations", Reason: "unknown locations", Values: bad})
	}

	if len(req.Types) == 0 {
		req.Types = slices.Clone(DefaultTypes)
	} else {
		var bad []string
		types := make([]ForecastType, 0, len(req.Types))
		for _, t := range req.Types {
			parsed, ok := ParseForecastType(string(t))
			if !ok {
				bad = append(bad, string(t))
				continue
			}
			types = append(types, parsed)
		}
		if len(bad) > 0 {
			errs = append(errs, &ConfigurationError{Field: "types", Reason: "must be point or quantile", Values: bad})
		}
		req.Types = unique(types)
	}

	canonicalTargets := make([]string, len(catalog.Targets))
	for i, t := range catalog.Targets {
		canonicalTargets[i] = NormalizeTarget(t)
	}
	canonicalTargets = unique(canonicalTargets)
	if len(req.Targets) == 0 {
		req.Targets = canonicalTargets
	} else {
		targets := make([]string, len(req.Targets))
		for i, t := range req.Targets {
			targets[i] = NormalizeTarget(t)
		}
		if bad := missingFrom(targets, canonicalTargets); len(bad) > 0 {
			errs = append(errs, &ConfigurationError{Field: "targets", Reason: "unknown targets", Values: bad})
		}
		req.Targets = unique(targets)
	}

	if len(req.ForecastDates) == 0 {
		errs = append(errs, &ConfigurationError{Field: "forecast_dates", Reason: "at least one date is required"})
	}

	if err := errors.Join(errs...); err != nil {
		return RetrieveRequest{}, fmt.Errorf("validate request: %w", err)
	}
	return req, nil
}

// missingFrom returns the values not present in allowed, deduplicated.
func missingFrom(values, allowed []string) []string {
	var bad []string
	for _, v := range values {
		if !slices.Contains(allowed, v) && !slices.Contains(bad, v) {
			bad = append(bad, v)
		}
	}
	return bad
}

// unique drops repeated values, keeping the first occurrence of each.
func unique[T comparable](in []T) []T {
	if in == nil {
		return nil
	}
	seen := make(map[T]bool, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
