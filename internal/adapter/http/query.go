package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/couchcryptid/forecast-hub-etl/internal/pipeline"
)

// list returns every value of key, accepting both repeated parameters and
// comma-separated lists.
func list(v url.Values, key string) []string {
	var out []string
	for _, raw := range v[key] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func badParam(key, value, reason string) error {
	return &domain.ConfigurationError{Field: key, Reason: reason, Values: []string{value}}
}

func parseDate(v url.Values, key string) (time.Time, error) {
	s := v.Get(key)
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, badParam(key, s, "want YYYY-MM-DD")
	}
	return d, nil
}

func parseBool(v url.Values, key string) (bool, error) {
	s := v.Get(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, badParam(key, s, "want true or false")
	}
	return b, nil
}

func parseForecastQuery(v url.Values) (pipeline.ForecastQuery, error) {
	q := pipeline.ForecastQuery{
		Models:    list(v, "model"),
		Locations: list(v, "location"),
		Targets:   list(v, "target"),
	}
	for _, t := range list(v, "type") {
		q.Types = append(q.Types, domain.ForecastType(t))
	}
	for _, s := range list(v, "forecast_date") {
		d, err := time.Parse(domain.DateLayout, s)
		if err != nil {
			return q, badParam("forecast_date", s, "want YYYY-MM-DD")
		}
		q.ForecastDates = append(q.ForecastDates, d)
	}

	last, err := parseDate(v, "last_forecast_date")
	if err != nil {
		return q, err
	}
	q.LastForecastDate = last

	if s := v.Get("window_days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, badParam("window_days", s, "want a non-negative integer")
		}
		q.WindowDays = &n
	}
	return q, nil
}

func parsePlotQuery(v url.Values) (pipeline.PlotQuery, error) {
	fq, err := parseForecastQuery(v)
	if err != nil {
		return pipeline.PlotQuery{}, err
	}
	q := pipeline.PlotQuery{ForecastQuery: fq}

	if s := v.Get("target_variable"); s != "" {
		tv, ok := domain.ParseTargetVariable(s)
		if !ok {
			return q, badParam("target_variable", s, "unknown target variable")
		}
		q.TargetVariable = tv
	}
	for _, s := range list(v, "interval") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return q, badParam("interval", s, "want a number")
		}
		q.Intervals = append(q.Intervals, f)
	}
	for _, s := range list(v, "horizon") {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, badParam("horizon", s, "want an integer")
		}
		q.Horizons = append(q.Horizons, n)
	}

	if q.IncludeTruth, err = parseBool(v, "truth"); err != nil {
		return q, err
	}
	if q.FillByModel, err = parseBool(v, "fill_by_model"); err != nil {
		return q, err
	}
	if q.Publish, err = parseBool(v, "publish"); err != nil {
		return q, err
	}
	if s := v.Get("truth_source"); s != "" {
		if q.TruthSource, err = domain.ParseTruthSource(s); err != nil {
			return q, err
		}
	}
	asOf, err := parseDate(v, "truth_as_of")
	if err != nil {
		return q, err
	}
	if !asOf.IsZero() {
		q.TruthAsOf = &asOf
	}
	return q, nil
}
