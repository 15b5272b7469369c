package domain

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// PlotRowType distinguishes forecast points, interval bands and observations.
type PlotRowType string

const (
	PlotPoint    PlotRowType = "point"
	PlotQuantile PlotRowType = "quantile"
	PlotTruth    PlotRowType = "truth"
)

// PlotRow is one row of chart-ready data. Truth rows have no forecast date and
// carry the observed value in Point.
type PlotRow struct {
	Label              string      `json:"model"`
	ForecastDate       *time.Time  `json:"forecast_date,omitempty"`
	TargetEndDate      time.Time   `json:"target_end_date"`
	Location           string      `json:"location"`
	Type               PlotRowType `json:"type"`
	PredictionInterval *string     `json:"prediction_interval,omitempty"`
	Point              *float64    `json:"point,omitempty"`
	Lower              *float64    `json:"lower,omitempty"`
	Upper              *float64    `json:"upper,omitempty"`
}

// PlotRowColumns is the column order of the plot-data table.
var PlotRowColumns = []string{
	"model", "forecast_date", "target_end_date", "location", "type",
	"prediction_interval", "point", "lower", "upper",
}

// PlotParams selects what goes into a plot. Empty filter slices match
// everything.
type PlotParams struct {
	Models         []string
	Locations      []string
	ForecastDates  []time.Time
	Horizons       []int
	Pairs          []QuantilePair
	TargetVariable TargetVariable
	IncludeTruth   bool
	TruthSource    TruthSource
}

type seriesKey struct {
	model         string
	location      string
	forecastDate  time.Time
	targetEndDate time.Time
}

type seriesValues struct {
	point     *float64
	median    *float64
	quantiles []quantileValue
}

type quantileValue struct {
	level float64
	value float64
}

func (s *seriesValues) quantile(level float64) (float64, bool) {
	for _, q := range s.quantiles {
		if sameLevel(q.level, level) {
			return q.value, true
		}
	}
	return 0, false
}

// AssemblePlotData filters forecast rows and derives one point row and one
// band row per quantile pair for every (model, location, forecast date,
// target end date). A pair missing either side is skipped for that series.
// Truth rows are appended last when requested.
func AssemblePlotData(rows []ForecastRow, truth []TruthRecord, params PlotParams) ([]PlotRow, error) {
	series := make(map[seriesKey]*seriesValues)
	var keys []seriesKey
	modelOrder := make(map[string]int, len(params.Models))
	for i, m := range params.Models {
		modelOrder[m] = i
	}

	for i := range rows {
		r := &rows[i]
		if !matchesPlotFilters(r.ForecastRecord, params) {
			continue
		}
		if _, ok := modelOrder[r.Model]; !ok {
			modelOrder[r.Model] = len(modelOrder)
		}
		k := seriesKey{r.Model, r.Location, r.ForecastDate, r.TargetEndDate}
		s, ok := series[k]
		if !ok {
			s = &seriesValues{}
			series[k] = s
			keys = append(keys, k)
		}
		v := r.Value
		switch {
		case r.Type == TypePoint:
			s.point = &v
		case r.Quantile != nil:
			s.quantiles = append(s.quantiles, quantileValue{level: *r.Quantile, value: v})
			if sameLevel(*r.Quantile, 0.5) {
				s.median = &v
			}
		}
	}

	if len(keys) == 0 {
		return nil, unavailable("no forecasts for target variable %q match the requested models, locations, dates and horizons", params.TargetVariable)
	}

	slices.SortStableFunc(keys, func(a, b seriesKey) int {
		return cmp.Or(
			cmp.Compare(modelOrder[a.model], modelOrder[b.model]),
			strings.Compare(a.location, b.location),
			a.forecastDate.Compare(b.forecastDate),
			a.targetEndDate.Compare(b.targetEndDate),
		)
	})

	out := make([]PlotRow, 0, len(keys)*(len(params.Pairs)+1))
	for _, k := range keys {
		out = append(out, seriesRows(k, series[k], params.Pairs)...)
	}

	if params.IncludeTruth {
		truthRows := MergeTruth(truth, params.TruthSource, params.TargetVariable, params.Locations)
		if len(truthRows) == 0 {
			return nil, unavailable("no %s truth data for target variable %q at the requested locations", params.TruthSource, params.TargetVariable)
		}
		out = append(out, truthRows...)
	}
	return out, nil
}

func seriesRows(k seriesKey, s *seriesValues, pairs []QuantilePair) []PlotRow {
	forecastDate := k.forecastDate
	base := PlotRow{
		Label:         k.model,
		ForecastDate:  &forecastDate,
		TargetEndDate: k.targetEndDate,
		Location:      k.location,
	}

	var out []PlotRow
	point := s.point
	if point == nil {
		point = s.median
	}
	if point != nil {
		row := base
		row.Type = PlotPoint
		row.Point = point
		out = append(out, row)
	}

	bands := slices.Clone(pairs)
	slices.SortStableFunc(bands, func(a, b QuantilePair) int { return cmp.Compare(a.Interval, b.Interval) })
	for _, p := range bands {
		lower, okLower := s.quantile(p.Lower)
		upper, okUpper := s.quantile(p.Upper)
		if !okLower || !okUpper {
			continue
		}
		label := p.Label()
		row := base
		row.Type = PlotQuantile
		row.PredictionInterval = &label
		row.Lower = &lower
		row.Upper = &upper
		out = append(out, row)
	}
	return out
}

func matchesPlotFilters(r ForecastRecord, params PlotParams) bool {
	if r.TargetVariable != params.TargetVariable {
		return false
	}
	if len(params.Models) > 0 && !slices.Contains(params.Models, r.Model) {
		return false
	}
	if len(params.Locations) > 0 && !slices.Contains(params.Locations, r.Location) {
		return false
	}
	if len(params.Horizons) > 0 && !slices.Contains(params.Horizons, r.Horizon) {
		return false
	}
	if len(params.ForecastDates) > 0 && !slices.ContainsFunc(params.ForecastDates, r.ForecastDate.Equal) {
		return false
	}
	return true
}
