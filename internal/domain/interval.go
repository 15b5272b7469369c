package domain

import (
	"slices"
	"strconv"
)

// maxModelsForAllIntervals is the model count above which only the widest
// canonical interval is drawn.
const maxModelsForAllIntervals = 5

// ClutterInterval is the only interval kept when too many models are plotted.
const ClutterInterval = 0.95

// canonicalIntervals is the ordered triple a derived {0.5, 0.8, 0.95} set
// collapses to.
var canonicalIntervals = []float64{0.5, 0.8, 0.95}

// QuantilePair is a central prediction interval and the two quantile levels
// bounding it.
type QuantilePair struct {
	Interval float64 `json:"interval"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
}

// Label returns the interval as a percentage, e.g. "95%".
func (p QuantilePair) Label() string { return percentLabel(p.Interval) }

// NewQuantilePair derives the quantile levels for an interval level in (0, 1).
func NewQuantilePair(level float64) (QuantilePair, error) {
	if !(level > 0 && level < 1) {
		return QuantilePair{}, &ConfigurationError{
			Field:  "intervals",
			Reason: "levels must be in (0, 1)",
			Values: []string{strconv.FormatFloat(level, 'g', -1, 64)},
		}
	}
	lower, upper, err := quantileBounds(level)
	if err != nil {
		return QuantilePair{}, err
	}
	return QuantilePair{Interval: level, Lower: lower, Upper: upper}, nil
}

// ResolveIntervals picks the intervals to draw.
//
// Explicit levels are used as given (deduplicated, in order). Without them the
// intervals are derived from the lower quantile levels present in the data,
// and a derived {0.5, 0.8, 0.95} is canonicalized to that order. No explicit
// levels and no quantiles means point forecasts only. With more than five
// models only the 0.95 interval survives.
func ResolveIntervals(explicit []float64, available []float64, modelCount int) ([]QuantilePair, error) {
	var levels []float64
	if len(explicit) > 0 {
		var bad []string
		for _, l := range explicit {
			if !(l > 0 && l < 1) {
				bad = append(bad, strconv.FormatFloat(l, 'g', -1, 64))
			}
		}
		if len(bad) > 0 {
			return nil, &ConfigurationError{Field: "intervals", Reason: "levels must be in (0, 1)", Values: bad}
		}
		levels = appendUniqueLevels(nil, explicit...)
	} else {
		derived, err := intervalsFromQuantiles(available)
		if err != nil {
			return nil, err
		}
		levels = canonicalize(derived)
	}

	if len(levels) == 0 {
		return nil, nil
	}
	if modelCount > maxModelsForAllIntervals {
		levels = []float64{ClutterInterval}
	}

	pairs := make([]QuantilePair, 0, len(levels))
	for _, l := range levels {
		p, err := NewQuantilePair(l)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// intervalsFromQuantiles maps every lower quantile level q < 0.5 to the
// interval 1 - 2q, in order of first appearance.
func intervalsFromQuantiles(available []float64) ([]float64, error) {
	var levels []float64
	for _, q := range available {
		if q <= 0 || q >= 0.5 || sameLevel(q, 0.5) {
			continue
		}
		l, err := intervalFromLower(q)
		if err != nil {
			return nil, err
		}
		levels = appendUniqueLevels(levels, l)
	}
	return levels, nil
}

func canonicalize(levels []float64) []float64 {
	if len(levels) != len(canonicalIntervals) {
		return levels
	}
	for _, c := range canonicalIntervals {
		if !containsLevel(levels, c) {
			return levels
		}
	}
	return slices.Clone(canonicalIntervals)
}

func appendUniqueLevels(dst []float64, levels ...float64) []float64 {
	for _, l := range levels {
		if !containsLevel(dst, l) {
			dst = append(dst, l)
		}
	}
	return dst
}

func containsLevel(levels []float64, l float64) bool {
	return slices.ContainsFunc(levels, func(x float64) bool { return sameLevel(x, l) })
}

// QuantileLevels returns the distinct quantile levels present in rows.
func QuantileLevels(rows []ForecastRow) []float64 {
	var levels []float64
	for i := range rows {
		if rows[i].Type == TypeQuantile && rows[i].Quantile != nil {
			levels = appendUniqueLevels(levels, *rows[i].Quantile)
		}
	}
	return levels
}
