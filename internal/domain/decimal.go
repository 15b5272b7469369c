package domain

import (
	"fmt"
	"math"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// levelEpsilon is the tolerance for comparing quantile levels read from files.
const levelEpsilon = 1e-9

var (
	decimalCtx = apd.BaseContext.WithPrecision(34)
	half       = apd.New(5, -1)
	one        = apd.New(1, 0)
	two        = apd.New(2, 0)
	hundred    = apd.New(100, 0)
)

// toDecimal converts f through its shortest decimal representation, so 0.95
// becomes exactly 0.95 rather than its binary approximation.
func toDecimal(f float64) (*apd.Decimal, error) {
	d, _, err := apd.NewFromString(strconv.FormatFloat(f, 'f', -1, 64))
	if err != nil {
		return nil, fmt.Errorf("decimal %v: %w", f, err)
	}
	return d, nil
}

func toFloat(d *apd.Decimal) float64 {
	f, err := d.Float64()
	if err != nil {
		return math.NaN()
	}
	return f
}

// quantileBounds returns 0.5 - level/2 and 0.5 + level/2.
func quantileBounds(level float64) (lower, upper float64, err error) {
	l, err := toDecimal(level)
	if err != nil {
		return 0, 0, err
	}
	var halfWidth, lo, hi apd.Decimal
	if _, err := decimalCtx.Quo(&halfWidth, l, two); err != nil {
		return 0, 0, err
	}
	if _, err := decimalCtx.Sub(&lo, half, &halfWidth); err != nil {
		return 0, 0, err
	}
	if _, err := decimalCtx.Add(&hi, half, &halfWidth); err != nil {
		return 0, 0, err
	}
	return toFloat(&lo), toFloat(&hi), nil
}

// intervalFromLower returns 1 - 2*lower.
func intervalFromLower(lower float64) (float64, error) {
	q, err := toDecimal(lower)
	if err != nil {
		return 0, err
	}
	var width, level apd.Decimal
	if _, err := decimalCtx.Mul(&width, q, two); err != nil {
		return 0, err
	}
	if _, err := decimalCtx.Sub(&level, one, &width); err != nil {
		return 0, err
	}
	return toFloat(&level), nil
}

// percentLabel formats 0.95 as "95%".
func percentLabel(level float64) string {
	l, err := toDecimal(level)
	if err != nil {
		return strconv.FormatFloat(level*100, 'g', -1, 64) + "%"
	}
	var pct apd.Decimal
	if _, err := decimalCtx.Mul(&pct, l, hundred); err != nil {
		return strconv.FormatFloat(level*100, 'g', -1, 64) + "%"
	}
	pct.Reduce(&pct)
	return pct.Text('f') + "%"
}

func sameLevel(a, b float64) bool {
	return math.Abs(a-b) < levelEpsilon
}
