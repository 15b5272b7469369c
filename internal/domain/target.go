package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// targetArity is the number of logical fields in a compound target:
// horizon, temporal resolution, the literal "ahead", and the target variable.
const targetArity = 4

// ErrMalformedTarget is wrapped by every ParseTarget failure.
var ErrMalformedTarget = errors.New("malformed target")

// Target is the decomposed form of a compound target string such as
// "2 wk ahead cum death".
type Target struct {
	Horizon    int
	Resolution TemporalResolution
	Variable   TargetVariable
}

// String joins the fields back into the compound form.
func (t Target) String() string {
	return fmt.Sprintf("%d %s ahead %s", t.Horizon, t.Resolution, t.Variable)
}

// ParseTarget tokenizes a compound target on whitespace. The first three
// tokens are horizon, resolution and "ahead"; every remaining token is merged
// into the target variable. Matching is case-insensitive.
func ParseTarget(s string) (Target, error) {
	tokens := strings.Fields(strings.ToLower(s))
	if len(tokens) < targetArity {
		return Target{}, fmt.Errorf("%w %q: want %d fields, got %d", ErrMalformedTarget, s, targetArity, len(tokens))
	}

	horizon, err := strconv.Atoi(tokens[0])
	if err != nil || horizon < 0 {
		return Target{}, fmt.Errorf("%w %q: horizon %q is not a non-negative integer", ErrMalformedTarget, s, tokens[0])
	}

	var resolution TemporalResolution
	switch TemporalResolution(tokens[1]) {
	case ResolutionWeek, ResolutionDay:
		resolution = TemporalResolution(tokens[1])
	default:
		return Target{}, fmt.Errorf("%w %q: unknown temporal resolution %q", ErrMalformedTarget, s, tokens[1])
	}

	if tokens[2] != "ahead" {
		return Target{}, fmt.Errorf("%w %q: expected \"ahead\", got %q", ErrMalformedTarget, s, tokens[2])
	}

	variable, ok := ParseTargetVariable(strings.Join(tokens[3:], " "))
	if !ok {
		return Target{}, fmt.Errorf("%w %q: unknown target variable %q", ErrMalformedTarget, s, strings.Join(tokens[3:], " "))
	}

	return Target{Horizon: horizon, Resolution: resolution, Variable: variable}, nil
}

// NormalizeTarget lower-cases a target identifier and collapses whitespace so
// it compares equal to the canonical form.
func NormalizeTarget(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
