package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTruthAsOfUnsupported is returned when an as-of date is requested from
// truth data that carries no version information.
var ErrTruthAsOfUnsupported = errors.New("truth_as_of is not supported by this truth source")

// ConfigurationError reports request parameters that cannot be served:
// a missing root directory or identifiers outside the canonical sets.
type ConfigurationError struct {
	Field  string
	Values []string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if len(e.Values) == 0 {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s: %s", e.Field, e.Reason, strings.Join(e.Values, ", "))
}

// ParseError reports a submission row that could not be decoded.
// Row is 1-based and counts the header line.
type ParseError struct {
	File string
	Row  int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("parse %s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("parse %s row %d: %v", e.File, e.Row, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DataAvailabilityError reports an empty result for an explicitly requested
// target, or truth data that cannot serve the requested filters.
type DataAvailabilityError struct {
	Reason string
}

func (e *DataAvailabilityError) Error() string {
	return "data unavailable: " + e.Reason
}

func unavailable(format string, args ...any) error {
	return &DataAvailabilityError{Reason: fmt.Sprintf(format, args...)}
}
