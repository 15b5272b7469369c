package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used in file names and CSV columns.
const DateLayout = "2006-01-02"

// ForecastType distinguishes point predictions from quantile predictions.
type ForecastType string

const (
	TypePoint    ForecastType = "point"
	TypeQuantile ForecastType = "quantile"
)

// ParseForecastType lower-cases s and reports whether it names a known type.
func ParseForecastType(s string) (ForecastType, bool) {
	t := ForecastType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypePoint, TypeQuantile:
		return t, true
	default:
		return t, false
	}
}

// TemporalResolution is the unit a forecast horizon is counted in.
type TemporalResolution string

const (
	ResolutionDay  TemporalResolution = "day"
	ResolutionWeek TemporalResolution = "wk"
)

// Name spells the resolution out for output tables: "day" or "week".
func (r TemporalResolution) Name() string {
	if r == ResolutionWeek {
		return "week"
	}
	return string(r)
}

func (r TemporalResolution) MarshalText() ([]byte, error) {
	return []byte(r.Name()), nil
}

func (r *TemporalResolution) UnmarshalText(b []byte) error {
	switch s := strings.ToLower(string(b)); s {
	case "wk", "week":
		*r = ResolutionWeek
	case "day":
		*r = ResolutionDay
	default:
		return fmt.Errorf("unknown temporal resolution %q", s)
	}
	return nil
}

// TargetVariable is the hub code for the forecasted quantity, e.g. "inc death".
type TargetVariable string

const (
	CumulativeDeaths         TargetVariable = "cum death"
	IncidentCases            TargetVariable = "inc case"
	IncidentDeaths           TargetVariable = "inc death"
	IncidentHospitalizations TargetVariable = "inc hosp"
)

var targetVariableNames = map[TargetVariable]string{
	CumulativeDeaths:         "cumulative_deaths",
	IncidentCases:            "incident_cases",
	IncidentDeaths:           "incident_deaths",
	IncidentHospitalizations: "incident_hospitalizations",
}

// truthFileNames maps each target variable to the title used by truth data files.
var truthFileNames = map[TargetVariable]string{
	CumulativeDeaths:         "Cumulative Deaths",
	IncidentCases:            "Incident Cases",
	IncidentDeaths:           "Incident Deaths",
	IncidentHospitalizations: "Incident Hospitalizations",
}

// ParseTargetVariable accepts either the hub code ("inc death") or the
// snake-case name ("incident_deaths"), case-insensitively.
func ParseTargetVariable(s string) (TargetVariable, bool) {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	if _, ok := targetVariableNames[TargetVariable(s)]; ok {
		return TargetVariable(s), true
	}
	for code, name := range targetVariableNames {
		if name == s {
			return code, true
		}
	}
	return "", false
}

// Name returns the snake-case name, e.g. "incident_deaths".
func (v TargetVariable) Name() string { return targetVariableNames[v] }

// MarshalText encodes the snake-case name so output tables read
// "incident_deaths" rather than the hub code.
func (v TargetVariable) MarshalText() ([]byte, error) {
	return []byte(v.Name()), nil
}

func (v *TargetVariable) UnmarshalText(b []byte) error {
	parsed, ok := ParseTargetVariable(string(b))
	if !ok {
		return fmt.Errorf("unknown target variable %q", b)
	}
	*v = parsed
	return nil
}

// TruthTitle returns the title used in truth file names, e.g. "Incident Deaths".
func (v TargetVariable) TruthTitle() string { return truthFileNames[v] }

// ForecastRecord is one typed row of a submission file.
type ForecastRecord struct {
	Model              string             `json:"model"`
	ForecastDate       time.Time          `json:"forecast_date"`
	Location           string             `json:"location"`
	Horizon            int                `json:"horizon"`
	TemporalResolution TemporalResolution `json:"temporal_resolution"`
	TargetVariable     TargetVariable     `json:"target_variable"`
	TargetEndDate      time.Time          `json:"target_end_date"`
	Type               ForecastType       `json:"type"`
	Quantile           *float64           `json:"quantile"` // set iff Type == TypeQuantile
	Value              float64            `json:"value"`
}

// Target rebuilds the compound target string, e.g. "2 wk ahead cum death".
func (r ForecastRecord) Target() string {
	return Target{Horizon: r.Horizon, Resolution: r.TemporalResolution, Variable: r.TargetVariable}.String()
}

// GeoType classifies a location.
type GeoType string

const (
	GeoState  GeoType = "state"
	GeoCounty GeoType = "county"
	GeoNation GeoType = "nation"
)

// LocationAttributes is reference data for a location code, owned by the
// metadata provider.
type LocationAttributes struct {
	Code         string  `json:"code" yaml:"code"`
	Name         string  `json:"name" yaml:"name"`
	Population   int64   `json:"population" yaml:"population"`
	GeoType      GeoType `json:"geo_type" yaml:"geo_type"`
	GeoValue     string  `json:"geo_value" yaml:"geo_value"`
	Abbreviation string  `json:"abbreviation" yaml:"abbreviation"`
}

// ForecastRow is a ForecastRecord left-joined with its location attributes.
// Attributes is nil when the code is unknown to the metadata provider.
type ForecastRow struct {
	ForecastRecord
	Attributes *LocationAttributes `json:"attributes,omitempty"`
}

// ForecastRowColumns is the column order of the repository output table.
var ForecastRowColumns = []string{
	"model", "forecast_date", "location", "horizon", "temporal_resolution",
	"target_variable", "target_end_date", "type", "quantile", "value",
	"location_name", "population", "geo_type", "geo_value", "abbreviation",
}
