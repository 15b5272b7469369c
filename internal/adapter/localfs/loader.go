package localfs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
)

// submissionColumns are the header columns every submission must carry.
var submissionColumns = []string{"forecast_date", "target", "target_end_date", "location", "type", "quantile", "value"}

// Filter restricts which parsed rows a Loader returns. Empty slices match
// everything. Targets must already be normalized with domain.NormalizeTarget.
type Filter struct {
	Types     []domain.ForecastType
	Locations []string
	Targets   []string
}

func (f Filter) matches(r domain.ForecastRecord) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, r.Type) {
		return false
	}
	if len(f.Locations) > 0 && !slices.Contains(f.Locations, r.Location) {
		return false
	}
	if len(f.Targets) > 0 && !slices.Contains(f.Targets, r.Target()) {
		return false
	}
	return true
}

// Loader parses submission files into forecast records.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load parses every row of the file at path, failing on the first row that
// cannot be decoded, then returns the rows matching f in file order.
func (l *Loader) Load(path, model string, f Filter) ([]domain.ForecastRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open submission: %w", err)
	}
	defer file.Close()

	records, err := Decode(file, path, model)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ForecastRecord, 0, len(records))
	for _, r := range records {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	l.logger.Debug("submission loaded", "model", model, "path", path, "rows", len(records), "kept", len(out))
	return out, nil
}

// Decode reads a submission CSV. name identifies the source in errors.
func Decode(r io.Reader, name, model string) ([]domain.ForecastRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.ParseError{File: name, Err: errors.New("empty file")}
	}
	if err != nil {
		return nil, &domain.ParseError{File: name, Row: 1, Err: err}
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, c := range submissionColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.ParseError{File: name, Row: 1, Err: fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))}
	}

	var records []domain.ForecastRecord
	for row := 2; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.ParseError{File: name, Row: row, Err: err}
		}
		rec, err := parseRow(fields, cols, model)
		if err != nil {
			return nil, &domain.ParseError{File: name, Row: row, Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(fields []string, cols map[string]int, model string) (domain.ForecastRecord, error) {
	get := func(col string) string {
		i := cols[col]
		if i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	forecastDate, err := parseDate("forecast_date", get("forecast_date"))
	if err != nil {
		return domain.ForecastRecord{}, err
	}
	targetEndDate, err := parseDate("target_end_date", get("target_end_date"))
	if err != nil {
		return domain.ForecastRecord{}, err
	}
	target, err := domain.ParseTarget(get("target"))
	if err != nil {
		return domain.ForecastRecord{}, err
	}

	location := get("location")
	if location == "" {
		return domain.ForecastRecord{}, errors.New("location is empty")
	}

	typ, ok := domain.ParseForecastType(get("type"))
	if !ok {
		return domain.ForecastRecord{}, fmt.Errorf("type %q: want point or quantile", get("type"))
	}

	value, err := strconv.ParseFloat(get("value"), 64)
	if err != nil {
		return domain.ForecastRecord{}, fmt.Errorf("value %q: %w", get("value"), err)
	}

	rec := domain.ForecastRecord{
		Model:              model,
		ForecastDate:       forecastDate,
		Location:           location,
		Horizon:            target.Horizon,
		TemporalResolution: target.Resolution,
		TargetVariable:     target.Variable,
		TargetEndDate:      targetEndDate,
		Type:               typ,
		Value:              value,
	}

	if typ == domain.TypeQuantile {
		raw := get("quantile")
		q, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.ForecastRecord{}, fmt.Errorf("quantile %q: %w", raw, err)
		}
		if !(q > 0 && q < 1) {
			return domain.ForecastRecord{}, fmt.Errorf("quantile %v outside (0, 1)", q)
		}
		rec.Quantile = &q
	}
	return rec, nil
}

func parseDate(col, s string) (time.Time, error) {
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %q: want YYYY-MM-DD", col, s)
	}
	return d, nil
}
