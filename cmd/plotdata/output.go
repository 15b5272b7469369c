package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
)

const (
	formatCSV  = "csv"
	formatJSON = "json"
)

func checkFormat(f string) error {
	if f != formatCSV && f != formatJSON {
		return fmt.Errorf("unknown format %q: want csv or json", f)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeForecastsCSV(w io.Writer, rows []domain.ForecastRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.ForecastRowColumns); err != nil {
		return err
	}
	for i := range rows {
		r := &rows[i]
		rec := []string{
			r.Model,
			r.ForecastDate.Format(domain.DateLayout),
			r.Location,
			strconv.Itoa(r.Horizon),
			r.TemporalResolution.Name(),
			r.TargetVariable.Name(),
			r.TargetEndDate.Format(domain.DateLayout),
			string(r.Type),
			formatOptional(r.Quantile),
			formatFloat(r.Value),
		}
		if a := r.Attributes; a != nil {
			rec = append(rec, a.Name, strconv.FormatInt(a.Population, 10), string(a.GeoType), a.GeoValue, a.Abbreviation)
		} else {
			rec = append(rec, "", "", "", "", "")
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writePlotCSV(w io.Writer, rows []domain.PlotRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.PlotRowColumns); err != nil {
		return err
	}
	for i := range rows {
		r := &rows[i]
		interval := ""
		if r.PredictionInterval != nil {
			interval = *r.PredictionInterval
		}
		rec := []string{
			r.Label,
			formatOptionalDate(r.ForecastDate),
			r.TargetEndDate.Format(domain.DateLayout),
			r.Location,
			string(r.Type),
			interval,
			formatOptional(r.Point),
			formatOptional(r.Lower),
			formatOptional(r.Upper),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(domain.DateLayout)
}
