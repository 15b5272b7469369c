package main

import (
	"fmt"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/couchcryptid/forecast-hub-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

// queryFlags are the retrieval filters shared by forecasts and plot.
type queryFlags struct {
	models        []string
	locations     []string
	types         []string
	targets       []string
	forecastDates []string
	lastDate      string
	windowDays    int
	format        string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVar(&f.models, "model", nil, "model abbreviations (default: all)")
	fs.StringSliceVar(&f.locations, "location", nil, "location codes (default: all)")
	fs.StringSliceVar(&f.types, "type", nil, "point and/or quantile (default: both)")
	fs.StringSliceVar(&f.targets, "target", nil, `targets such as "1 wk ahead inc death" (default: all)`)
	fs.StringSliceVar(&f.forecastDates, "forecast-date", nil, "explicit candidate forecast dates, YYYY-MM-DD")
	fs.StringVar(&f.lastDate, "last-forecast-date", "", "last date of the window, YYYY-MM-DD (default: today)")
	fs.IntVar(&f.windowDays, "window-days", -1, "days before the last date to search (default: FORECAST_WINDOW_DAYS)")
	fs.StringVar(&f.format, "format", formatCSV, "output format: csv or json")
}

func (f *queryFlags) query() (pipeline.ForecastQuery, error) {
	if err := checkFormat(f.format); err != nil {
		return pipeline.ForecastQuery{}, err
	}
	q := pipeline.ForecastQuery{
		Models:    f.models,
		Locations: f.locations,
		Targets:   f.targets,
	}
	for _, t := range f.types {
		q.Types = append(q.Types, domain.ForecastType(t))
	}
	for _, s := range f.forecastDates {
		d, err := parseDateFlag("forecast-date", s)
		if err != nil {
			return q, err
		}
		q.ForecastDates = append(q.ForecastDates, d)
	}
	if f.lastDate != "" {
		d, err := parseDateFlag("last-forecast-date", f.lastDate)
		if err != nil {
			return q, err
		}
		q.LastForecastDate = d
	}
	if f.windowDays >= 0 {
		days := f.windowDays
		q.WindowDays = &days
	}
	return q, nil
}

func parseDateFlag(name, s string) (time.Time, error) {
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s %q: want YYYY-MM-DD", name, s)
	}
	return d, nil
}

func newForecastsCmd(opts *globalOptions) *cobra.Command {
	flags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "forecasts",
		Short: "Print the latest submission of each model in the window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := flags.query()
			if err != nil {
				return err
			}
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			a, err := opts.build(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.Service.Forecasts(cmd.Context(), q)
			if err != nil {
				return err
			}
			if flags.format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			return writeForecastsCSV(cmd.OutOrStdout(), rows)
		},
	}
	flags.register(cmd)
	return cmd
}
