package main

import (
	"fmt"

	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/couchcryptid/forecast-hub-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

type plotFlags struct {
	queryFlags
	targetVariable string
	intervals      []float64
	horizons       []int
	truth          bool
	truthSource    string
	truthAsOf      string
	fillByModel    bool
	publish        bool
}

func (f *plotFlags) query() (pipeline.PlotQuery, error) {
	fq, err := f.queryFlags.query()
	if err != nil {
		return pipeline.PlotQuery{}, err
	}
	q := pipeline.PlotQuery{
		ForecastQuery: fq,
		Intervals:     f.intervals,
		Horizons:      f.horizons,
		IncludeTruth:  f.truth,
		FillByModel:   f.fillByModel,
		Publish:       f.publish,
	}
	tv, ok := domain.ParseTargetVariable(f.targetVariable)
	if !ok {
		return q, fmt.Errorf("--target-variable %q: want a hub code such as \"inc death\" or a name such as incident_deaths", f.targetVariable)
	}
	q.TargetVariable = tv
	if f.truthSource != "" {
		if q.TruthSource, err = domain.ParseTruthSource(f.truthSource); err != nil {
			return q, err
		}
	}
	if f.truthAsOf != "" {
		d, err := parseDateFlag("truth-as-of", f.truthAsOf)
		if err != nil {
			return q, err
		}
		q.TruthAsOf = &d
	}
	return q, nil
}

func newPlotCmd(opts *globalOptions) *cobra.Command {
	flags := &plotFlags{}
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Assemble chart-ready rows for one target variable",
		Long: `plot retrieves forecasts for a target variable, widens quantiles into
prediction-interval bands and optionally appends observed truth rows.

CSV output carries the rows only; JSON output also carries the intervals and
the palette.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := flags.query()
			if err != nil {
				return err
			}
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			if q.Publish {
				cfg.KafkaPublishEnabled = true
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			a, err := opts.build(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Service.Plot(cmd.Context(), q)
			if err != nil {
				return err
			}
			if flags.format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return writePlotCSV(cmd.OutOrStdout(), res.Rows)
		},
	}
	flags.register(cmd)
	fs := cmd.Flags()
	fs.StringVar(&flags.targetVariable, "target-variable", "", `hub code ("inc death") or name (incident_deaths)`)
	fs.Float64SliceVar(&flags.intervals, "interval", nil, "prediction intervals such as 0.5,0.95 (default: derived from the data)")
	fs.IntSliceVar(&flags.horizons, "horizon", nil, "horizons to keep (default: all)")
	fs.BoolVar(&flags.truth, "truth", false, "append observed data rows")
	fs.StringVar(&flags.truthSource, "truth-source", "", "JHU, NYTimes or USAFacts (default: JHU)")
	fs.StringVar(&flags.truthAsOf, "truth-as-of", "", "use truth as issued on this date, YYYY-MM-DD")
	fs.BoolVar(&flags.fillByModel, "fill-by-model", false, "color interval bands by model")
	fs.BoolVar(&flags.publish, "publish", false, "publish rows to KAFKA_SINK_TOPIC")
	_ = cmd.MarkFlagRequired("target-variable")
	return cmd
}
