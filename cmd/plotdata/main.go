// Command plotdata runs forecast retrieval and plot-data assembly against a
// local hub checkout and writes the result as CSV or JSON.
//
// Usage:
//
//	plotdata forecasts --root-dir ./data-processed --metadata-file metadata.yaml --model COVIDhub-ensemble
//	plotdata plot --root-dir ./data-processed --metadata-file metadata.yaml \
//	  --target-variable incident_deaths --interval 0.5,0.95 --truth --truth-dir ./truth
//	plotdata validate --root-dir ./data-processed
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/forecast-hub-etl/internal/app"
	"github.com/couchcryptid/forecast-hub-etl/internal/config"
	"github.com/couchcryptid/forecast-hub-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// globalOptions override the environment configuration for one invocation.
type globalOptions struct {
	rootDir      string
	metadataFile string
	metadataURL  string
	truthDir     string
	truthURL     string
	logLevel     string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "plotdata",
		Short: "Retrieve forecast hub submissions and assemble plot data",
		Long: `plotdata reads a forecast hub directory of <model>/<date>-<model>.csv
submissions, selects the latest file per model in a forecast-date window and
turns it into chart-ready rows with prediction intervals and truth overlays.

Flags override the environment variables read by the service.`,
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.rootDir, "root-dir", "", "hub data directory (overrides FORECAST_ROOT_DIR)")
	pf.StringVar(&opts.metadataFile, "metadata-file", "", "YAML file with models, locations and targets")
	pf.StringVar(&opts.metadataURL, "metadata-url", "", "metadata service base URL")
	pf.StringVar(&opts.truthDir, "truth-dir", "", "directory holding truth tables")
	pf.StringVar(&opts.truthURL, "truth-url", "", "base URL serving truth tables")
	pf.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newForecastsCmd(opts),
		newPlotCmd(opts),
		newValidateCmd(opts),
	)
	return root
}

// config reads the environment, applies flag overrides and validates.
func (o *globalOptions) config() (*config.Config, error) {
	cfg, err := o.parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse reads the environment and applies flag overrides without validating.
func (o *globalOptions) parse() (*config.Config, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, err
	}
	if o.rootDir != "" {
		cfg.RootDir = o.rootDir
	}
	switch {
	case o.metadataFile != "":
		cfg.MetadataFile, cfg.MetadataURL = o.metadataFile, ""
	case o.metadataURL != "":
		cfg.MetadataURL, cfg.MetadataFile = o.metadataURL, ""
	}
	switch {
	case o.truthDir != "":
		cfg.TruthDir, cfg.TruthBaseURL = o.truthDir, ""
	case o.truthURL != "":
		cfg.TruthBaseURL, cfg.TruthDir = o.truthURL, ""
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

func (o *globalOptions) logger(cfg *config.Config) *slog.Logger {
	return observability.NewLogger(cfg.LogLevel, "text")
}

// build wires the service. Metrics go to a private registry since a one-shot
// command has no scrape endpoint.
func (o *globalOptions) build(cfg *config.Config) (*app.App, error) {
	a, err := app.New(cfg, o.logger(cfg), observability.NewMetricsWithRegistry(prometheus.NewRegistry()))
	if err != nil {
		return nil, fmt.Errorf("build service: %w", err)
	}
	return a, nil
}
