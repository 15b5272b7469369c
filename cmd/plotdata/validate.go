package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/couchcryptid/forecast-hub-etl/internal/adapter/localfs"
	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/spf13/cobra"
)

var errValidationFailed = errors.New("validation failed")

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	skipped string
	errors  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// loadedSubmission is a discovered file with its decoded records, or the
// error that stopped decoding.
type loadedSubmission struct {
	localfs.Submission
	records []domain.ForecastRecord
	err     error
}

func newValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every submission in the hub for format errors",
		Long: `validate decodes every <model>/<date>-<model>.<ext> file under the root
directory and reports all problems instead of stopping at the first one.

When a metadata source is configured, models, locations and targets are also
checked against the canonical sets.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.parse()
			if err != nil {
				return err
			}
			if cfg.RootDir == "" {
				return errors.New("--root-dir or FORECAST_ROOT_DIR is required")
			}

			locator := localfs.NewLocator(cfg.FileExt)
			subs, err := locator.Discover(cfg.RootDir)
			if err != nil {
				return err
			}
			loaded := decodeAll(subs)

			phases := []*phase{
				validateParse(loaded),
				validateForecastDates(loaded),
			}

			canonical := &phase{name: "Phase 3: Canonical sets (metadata)"}
			if cfg.MetadataFile == "" && cfg.MetadataURL == "" {
				canonical.skipped = "no metadata source"
			} else {
				if err := cfg.Validate(); err != nil {
					return err
				}
				a, err := opts.build(cfg)
				if err != nil {
					return err
				}
				defer a.Close()
				catalog, err := a.Service.Catalog(cmd.Context())
				if err != nil {
					return err
				}
				validateCanonical(canonical, loaded, catalog)
			}
			phases = append(phases, canonical)

			if !report(cmd.OutOrStdout(), subs, phases) {
				return errValidationFailed
			}
			return nil
		},
	}
}

func decodeAll(subs []localfs.Submission) []loadedSubmission {
	out := make([]loadedSubmission, 0, len(subs))
	for _, s := range subs {
		ls := loadedSubmission{Submission: s}
		f, err := os.Open(s.Path)
		if err != nil {
			ls.err = err
		} else {
			ls.records, ls.err = localfs.Decode(f, s.Path, s.Model)
			f.Close()
		}
		out = append(out, ls)
	}
	return out
}

// ── Phase 1: Parse ──

func validateParse(loaded []loadedSubmission) *phase {
	p := &phase{name: "Phase 1: Submission format (CSV)"}
	for _, s := range loaded {
		if s.err != nil {
			p.errorf("%v", s.err)
		} else if len(s.records) == 0 {
			p.errorf("%s: no data rows", s.Path)
		}
	}
	return p
}

// ── Phase 2: Forecast dates ──
// Every row must carry the forecast date encoded in its file name.

func validateForecastDates(loaded []loadedSubmission) *phase {
	p := &phase{name: "Phase 2: Forecast dates (file name)"}
	for _, s := range loaded {
		want := s.ForecastDate.Format(domain.DateLayout)
		for i, r := range s.records {
			if got := r.ForecastDate.Format(domain.DateLayout); got != want {
				p.errorf("%s row %d: forecast_date %s, file name says %s", s.Path, i+2, got, want)
			}
		}
	}
	return p
}

// ── Phase 3: Canonical sets ──

func validateCanonical(p *phase, loaded []loadedSubmission, catalog domain.Catalog) {
	locations := catalog.LocationCodes()
	targets := make([]string, len(catalog.Targets))
	for i, t := range catalog.Targets {
		targets[i] = domain.NormalizeTarget(t)
	}
	reported := map[string]bool{}
	once := func(key, format string, args ...any) {
		if !reported[key] {
			reported[key] = true
			p.errorf(format, args...)
		}
	}
	for _, s := range loaded {
		if !slices.Contains(catalog.Models, s.Model) {
			once("model|"+s.Model, "model %q is not in the metadata catalog", s.Model)
		}
		for _, r := range s.records {
			if !slices.Contains(locations, r.Location) {
				once("location|"+s.Path+"|"+r.Location, "%s: location %q is not in the metadata catalog", s.Path, r.Location)
			}
			if t := r.Target(); !slices.Contains(targets, domain.NormalizeTarget(t)) {
				once("target|"+s.Path+"|"+t, "%s: target %q is not in the metadata catalog", s.Path, t)
			}
		}
	}
}

// report prints the phase table and details, and reports whether all passed.
func report(w io.Writer, subs []localfs.Submission, phases []*phase) bool {
	fmt.Fprintln(w, "=== Forecast Hub Validation ===")
	fmt.Fprintln(w)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.skipped != "":
			status = fmt.Sprintf("\033[33mSKIP (%s)\033[0m", p.skipped)
		case !p.passed():
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	models := map[string]bool{}
	for _, s := range subs {
		models[s.Model] = true
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Submissions: %d files from %d models\n", len(subs), len(models))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return true
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return false
}
