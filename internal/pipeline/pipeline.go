// Package pipeline orchestrates forecast retrieval and plot-data assembly:
// request validation, per-model loading, truth merging, interval resolution,
// palette assignment, and optional publication.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/couchcryptid/forecast-hub-etl/internal/observability"
)

// Publisher delivers assembled plot rows to the presentation layer.
type Publisher interface {
	PublishRows(ctx context.Context, target domain.TargetVariable, rows []domain.PlotRow) error
}

// Options holds service-wide defaults.
type Options struct {
	RootDir          string
	WindowDays       int
	FillTransparency float64
	// PublishBackoff is the first retry delay for a failed publish; it
	// doubles per attempt up to 5s. Zero means 200ms.
	PublishBackoff time.Duration
}

const (
	maxPublishAttempts = 3
	maxPublishBackoff  = 5 * time.Second
)

// Service answers forecast and plot-data requests against one hub.
type Service struct {
	repo      *Repository
	metadata  domain.MetadataProvider
	truth     domain.TruthProvider
	publisher Publisher
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// NewService wires the collaborators. truth and publisher may be nil, in
// which case requests needing them are rejected as misconfigured.
func NewService(repo *Repository, metadata domain.MetadataProvider, truth domain.TruthProvider, publisher Publisher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if opts.PublishBackoff <= 0 {
		opts.PublishBackoff = 200 * time.Millisecond
	}
	return &Service{
		repo:      repo,
		metadata:  metadata,
		truth:     truth,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once canonical metadata has been loaded at
// least once.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("metadata has not been loaded yet")
	}
	return nil
}

// Catalog loads the canonical models, locations and targets.
func (s *Service) Catalog(ctx context.Context) (domain.Catalog, error) {
	catalog, err := domain.LoadCatalog(ctx, s.metadata)
	if err != nil {
		return domain.Catalog{}, err
	}
	if !s.ready.Swap(true) {
		s.metrics.MetadataReady.Set(1)
		s.logger.Info("metadata loaded",
			"models", len(catalog.Models), "locations", len(catalog.Locations), "targets", len(catalog.Targets))
	}
	return catalog, nil
}

// ForecastQuery selects forecasts. Empty filters default to the canonical
// sets. Explicit ForecastDates take precedence over the window built from
// LastForecastDate (today when zero) and WindowDays (the service default
// when nil).
type ForecastQuery struct {
	Models           []string
	Locations        []string
	Types            []domain.ForecastType
	Targets          []string
	ForecastDates    []time.Time
	LastForecastDate time.Time
	WindowDays       *int
}

// Forecasts returns the latest submission of every requested model joined
// with location attributes.
func (s *Service) Forecasts(ctx context.Context, q ForecastQuery) ([]domain.ForecastRow, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, s.fail(err)
	}
	rows, _, err := s.retrieve(ctx, q, catalog)
	if err != nil {
		return nil, s.fail(err)
	}
	return rows, nil
}

func (s *Service) retrieve(ctx context.Context, q ForecastQuery, catalog domain.Catalog) ([]domain.ForecastRow, domain.RetrieveRequest, error) {
	req, err := domain.ValidateRetrieveRequest(domain.RetrieveRequest{
		RootDir:       s.opts.RootDir,
		Models:        q.Models,
		ForecastDates: s.window(q),
		Locations:     q.Locations,
		Types:         q.Types,
		Targets:       q.Targets,
	}, catalog)
	if err != nil {
		return nil, domain.RetrieveRequest{}, err
	}
	rows, err := s.repo.Retrieve(ctx, req, catalog.LocationIndex())
	if err != nil {
		return nil, domain.RetrieveRequest{}, err
	}
	return rows, req, nil
}

func (s *Service) window(q ForecastQuery) []time.Time {
	if len(q.ForecastDates) > 0 {
		return q.ForecastDates
	}
	days := s.opts.WindowDays
	if q.WindowDays != nil {
		days = *q.WindowDays
	}
	return domain.ForecastDateWindow(q.LastForecastDate, days)
}

// PlotQuery selects the data for one chart of a single target variable.
type PlotQuery struct {
	ForecastQuery
	TargetVariable domain.TargetVariable
	Intervals      []float64
	Horizons       []int
	IncludeTruth   bool
	TruthSource    domain.TruthSource // JHU when empty
	TruthAsOf      *time.Time
	FillByModel    bool
	Publish        bool
}

// PlotResult is chart-ready data plus the styling derived from it.
type PlotResult struct {
	Rows      []domain.PlotRow      `json:"rows"`
	Intervals []domain.QuantilePair `json:"intervals"`
	Palette   domain.Palette        `json:"palette"`
}

// Plot assembles plot data for q and publishes it when requested.
func (s *Service) Plot(ctx context.Context, q PlotQuery) (PlotResult, error) {
	start := time.Now()
	res, err := s.plot(ctx, q)
	if err != nil {
		return PlotResult{}, s.fail(err)
	}
	s.metrics.AssembleDuration.Observe(time.Since(start).Seconds())
	return res, nil
}

func (s *Service) plot(ctx context.Context, q PlotQuery) (PlotResult, error) {
	if err := s.checkPlotQuery(&q); err != nil {
		return PlotResult{}, err
	}

	catalog, err := s.Catalog(ctx)
	if err != nil {
		return PlotResult{}, err
	}
	if len(q.Targets) == 0 {
		q.Targets = targetsFor(catalog.Targets, q.TargetVariable, q.Horizons)
	}

	rows, req, err := s.retrieve(ctx, q.ForecastQuery, catalog)
	if err != nil {
		return PlotResult{}, err
	}

	plotted := rowsFor(rows, q.TargetVariable, q.Horizons)
	models := modelsIn(plotted, req.Models)
	pairs, err := domain.ResolveIntervals(q.Intervals, domain.QuantileLevels(plotted), len(models))
	if err != nil {
		return PlotResult{}, err
	}

	var truth []domain.TruthRecord
	if q.IncludeTruth {
		if truth, err = s.loadTruth(ctx, q); err != nil {
			return PlotResult{}, err
		}
	}

	plotRows, err := domain.AssemblePlotData(rows, truth, domain.PlotParams{
		Models:         req.Models,
		Locations:      req.Locations,
		ForecastDates:  req.ForecastDates,
		Horizons:       q.Horizons,
		Pairs:          pairs,
		TargetVariable: q.TargetVariable,
		IncludeTruth:   q.IncludeTruth,
		TruthSource:    q.TruthSource,
	})
	if err != nil {
		return PlotResult{}, err
	}
	for _, r := range plotRows {
		s.metrics.PlotRowsAssembled.WithLabelValues(string(r.Type)).Inc()
	}

	strategy := domain.ChoosePalette(q.FillByModel, len(models), s.opts.FillTransparency)
	res := PlotResult{
		Rows:      plotRows,
		Intervals: pairs,
		Palette:   strategy.Assign(models, pairs),
	}

	if q.Publish {
		if err := s.publish(ctx, q.TargetVariable, plotRows); err != nil {
			return PlotResult{}, err
		}
	}
	s.logger.Info("plot data assembled",
		"target_variable", q.TargetVariable, "models", len(models), "rows", len(plotRows), "intervals", len(pairs), "palette", strategy.Name())
	return res, nil
}

func (s *Service) checkPlotQuery(q *PlotQuery) error {
	var errs []error
	if q.TargetVariable == "" {
		errs = append(errs, &domain.ConfigurationError{Field: "target_variable", Reason: "is required"})
	} else if q.TargetVariable.Name() == "" {
		errs = append(errs, &domain.ConfigurationError{Field: "target_variable", Reason: "unknown target variable", Values: []string{string(q.TargetVariable)}})
	}
	if q.IncludeTruth {
		if q.TruthSource == "" {
			q.TruthSource = domain.TruthJHU
		}
		if s.truth == nil {
			errs = append(errs, &domain.ConfigurationError{Field: "truth", Reason: "no truth source is configured"})
		}
	}
	if q.Publish && s.publisher == nil {
		errs = append(errs, &domain.ConfigurationError{Field: "publish", Reason: "publishing is not enabled"})
	}
	return errors.Join(errs...)
}

func (s *Service) loadTruth(ctx context.Context, q PlotQuery) ([]domain.TruthRecord, error) {
	records, err := s.truth.Truth(ctx, q.TruthSource, q.TargetVariable)
	if err != nil {
		return nil, err
	}
	if q.TruthAsOf == nil {
		return domain.LatestTruth(records), nil
	}
	return domain.FilterTruthAsOf(records, *q.TruthAsOf)
}

// publish retries failed writes with exponential backoff.
func (s *Service) publish(ctx context.Context, target domain.TargetVariable, rows []domain.PlotRow) error {
	backoff := s.opts.PublishBackoff
	var err error
	for attempt := 1; attempt <= maxPublishAttempts; attempt++ {
		if err = s.publisher.PublishRows(ctx, target, rows); err == nil {
			s.metrics.RowsPublished.Add(float64(len(rows)))
			return nil
		}
		s.logger.Warn("publish failed", "attempt", attempt, "error", err)
		if attempt == maxPublishAttempts || !sleepWithContext(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff, maxPublishBackoff)
	}
	return fmt.Errorf("publish plot data: %w", err)
}

// fail records err by kind and returns it unchanged.
func (s *Service) fail(err error) error {
	kind := ErrorKind(err)
	s.metrics.RequestErrors.WithLabelValues(kind).Inc()
	if kind == KindInternal {
		s.logger.Error("request failed", "error", err)
	} else {
		s.logger.Warn("request rejected", "kind", kind, "error", err)
	}
	return err
}

// Error kinds reported by ErrorKind.
const (
	KindConfiguration = "configuration"
	KindParse         = "parse"
	KindAvailability  = "availability"
	KindUnsupported   = "unsupported"
	KindInternal      = "internal"
)

// ErrorKind classifies err by the domain error it wraps.
func ErrorKind(err error) string {
	var (
		cfgErr   *domain.ConfigurationError
		parseErr *domain.ParseError
		dataErr  *domain.DataAvailabilityError
	)
	switch {
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &dataErr):
		return KindAvailability
	case errors.Is(err, domain.ErrTruthAsOfUnsupported):
		return KindUnsupported
	default:
		return KindInternal
	}
}

// targetsFor narrows the canonical targets to one variable and, when given,
// a set of horizons. It returns nil when nothing matches so validation falls
// back to every target.
func targetsFor(canonical []string, variable domain.TargetVariable, horizons []int) []string {
	var out []string
	for _, raw := range canonical {
		t, err := domain.ParseTarget(raw)
		if err != nil || t.Variable != variable {
			continue
		}
		if len(horizons) > 0 && !slices.Contains(horizons, t.Horizon) {
			continue
		}
		out = append(out, t.String())
	}
	return out
}

// rowsFor keeps the rows that can reach the plot: one target variable and,
// when given, a set of horizons.
func rowsFor(rows []domain.ForecastRow, variable domain.TargetVariable, horizons []int) []domain.ForecastRow {
	out := make([]domain.ForecastRow, 0, len(rows))
	for _, r := range rows {
		if r.TargetVariable != variable {
			continue
		}
		if len(horizons) > 0 && !slices.Contains(horizons, r.Horizon) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// modelsIn returns the requested models that have at least one row, in
// requested order.
func modelsIn(rows []domain.ForecastRow, requested []string) []string {
	present := make(map[string]bool)
	for _, r := range rows {
		present[r.Model] = true
	}
	out := make([]string, 0, len(present))
	for _, m := range requested {
		if present[m] {
			out = append(out, m)
		}
	}
	return out
}
