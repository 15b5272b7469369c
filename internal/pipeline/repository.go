package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/adapter/localfs"
	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/couchcryptid/forecast-hub-etl/internal/observability"
	"golang.org/x/sync/errgroup"
)

// FileLocator picks the submission file for a model within a date window.
type FileLocator interface {
	Locate(root, model string, dates []time.Time) (path string, ok bool)
}

// RecordLoader parses and filters one submission file.
type RecordLoader interface {
	Load(path, model string, f localfs.Filter) ([]domain.ForecastRecord, error)
}

// Repository retrieves the latest submission of each requested model and
// joins it with location reference data.
type Repository struct {
	locator     FileLocator
	loader      RecordLoader
	concurrency int
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewRepository creates a Repository loading at most concurrency models at once.
func NewRepository(locator FileLocator, loader RecordLoader, concurrency int, logger *slog.Logger, metrics *observability.Metrics) *Repository {
	return &Repository{
		locator:     locator,
		loader:      loader,
		concurrency: max(concurrency, 1),
		logger:      logger,
		metrics:     metrics,
	}
}

// Retrieve loads every model of an already validated request. Models with no
// submission in the window contribute no rows. Rows keep the requested model
// order and file order within a model. Locations unknown to the catalog keep
// nil attributes.
func (r *Repository) Retrieve(ctx context.Context, req domain.RetrieveRequest, locations map[string]domain.LocationAttributes) ([]domain.ForecastRow, error) {
	start := time.Now()
	defer func() { r.metrics.RetrieveDuration.Observe(time.Since(start).Seconds()) }()

	if len(req.Models) == 0 || len(req.ForecastDates) == 0 {
		return []domain.ForecastRow{}, nil
	}
	dates := slices.Clone(req.ForecastDates)
	slices.SortFunc(dates, time.Time.Compare)
	filter := localfs.Filter{Types: req.Types, Locations: req.Locations, Targets: req.Targets}

	// One slot per model so concatenation restores request order.
	results := make([][]domain.ForecastRecord, len(req.Models))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, model := range req.Models {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path, ok := r.locator.Locate(req.RootDir, model, dates)
			if !ok {
				r.metrics.FilesLocated.WithLabelValues("missing").Inc()
				r.logger.Debug("no submission in window", "model", model,
					"from", dates[0].Format(domain.DateLayout), "to", dates[len(dates)-1].Format(domain.DateLayout))
				return nil
			}
			r.metrics.FilesLocated.WithLabelValues("found").Inc()

			records, err := r.loader.Load(path, model, filter)
			if err != nil {
				var pe *domain.ParseError
				if errors.As(err, &pe) {
					r.metrics.ParseErrors.Inc()
				}
				return fmt.Errorf("load %s: %w", model, err)
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, recs := range results {
		total += len(recs)
	}
	rows := make([]domain.ForecastRow, 0, total)
	for _, recs := range results {
		for _, rec := range recs {
			row := domain.ForecastRow{ForecastRecord: rec}
			if attrs, ok := locations[rec.Location]; ok {
				row.Attributes = &attrs
			}
			rows = append(rows, row)
		}
	}
	r.metrics.RecordsLoaded.Add(float64(len(rows)))
	r.logger.Info("forecasts retrieved", "models", len(req.Models), "rows", len(rows), "duration", time.Since(start))
	return rows, nil
}
