// Package app assembles the service graph from configuration so the HTTP
// service and the CLI share the same wiring.
package app

import (
	"errors"
	"io"
	"log/slog"

	kafkaadapter "github.com/couchcryptid/forecast-hub-etl/internal/adapter/kafka"
	"github.com/couchcryptid/forecast-hub-etl/internal/adapter/localfs"
	"github.com/couchcryptid/forecast-hub-etl/internal/adapter/metadata"
	"github.com/couchcryptid/forecast-hub-etl/internal/adapter/truth"
	"github.com/couchcryptid/forecast-hub-etl/internal/config"
	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/couchcryptid/forecast-hub-etl/internal/observability"
	"github.com/couchcryptid/forecast-hub-etl/internal/pipeline"
)

// App holds the wired service and the resources it must release.
type App struct {
	Service *pipeline.Service
	Locator *localfs.Locator
	closers []io.Closer
}

// New wires metadata, truth, publishing and retrieval from cfg.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	provider, err := newMetadataProvider(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}

	a := &App{Locator: localfs.NewLocator(cfg.FileExt)}

	var publisher pipeline.Publisher
	if cfg.KafkaPublishEnabled {
		w := kafkaadapter.NewWriter(cfg, logger)
		publisher = w
		a.closers = append(a.closers, w)
		logger.Info("plot-data publishing enabled", "topic", cfg.KafkaSinkTopic)
	}

	repo := pipeline.NewRepository(a.Locator, localfs.NewLoader(logger), cfg.LoadConcurrency, logger, metrics)
	a.Service = pipeline.NewService(repo, provider, newTruthProvider(cfg, logger, metrics), publisher, pipeline.Options{
		RootDir:          cfg.RootDir,
		WindowDays:       cfg.WindowDays,
		FillTransparency: cfg.FillTransparency,
	}, logger, metrics)
	return a, nil
}

// Close releases publisher connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func newMetadataProvider(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (domain.MetadataProvider, error) {
	if cfg.MetadataFile != "" {
		logger.Info("metadata from file", "path", cfg.MetadataFile)
		return metadata.LoadFile(cfg.MetadataFile)
	}
	client := metadata.NewClient(metadata.ClientOptions{
		BaseURL:   cfg.MetadataURL,
		Project:   cfg.MetadataProject,
		Token:     cfg.MetadataToken,
		Timeout:   cfg.MetadataTimeout,
		RateLimit: cfg.MetadataRateLimit,
	}, metrics, logger)
	logger.Info("metadata from service", "url", cfg.MetadataURL, "project", cfg.MetadataProject, "cache_ttl", cfg.MetadataCacheTTL)
	return metadata.NewCachedProvider(client, cfg.MetadataCacheTTL, nil, metrics), nil
}

// newTruthProvider returns nil when no truth source is configured.
func newTruthProvider(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) domain.TruthProvider {
	switch {
	case cfg.TruthBaseURL != "":
		logger.Info("truth data from url", "url", cfg.TruthBaseURL)
		src := truth.NewHTTPSource(cfg.TruthBaseURL, cfg.TruthTimeout, metrics, logger)
		return truth.NewCachedSource(src, cfg.TruthCacheTTL, nil, metrics)
	case cfg.TruthDir != "":
		logger.Info("truth data from directory", "dir", cfg.TruthDir)
		return truth.NewDirSource(cfg.TruthDir)
	default:
		logger.Info("truth data disabled")
		return nil
	}
}
