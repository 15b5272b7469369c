package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "forecast_hub"

// Metrics holds the Prometheus counters, histograms, and gauges for retrieval
// and plot-data assembly.
type Metrics struct {
	// Retrieval metrics.
	FilesLocated     *prometheus.CounterVec // labels: outcome={found,missing}
	RecordsLoaded    prometheus.Counter
	ParseErrors      prometheus.Counter
	RetrieveDuration prometheus.Histogram

	// Plot-data metrics.
	PlotRowsAssembled *prometheus.CounterVec // labels: type={point,quantile,truth}
	AssembleDuration  prometheus.Histogram
	RequestErrors     *prometheus.CounterVec // labels: kind={configuration,parse,availability,unsupported,internal}

	// External collaborators.
	MetadataRequests *prometheus.CounterVec // labels: kind={models,locations,targets}, outcome={success,error}
	MetadataCache    *prometheus.CounterVec // labels: kind, result={hit,miss}
	TruthRequests    *prometheus.CounterVec // labels: source, outcome={success,error}
	TruthCache       *prometheus.CounterVec // labels: result={hit,miss}
	RowsPublished    prometheus.Counter
	MetadataReady    prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates metrics registered with reg, for one-shot
// commands that do not serve /metrics.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics(true)

	reg.MustRegister(
		m.FilesLocated,
		m.RecordsLoaded,
		m.ParseErrors,
		m.RetrieveDuration,
		m.PlotRowsAssembled,
		m.AssembleDuration,
		m.RequestErrors,
		m.MetadataRequests,
		m.MetadataCache,
		m.TruthRequests,
		m.TruthCache,
		m.RowsPublished,
		m.MetadataReady,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		FilesLocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_located_total",
			Help:      help("Per-model submission lookups by outcome."),
		}, []string{"outcome"}),
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      help("Forecast records returned after filtering."),
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      help("Submission files rejected by the parser."),
		}),
		RetrieveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieve_duration_seconds",
			Help:      help("Duration of a multi-model forecast retrieval."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		PlotRowsAssembled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plot_rows_assembled_total",
			Help:      help("Plot rows produced by row type."),
		}, []string{"type"}),
		AssembleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assemble_duration_seconds",
			Help:      help("Duration of a complete plot-data request."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      help("Failed retrieval or plot requests by error kind."),
		}, []string{"kind"}),
		MetadataRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_requests_total",
			Help:      help("Metadata service requests by kind and outcome."),
		}, []string{"kind", "outcome"}),
		MetadataCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_cache_total",
			Help:      help("Metadata cache lookups by kind and result."),
		}, []string{"kind", "result"}),
		TruthRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "truth_requests_total",
			Help:      help("Truth data fetches by source and outcome."),
		}, []string{"source", "outcome"}),
		TruthCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "truth_cache_total",
			Help:      help("Truth cache lookups by result."),
		}, []string{"result"}),
		RowsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_published_total",
			Help:      help("Plot rows written to the plot-data topic."),
		}),
		MetadataReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metadata_ready",
			Help:      help("1 once canonical metadata has been loaded, 0 otherwise."),
		}),
	}
}
