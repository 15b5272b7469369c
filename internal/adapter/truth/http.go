package truth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/couchcryptid/forecast-hub-etl/internal/observability"
	"github.com/sony/gobreaker"
)

// HTTPSource fetches truth tables from a base URL such as a raw GitHub
// checkout of the hub.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewHTTPSource creates a truth source rooted at baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "truth",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			// A missing table is an answer, not an outage.
			IsSuccessful: func(err error) bool {
				var dae *domain.DataAvailabilityError
				return err == nil || errors.As(err, &dae)
			},
		}),
		metrics: metrics,
		logger:  logger,
	}
}

// Truth implements domain.TruthProvider.
func (s *HTTPSource) Truth(ctx context.Context, source domain.TruthSource, target domain.TargetVariable) ([]domain.TruthRecord, error) {
	rel, err := RelPath(source, target)
	if err != nil {
		return nil, err
	}

	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetch(ctx, rel, target)
	})
	if err != nil {
		s.metrics.TruthRequests.WithLabelValues(string(source), "error").Inc()
		return nil, fmt.Errorf("truth %s: %w", source, err)
	}
	s.metrics.TruthRequests.WithLabelValues(string(source), "success").Inc()
	return res.([]domain.TruthRecord), nil
}

func (s *HTTPSource) fetch(ctx context.Context, rel string, target domain.TargetVariable) ([]domain.TruthRecord, error) {
	segments := strings.Split(rel, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	u := s.baseURL + "/" + strings.Join(segments, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &domain.DataAvailabilityError{Reason: fmt.Sprintf("no truth table at %s", rel)}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("truth server error: status %d: %s", resp.StatusCode, body)
	}

	records, err := Decode(resp.Body, rel, target)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("truth fetched", "path", rel, "rows", len(records), "duration", time.Since(start))
	return records, nil
}
