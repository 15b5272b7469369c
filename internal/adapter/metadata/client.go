package metadata

import (
	"context"
	"encoding/json"
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
	"golang.org/x/time/rate"
)

// ClientOptions configures a metadata service client.
type ClientOptions struct {
	BaseURL   string
	Project   string
	Token     string
	Timeout   time.Duration
	RateLimit float64 // requests per second; 0 disables pacing
}

// Client implements domain.MetadataProvider against a Zoltar-style REST API.
// The token is passed through unchanged; the client does no authentication
// of its own.
type Client struct {
	baseURL    string
	project    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a metadata client.
func NewClient(opts ClientOptions, metrics *observability.Metrics, logger *slog.Logger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		project:    opts.Project,
		token:      opts.Token,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    limiter,
		breaker:    newBreaker("metadata"),
		metrics:    metrics,
		logger:     logger,
	}
}

// newBreaker opens after three consecutive failures and probes again after 30s.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

type modelResponse struct {
	Abbreviation string `json:"abbreviation"`
}

type unitResponse struct {
	Abbreviation string         `json:"abbreviation"`
	Name         string         `json:"name"`
	Population   int64          `json:"population"`
	GeoType      domain.GeoType `json:"geo_type"`
	GeoValue     string         `json:"geo_value"`
	StateAbbr    string         `json:"state_abbreviation"`
}

type targetResponse struct {
	Name string `json:"name"`
}

// Models returns the abbreviations of all models in the project.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	var resp []modelResponse
	if err := c.get(ctx, "models", &resp); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp))
	for _, m := range resp {
		out = append(out, m.Abbreviation)
	}
	return out, nil
}

// Locations returns every unit with its attributes.
func (c *Client) Locations(ctx context.Context) ([]domain.LocationAttributes, error) {
	var resp []unitResponse
	if err := c.get(ctx, "units", &resp); err != nil {
		return nil, err
	}
	out := make([]domain.LocationAttributes, 0, len(resp))
	for _, u := range resp {
		out = append(out, domain.LocationAttributes{
			Code:         u.Abbreviation,
			Name:         u.Name,
			Population:   u.Population,
			GeoType:      u.GeoType,
			GeoValue:     u.GeoValue,
			Abbreviation: u.StateAbbr,
		})
	}
	return out, nil
}

// Targets returns the target names, e.g. "1 wk ahead inc death".
func (c *Client) Targets(ctx context.Context) ([]string, error) {
	var resp []targetResponse
	if err := c.get(ctx, "targets", &resp); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp))
	for _, t := range resp {
		out = append(out, t.Name)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, kind string, v any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, kind, v)
	})
	if err != nil {
		c.metrics.MetadataRequests.WithLabelValues(kind, "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) {
			c.logger.Warn("metadata circuit open", "kind", kind)
		}
		return fmt.Errorf("metadata %s: %w", kind, err)
	}
	c.metrics.MetadataRequests.WithLabelValues(kind, "success").Inc()
	return nil
}

func (c *Client) do(ctx context.Context, kind string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := fmt.Sprintf("%s/api/project/%s/%s/", c.baseURL, url.PathEscape(c.project), kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "JWT "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("metadata API error: status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	c.logger.Debug("metadata fetched", "kind", kind, "duration", time.Since(start))
	return nil
}
