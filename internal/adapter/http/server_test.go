package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/forecast-hub-etl/internal/adapter/http"
	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"github.com/couchcryptid/forecast-hub-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	readyErr error
	err      error

	forecastQuery pipeline.ForecastQuery
	plotQuery     pipeline.PlotQuery
	rows          []domain.ForecastRow
	plot          pipeline.PlotResult
}

func (m *mockService) CheckReadiness(_ context.Context) error { return m.readyErr }

func (m *mockService) Forecasts(_ context.Context, q pipeline.ForecastQuery) ([]domain.ForecastRow, error) {
	m.forecastQuery = q
	return m.rows, m.err
}

func (m *mockService) Plot(_ context.Context, q pipeline.PlotQuery) (pipeline.PlotResult, error) {
	m.plotQuery = q
	return m.plot, m.err
}

func newTestServer(svc *mockService) *httpadapter.Server {
	return httpadapter.NewServer(":0", svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func get(srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func day(s string) time.Time {
	d, _ := time.Parse(domain.DateLayout, s)
	return d
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(&mockService{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	assert.Equal(t, http.StatusOK, get(newTestServer(&mockService{}), "/readyz").Code)

	rec := get(newTestServer(&mockService{readyErr: fmt.Errorf("metadata has not been loaded yet")}), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(&mockService{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestForecasts_ParsesQuery(t *testing.T) {
	svc := &mockService{rows: []domain.ForecastRow{{ForecastRecord: domain.ForecastRecord{Model: "modelA", Location: "US"}}}}
	rec := get(newTestServer(svc),
		"/v1/forecasts?model=modelA,modelB&model=modelC&location=US&type=point&target=1+wk+ahead+inc+death&last_forecast_date=2021-01-11&window_days=13")

	require.Equal(t, http.StatusOK, rec.Code)
	q := svc.forecastQuery
	assert.Equal(t, []string{"modelA", "modelB", "modelC"}, q.Models)
	assert.Equal(t, []string{"US"}, q.Locations)
	assert.Equal(t, []domain.ForecastType{domain.TypePoint}, q.Types)
	assert.Equal(t, []string{"1 wk ahead inc death"}, q.Targets)
	assert.Equal(t, day("2021-01-11"), q.LastForecastDate)
	require.NotNil(t, q.WindowDays)
	assert.Equal(t, 13, *q.WindowDays)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestPlotData_ParsesQuery(t *testing.T) {
	svc := &mockService{plot: pipeline.PlotResult{Palette: domain.Palette{Strategy: "single_hue"}}}
	rec := get(newTestServer(svc),
		"/v1/plot-data?target_variable=incident_deaths&interval=0.5,0.95&horizon=1&horizon=2&truth=true&truth_source=nytimes&truth_as_of=2021-01-18&fill_by_model=1&forecast_date=2021-01-11")

	require.Equal(t, http.StatusOK, rec.Code)
	q := svc.plotQuery
	assert.Equal(t, domain.IncidentDeaths, q.TargetVariable)
	assert.Equal(t, []float64{0.5, 0.95}, q.Intervals)
	assert.Equal(t, []int{1, 2}, q.Horizons)
	assert.True(t, q.IncludeTruth)
	assert.True(t, q.FillByModel)
	assert.False(t, q.Publish)
	assert.Equal(t, domain.TruthNYTimes, q.TruthSource)
	require.NotNil(t, q.TruthAsOf)
	assert.Equal(t, day("2021-01-18"), *q.TruthAsOf)
	assert.Equal(t, []time.Time{day("2021-01-11")}, q.ForecastDates)
	assert.Contains(t, rec.Body.String(), `"strategy":"single_hue"`)
}

func TestBadParametersReturn400(t *testing.T) {
	for _, target := range []string{
		"/v1/forecasts?window_days=-2",
		"/v1/forecasts?last_forecast_date=01/11/2021",
		"/v1/plot-data?target_variable=recoveries",
		"/v1/plot-data?target_variable=inc+death&interval=wide",
		"/v1/plot-data?target_variable=inc+death&truth=sometimes",
		"/v1/plot-data?target_variable=inc+death&truth_source=CDC",
	} {
		t.Run(target, func(t *testing.T) {
			rec := get(newTestServer(&mockService{}), target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"kind":"configuration"`)
		})
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"configuration", fmt.Errorf("validate request: %w", &domain.ConfigurationError{Field: "models", Reason: "unknown models"}), http.StatusBadRequest},
		{"availability", &domain.DataAvailabilityError{Reason: "no forecasts"}, http.StatusNotFound},
		{"parse", fmt.Errorf("load modelA: %w", &domain.ParseError{File: "f.csv", Row: 3, Err: errors.New("bad value")}), http.StatusUnprocessableEntity},
		{"unsupported", domain.ErrTruthAsOfUnsupported, http.StatusNotImplemented},
		{"internal", errors.New("metadata models: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(newTestServer(&mockService{err: tt.err}), "/v1/plot-data?target_variable=inc+death")
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.name, body["kind"])
			if tt.name == "internal" {
				assert.NotContains(t, body["error"], "connection refused")
			}
		})
	}
}
