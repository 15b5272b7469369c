package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() Catalog {
	return Catalog{
		Models: []string{"COVIDhub-ensemble", "COVIDhub-baseline", "modelA"},
		Locations: []LocationAttributes{
			{Code: "US", Name: "United States", GeoType: GeoNation},
			{Code: "06", Name: "California", GeoType: GeoState, Abbreviation: "CA"},
		},
		Targets: []string{"1 wk ahead inc death", "2 wk ahead cum death"},
	}
}

func TestForecastDateWindow(t *testing.T) {
	dates := ForecastDateWindow(jan11, 7)

	require.Len(t, dates, 8)
	assert.Equal(t, jan04, dates[0])
	assert.Equal(t, jan11, dates[7])
	for i := 1; i < len(dates); i++ {
		assert.True(t, dates[i-1].Before(dates[i]))
	}
}

func TestForecastDateWindow_DefaultsToToday(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2021, time.January, 11, 17, 45, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	dates := ForecastDateWindow(time.Time{}, 1)
	assert.Equal(t, []time.Time{jan11.AddDate(0, 0, -1), jan11}, dates)
}

func TestValidateRetrieveRequest_Defaults(t *testing.T) {
	req, err := ValidateRetrieveRequest(RetrieveRequest{
		RootDir:       t.TempDir(),
		ForecastDates: []time.Time{jan04},
	}, testCatalog())
	require.NoError(t, err)

	assert.Equal(t, []string{"COVIDhub-ensemble", "COVIDhub-baseline", "modelA"}, req.Models)
	assert.Equal(t, []string{"US", "06"}, req.Locations)
	assert.Equal(t, []ForecastType{TypePoint, TypeQuantile}, req.Types)
	assert.Equal(t, []string{"1 wk ahead inc death", "2 wk ahead cum death"}, req.Targets)
}

func TestValidateRetrieveRequest_NormalizesTypesAndTargets(t *testing.T) {
	req, err := ValidateRetrieveRequest(RetrieveRequest{
		RootDir:       t.TempDir(),
		ForecastDates: []time.Time{jan04},
		Types:         []ForecastType{"Quantile"},
		Targets:       []string{"1 WK ahead Inc Death"},
	}, testCatalog())
	require.NoError(t, err)

	assert.Equal(t, []ForecastType{TypeQuantile}, req.Types)
	assert.Equal(t, []string{"1 wk ahead inc death"}, req.Targets)
}

func TestValidateRetrieveRequest_DropsRepeatedValues(t *testing.T) {
	req, err := ValidateRetrieveRequest(RetrieveRequest{
		RootDir:       t.TempDir(),
		ForecastDates: []time.Time{jan04},
		Models:        []string{"modelA", "COVIDhub-baseline", "modelA"},
		Locations:     []string{"06", "06", "US"},
		Types:         []ForecastType{"point", "POINT"},
		Targets:       []string{"1 wk ahead inc death", "1 WK ahead inc death"},
	}, testCatalog())
	require.NoError(t, err)

	assert.Equal(t, []string{"modelA", "COVIDhub-baseline"}, req.Models)
	assert.Equal(t, []string{"06", "US"}, req.Locations)
	assert.Equal(t, []ForecastType{TypePoint}, req.Types)
	assert.Equal(t, []string{"1 wk ahead inc death"}, req.Targets)
}

func TestValidateRetrieveRequest_ReportsEveryBadField(t *testing.T) {
	_, err := ValidateRetrieveRequest(RetrieveRequest{
		RootDir:       t.TempDir(),
		ForecastDates: []time.Time{jan04},
		Models:        []string{"modelA", "ghost", "ghost", "phantom"},
		Locations:     []string{"US", "99"},
		Types:         []ForecastType{"sample"},
		Targets:       []string{"9 wk ahead inc flu"},
	}, testCatalog())
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "models", cfgErr.Field)
	assert.Equal(t, []string{"ghost", "phantom"}, cfgErr.Values)

	msg := err.Error()
	assert.Contains(t, msg, "unknown locations: 99")
	assert.Contains(t, msg, "sample")
	assert.Contains(t, msg, "9 wk ahead inc flu")
}

func TestValidateRetrieveRequest_MissingRootDir(t *testing.T) {
	_, err := ValidateRetrieveRequest(RetrieveRequest{
		RootDir:       "/nonexistent/forecast-hub",
		ForecastDates: []time.Time{jan04},
	}, testCatalog())

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "root_dir", cfgErr.Field)
	assert.Equal(t, []string{"/nonexistent/forecast-hub"}, cfgErr.Values)
}

func TestValidateRetrieveRequest_NoDates(t *testing.T) {
	_, err := ValidateRetrieveRequest(RetrieveRequest{RootDir: t.TempDir()}, testCatalog())

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "forecast_dates", cfgErr.Field)
}

func TestCatalog_LocationIndex(t *testing.T) {
	idx := testCatalog().LocationIndex()
	assert.Equal(t, "California", idx["06"].Name)
	_, ok := idx["48"]
	assert.False(t, ok)
}
