// Package domain models forecast hub submissions and the chart-ready data
// assembled from them.
//
// # Data Source
//
// Teams submit one CSV per model and forecast date into a shared directory
// tree:
//
//	<root>/<model>/<YYYY-MM-DD>-<model>.csv
//
// A model may submit several times inside a week; only the most recent file
// inside the requested window is used.
//
// # Submission Conventions
//
// Columns:
//
//	forecast_date, target, target_end_date, location, type, quantile, value
//
// Compound targets:
//
//	"<horizon> <resolution> ahead <variable>"  →  e.g. "2 wk ahead cum death"
//	Resolution is "wk" or "day". The variable is one of "cum death",
//	"inc case", "inc death" or "inc hosp" and may span several words.
//	Parsed by [ParseTarget]; anything else is a [ParseError].
//
// Types:
//
//	"point" rows carry a single value and a blank quantile.
//	"quantile" rows carry a level in (0, 1). Case is ignored.
//
// Locations:
//
//	FIPS-style codes: "US" for the nation, two digits for states,
//	five digits for counties. Attributes come from the metadata provider.
//
// # Prediction Intervals
//
// A central interval at level L is drawn between the quantiles 0.5 - L/2 and
// 0.5 + L/2, so the 95% band uses 0.025 and 0.975. Levels are derived in
// decimal arithmetic so they compare exactly with the levels in files.
//
// # Palettes
//
// Colors come from ColorBrewer ramps. Without per-model fills every model
// shares the Blues ramp; with them, up to five models get Blues, Oranges,
// Greens, Purples and Reds, and more models share an interpolated Dark2
// palette with translucent bands.
package domain
