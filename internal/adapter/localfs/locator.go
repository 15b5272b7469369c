package localfs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
)

// DefaultExt is the submission file extension.
const DefaultExt = "csv"

// Locator finds the submission file a model made inside a date window.
type Locator struct {
	ext string
}

// NewLocator creates a Locator for files with the given extension (without the dot).
func NewLocator(ext string) *Locator {
	if ext == "" {
		ext = DefaultExt
	}
	return &Locator{ext: ext}
}

// Path builds the conventional path <root>/<model>/<date>-<model>.<ext>.
// Trailing separators on root are collapsed.
func (l *Locator) Path(root, model string, date time.Time) string {
	name := date.Format(domain.DateLayout) + "-" + model + "." + l.ext
	return filepath.Join(filepath.Clean(root), model, name)
}

// Candidates returns one path per date, in the order given.
func (l *Locator) Candidates(root, model string, dates []time.Time) []string {
	paths := make([]string, len(dates))
	for i, d := range dates {
		paths[i] = l.Path(root, model, d)
	}
	return paths
}

// Locate returns the last existing candidate for dates, which callers pass in
// ascending order, so the result is the most recent submission. ok is false
// when the model submitted nothing in the window.
func (l *Locator) Locate(root, model string, dates []time.Time) (path string, ok bool) {
	for _, candidate := range l.Candidates(root, model, dates) {
		if fileExists(candidate) {
			path, ok = candidate, true
		}
	}
	return path, ok
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
