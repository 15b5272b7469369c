package localfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
)

// Submission is a file that follows the naming convention.
type Submission struct {
	Model        string
	ForecastDate time.Time
	Path         string
}

// Discover lists every conventionally named submission under root, sorted by
// model then forecast date. Files that do not match <date>-<model>.<ext> are
// ignored.
func (l *Locator) Discover(root string) ([]Submission, error) {
	root = filepath.Clean(root)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read hub directory: %w", err)
	}

	var subs []Submission
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		model := e.Name()
		files, err := os.ReadDir(filepath.Join(root, model))
		if err != nil {
			return nil, fmt.Errorf("read model directory %s: %w", model, err)
		}
		suffix := "-" + model + "." + l.ext
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || !strings.HasSuffix(name, suffix) {
				continue
			}
			date, err := time.Parse(domain.DateLayout, strings.TrimSuffix(name, suffix))
			if err != nil {
				continue
			}
			subs = append(subs, Submission{Model: model, ForecastDate: date, Path: filepath.Join(root, model, name)})
		}
	}

	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Model != subs[j].Model {
			return subs[i].Model < subs[j].Model
		}
		return subs[i].ForecastDate.Before(subs[j].ForecastDate)
	})
	return subs, nil
}
