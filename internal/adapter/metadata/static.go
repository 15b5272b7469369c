package metadata

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

// File is the YAML layout of a static metadata file:
//
//	models: [COVIDhub-ensemble, COVIDhub-baseline]
//	targets: ["1 wk ahead inc death"]
//	locations:
//	  - {code: US, name: United States, population: 332875137, geo_type: nation, geo_value: us}
type File struct {
	Models    []string                    `yaml:"models"`
	Targets   []string                    `yaml:"targets"`
	Locations []domain.LocationAttributes `yaml:"locations"`
}

// Static serves metadata from memory, typically loaded from a YAML file for
// offline use or tests.
type Static struct {
	file File
}

// NewStatic wraps already-loaded metadata.
func NewStatic(f File) *Static {
	return &Static{file: f}
}

// LoadFile reads and validates a YAML metadata file.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse metadata file %s: %w", path, err)
	}
	if len(f.Models) == 0 || len(f.Targets) == 0 || len(f.Locations) == 0 {
		return nil, fmt.Errorf("metadata file %s: models, targets and locations are all required", path)
	}
	return NewStatic(f), nil
}

func (s *Static) Models(context.Context) ([]string, error) {
	return slices.Clone(s.file.Models), nil
}

func (s *Static) Locations(context.Context) ([]domain.LocationAttributes, error) {
	return slices.Clone(s.file.Locations), nil
}

func (s *Static) Targets(context.Context) ([]string, error) {
	return slices.Clone(s.file.Targets), nil
}
