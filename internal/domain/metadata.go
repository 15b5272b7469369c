package domain

import (
	"context"
	"fmt"
)

// MetadataProvider supplies the canonical models, locations, and targets.
type MetadataProvider interface {
	Models(ctx context.Context) ([]string, error)
	Locations(ctx context.Context) ([]LocationAttributes, error)
	Targets(ctx context.Context) ([]string, error)
}

// LoadCatalog fetches all canonical sets from p.
func LoadCatalog(ctx context.Context, p MetadataProvider) (Catalog, error) {
	models, err := p.Models(ctx)
	if err != nil {
		return Catalog{}, fmt.Errorf("load models: %w", err)
	}
	locations, err := p.Locations(ctx)
	if err != nil {
		return Catalog{}, fmt.Errorf("load locations: %w", err)
	}
	targets, err := p.Targets(ctx)
	if err != nil {
		return Catalog{}, fmt.Errorf("load targets: %w", err)
	}
	return Catalog{Models: models, Locations: locations, Targets: targets}, nil
}

// TruthProvider supplies observed data for one target variable from a source.
type TruthProvider interface {
	Truth(ctx context.Context, source TruthSource, target TargetVariable) ([]TruthRecord, error)
}
