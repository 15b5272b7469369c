package truth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/forecast-hub-etl/internal/domain"
)

// DirSource reads truth tables from a local hub checkout.
type DirSource struct {
	root string
}

// NewDirSource creates a truth source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: filepath.Clean(dir)}
}

// Truth implements domain.TruthProvider.
func (s *DirSource) Truth(_ context.Context, source domain.TruthSource, target domain.TargetVariable) ([]domain.TruthRecord, error) {
	rel, err := RelPath(source, target)
	if err != nil {
		return nil, err
	}
	p := filepath.Join(s.root, filepath.FromSlash(rel))

	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.DataAvailabilityError{Reason: fmt.Sprintf("no truth table at %s", p)}
	}
	if err != nil {
		return nil, fmt.Errorf("open truth table: %w", err)
	}
	defer f.Close()

	return Decode(f, p, target)
}
