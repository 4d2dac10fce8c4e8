// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the generator, the table store and the registry backends.
package port

import (
	"context"

	"github.com/boddenberg/txsim-bench-go/internal/domain"
)

// DatasetGenerator builds a complete labelled dataset.
type DatasetGenerator interface {
	Generate(ctx context.Context, p domain.GenerationParams) (*domain.Dataset, error)
}

// TableStore persists generated tables under a dataset name.
type TableStore interface {
	Save(name string, ds *domain.Dataset) (string, error)
	Exists(name string) bool
	Path(name, table string) string
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
