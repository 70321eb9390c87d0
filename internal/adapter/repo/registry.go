package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"conceptforge/internal/domain"
)

// Registry bundles the PostgreSQL repositories behind domain.Registry.
type Registry struct {
	*ImageRepositoryPG
	*PrototypeRepositoryPG
	*GalleryRepositoryPG
	*JobRepositoryPG
	*ModelRepositoryPG
}

// NewRegistry constructs all repositories over one connection pool.
func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{
		ImageRepositoryPG:     NewImageRepository(pool),
		PrototypeRepositoryPG: NewPrototypeRepository(pool),
		GalleryRepositoryPG:   NewGalleryRepository(pool),
		JobRepositoryPG:       NewJobRepository(pool),
		ModelRepositoryPG:     NewModelRepository(pool),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

var _ domain.Registry = (*Registry)(nil)
