package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conceptforge/internal/domain"
)

// GalleryRepositoryPG implements domain.GalleryRepository using PostgreSQL.
type GalleryRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewGalleryRepository constructs a gallery repository.
func NewGalleryRepository(pool *pgxpool.Pool) *GalleryRepositoryPG {
	return &GalleryRepositoryPG{pool: pool}
}

// CreateItem inserts a gallery item. A unique index on
// (prototype_id, asset_type) turns a duplicate save into ErrConflict.
func (r *GalleryRepositoryPG) CreateItem(ctx context.Context, item *domain.GalleryItem) error {
	query := `
INSERT INTO gallery_items (id, prototype_id, name, asset_type, status, gif_url)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err := r.pool.Exec(ctx, query,
		item.ID,
		item.PrototypeID,
		item.Name,
		item.AssetType,
		item.Status,
		item.GifURL,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: prototype %s is already in the gallery", domain.ErrConflict, item.PrototypeID)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: prototype %s does not exist", domain.ErrValidation, item.PrototypeID)
		}
		return err
	}
	return nil
}

// GetItem fetches a gallery item by id.
func (r *GalleryRepositoryPG) GetItem(ctx context.Context, id string) (*domain.GalleryItem, error) {
	query := `
SELECT id, prototype_id, name, asset_type, status, gif_url, created_at
FROM gallery_items
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var item domain.GalleryItem
	if err := row.Scan(&item.ID, &item.PrototypeID, &item.Name, &item.AssetType, &item.Status, &item.GifURL, &item.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: gallery item %s", domain.ErrNotFound, id)
		}
		return nil, err
	}
	return &item, nil
}

// ListItems returns gallery items, most recent first, filtered by asset type
// and status when provided.
func (r *GalleryRepositoryPG) ListItems(ctx context.Context, filter domain.GalleryFilter) ([]domain.GalleryItem, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
SELECT id, prototype_id, name, asset_type, status, gif_url, created_at
FROM gallery_items
WHERE ($1 = '' OR asset_type = $1)
  AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4;
`
	rows, err := r.pool.Query(ctx, query, string(filter.AssetType), string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.GalleryItem
	for rows.Next() {
		var item domain.GalleryItem
		if err := rows.Scan(&item.ID, &item.PrototypeID, &item.Name, &item.AssetType, &item.Status, &item.GifURL, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteItem removes a gallery item. The underlying prototype and concept
// image are not cascaded.
func (r *GalleryRepositoryPG) DeleteItem(ctx context.Context, id string) error {
	query := `
DELETE FROM gallery_items
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: gallery item %s", domain.ErrNotFound, id)
	}
	return nil
}

// Stats aggregates gallery contents by asset type and status.
func (r *GalleryRepositoryPG) Stats(ctx context.Context) (*domain.GalleryStats, error) {
	query := `
SELECT asset_type, status, COUNT(*)
FROM gallery_items
GROUP BY asset_type, status;
`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &domain.GalleryStats{
		ByType:   make(map[string]int),
		ByStatus: make(map[string]int),
	}
	for rows.Next() {
		var assetType, status string
		var count int
		if err := rows.Scan(&assetType, &status, &count); err != nil {
			return nil, err
		}
		stats.TotalItems += count
		stats.ByType[assetType] += count
		stats.ByStatus[status] += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}
