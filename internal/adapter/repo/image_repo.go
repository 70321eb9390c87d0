package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conceptforge/internal/domain"
)

// ImageRepositoryPG implements domain.ImageRepository using PostgreSQL.
type ImageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewImageRepository constructs a concept image repository.
func NewImageRepository(pool *pgxpool.Pool) *ImageRepositoryPG {
	return &ImageRepositoryPG{pool: pool}
}

// CreateImage inserts a new concept image record.
func (r *ImageRepositoryPG) CreateImage(ctx context.Context, img *domain.ConceptImage) error {
	query := `
INSERT INTO concept_images (id, prompt, refinement_notes, parent_image_id, image_url, name)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6);
`
	_, err := r.pool.Exec(ctx, query,
		img.ID,
		img.Prompt,
		img.RefinementNotes,
		img.ParentImageID,
		img.ImageURL,
		img.Name,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: parent image %s does not exist", domain.ErrValidation, img.ParentImageID)
		}
		return err
	}
	return nil
}

// GetImage fetches a concept image by id.
func (r *ImageRepositoryPG) GetImage(ctx context.Context, id string) (*domain.ConceptImage, error) {
	query := `
SELECT id, prompt, COALESCE(refinement_notes, ''), COALESCE(parent_image_id, ''), image_url, name, created_at
FROM concept_images
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var img domain.ConceptImage
	if err := row.Scan(
		&img.ID,
		&img.Prompt,
		&img.RefinementNotes,
		&img.ParentImageID,
		&img.ImageURL,
		&img.Name,
		&img.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: image %s", domain.ErrNotFound, id)
		}
		return nil, err
	}
	return &img, nil
}

// ListImages returns concept images, most recent first.
func (r *ImageRepositoryPG) ListImages(ctx context.Context, limit, offset int) ([]domain.ConceptImage, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
SELECT id, prompt, COALESCE(refinement_notes, ''), COALESCE(parent_image_id, ''), image_url, name, created_at
FROM concept_images
ORDER BY created_at DESC
LIMIT $1 OFFSET $2;
`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []domain.ConceptImage
	for rows.Next() {
		var img domain.ConceptImage
		if err := rows.Scan(&img.ID, &img.Prompt, &img.RefinementNotes, &img.ParentImageID, &img.ImageURL, &img.Name, &img.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return images, nil
}

// ListImagesByParent returns the direct refinements of an image, oldest
// first, for lineage walks.
func (r *ImageRepositoryPG) ListImagesByParent(ctx context.Context, parentID string) ([]domain.ConceptImage, error) {
	query := `
SELECT id, prompt, COALESCE(refinement_notes, ''), COALESCE(parent_image_id, ''), image_url, name, created_at
FROM concept_images
WHERE parent_image_id = $1
ORDER BY created_at ASC;
`
	rows, err := r.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []domain.ConceptImage
	for rows.Next() {
		var img domain.ConceptImage
		if err := rows.Scan(&img.ID, &img.Prompt, &img.RefinementNotes, &img.ParentImageID, &img.ImageURL, &img.Name, &img.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return images, nil
}
