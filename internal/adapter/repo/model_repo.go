package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conceptforge/internal/domain"
)

// ModelRepositoryPG implements domain.ModelRepository using PostgreSQL.
type ModelRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewModelRepository constructs a final model repository.
func NewModelRepository(pool *pgxpool.Pool) *ModelRepositoryPG {
	return &ModelRepositoryPG{pool: pool}
}

// saveModelSQL records the materialized model once; repeated saves for the
// same gallery item are no-ops.
const saveModelSQL = `
INSERT INTO final_models (gallery_item_id, obj_url, fbx_url, texture_url)
VALUES ($1, $2, $3, $4)
ON CONFLICT (gallery_item_id) DO NOTHING;
`

// SaveModel inserts the final model record. Repeated saves for the same
// gallery item are no-ops so a retried materialization cannot clobber the
// first write.
func (r *ModelRepositoryPG) SaveModel(ctx context.Context, model *domain.FinalModel) error {
	_, err := r.pool.Exec(ctx, saveModelSQL,
		model.GalleryItemID,
		model.ObjURL,
		model.FbxURL,
		model.TextureURL,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: gallery item %s does not exist", domain.ErrValidation, model.GalleryItemID)
		}
		return err
	}
	return nil
}

// GetModel fetches the final model for a gallery item.
func (r *ModelRepositoryPG) GetModel(ctx context.Context, galleryItemID string) (*domain.FinalModel, error) {
	query := `
SELECT gallery_item_id, obj_url, fbx_url, texture_url, created_at
FROM final_models
WHERE gallery_item_id = $1;
`
	row := r.pool.QueryRow(ctx, query, galleryItemID)
	var model domain.FinalModel
	if err := row.Scan(&model.GalleryItemID, &model.ObjURL, &model.FbxURL, &model.TextureURL, &model.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: final model for gallery item %s", domain.ErrNotFound, galleryItemID)
		}
		return nil, err
	}
	return &model, nil
}

// ListModels returns final models, most recent first.
func (r *ModelRepositoryPG) ListModels(ctx context.Context, limit, offset int) ([]domain.FinalModel, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
SELECT gallery_item_id, obj_url, fbx_url, texture_url, created_at
FROM final_models
ORDER BY created_at DESC
LIMIT $1 OFFSET $2;
`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []domain.FinalModel
	for rows.Next() {
		var model domain.FinalModel
		if err := rows.Scan(&model.GalleryItemID, &model.ObjURL, &model.FbxURL, &model.TextureURL, &model.CreatedAt); err != nil {
			return nil, err
		}
		models = append(models, model)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}
