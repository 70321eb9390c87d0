package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conceptforge/internal/domain"
)

// PrototypeRepositoryPG implements domain.PrototypeRepository using PostgreSQL.
type PrototypeRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPrototypeRepository constructs a prototype repository.
func NewPrototypeRepository(pool *pgxpool.Pool) *PrototypeRepositoryPG {
	return &PrototypeRepositoryPG{pool: pool}
}

// CreatePrototype inserts a new prototype record. The source image reference
// is enforced by a foreign key at write time.
func (r *PrototypeRepositoryPG) CreatePrototype(ctx context.Context, proto *domain.Prototype) error {
	query := `
INSERT INTO prototypes (id, source_image_id, name, gif_url, obj_url, status)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err := r.pool.Exec(ctx, query,
		proto.ID,
		proto.SourceImageID,
		proto.Name,
		proto.GifURL,
		proto.ObjURL,
		proto.Status,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: source image %s does not exist", domain.ErrValidation, proto.SourceImageID)
		}
		return err
	}
	return nil
}

// GetPrototype fetches a prototype by id.
func (r *PrototypeRepositoryPG) GetPrototype(ctx context.Context, id string) (*domain.Prototype, error) {
	query := `
SELECT id, source_image_id, name, gif_url, obj_url, status, created_at
FROM prototypes
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var proto domain.Prototype
	if err := row.Scan(&proto.ID, &proto.SourceImageID, &proto.Name, &proto.GifURL, &proto.ObjURL, &proto.Status, &proto.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: prototype %s", domain.ErrNotFound, id)
		}
		return nil, err
	}
	return &proto, nil
}

// ListPrototypes returns prototypes, most recent first, optionally filtered
// by status.
func (r *PrototypeRepositoryPG) ListPrototypes(ctx context.Context, status domain.AssetStatus, limit, offset int) ([]domain.Prototype, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
SELECT id, source_image_id, name, gif_url, obj_url, status, created_at
FROM prototypes
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;
`
	rows, err := r.pool.Query(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prototypes []domain.Prototype
	for rows.Next() {
		var proto domain.Prototype
		if err := rows.Scan(&proto.ID, &proto.SourceImageID, &proto.Name, &proto.GifURL, &proto.ObjURL, &proto.Status, &proto.CreatedAt); err != nil {
			return nil, err
		}
		prototypes = append(prototypes, proto)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return prototypes, nil
}
