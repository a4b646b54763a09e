package data

import (
	"context"
	"time"

	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/model"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UploadRepository struct {
	db *pgxpool.Pool
}

func NewUploadRepository(db *pgxpool.Pool) *UploadRepository {
	return &UploadRepository{db: db}
}

func (r *UploadRepository) CreateUpload(ctx context.Context, input *model.RepositoryCreateUploadInput) (*model.Upload, error) {
	query := `
INSERT INTO uploads (
 id, extension, device_id, filename, size_bytes, delete_after
)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, extension, device_id, filename, size_bytes, created_at, delete_after
`
	var upload model.Upload
	err := pgxscan.Get(ctx, r.db, &upload, query,
		input.Id,
		input.Extension,
		input.DeviceId,
		input.Filename,
		input.SizeBytes,
		input.DeleteAfter,
	)
	if err != nil {
		return nil, handleError(err)
	}
	return &upload, nil
}

func (r *UploadRepository) GetUpload(ctx context.Context, uploadId uuid.UUID) (*model.Upload, error) {
	query := `
SELECT id, extension, device_id, filename, size_bytes, created_at, delete_after
FROM uploads
WHERE id = $1
`
	var upload model.Upload
	err := pgxscan.Get(ctx, r.db, &upload, query, uploadId)
	if err != nil {
		return nil, handleError(err)
	}
	return &upload, nil
}

func (r *UploadRepository) DeleteUpload(ctx context.Context, uploadId uuid.UUID) error {
	query := `DELETE FROM uploads WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, uploadId)
	if err != nil {
		return handleError(err)
	}
	if tag.RowsAffected() == 0 {
		return handleError(errNoRows)
	}
	return nil
}

// FindExpired returns uploads whose delete_after has passed.
func (r *UploadRepository) FindExpired(ctx context.Context, now time.Time) ([]*model.Upload, error) {
	query := `
SELECT id, extension, device_id, filename, size_bytes, created_at, delete_after
FROM uploads
WHERE delete_after <= $1
ORDER BY delete_after
`
	var uploads []*model.Upload
	if err := pgxscan.Select(ctx, r.db, &uploads, query, now); err != nil {
		return nil, handleError(err)
	}
	return uploads, nil
}
