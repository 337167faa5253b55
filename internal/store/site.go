package store

import (
	"context"
	"time"

	"github.com/bluecarbon-mrv/portal/types"
	"github.com/google/uuid"
)

// SiteRepository handles persistence for restoration sites.
type SiteRepository struct {
	db DBTX
}

func NewSiteRepository(db DBTX) *SiteRepository {
	return &SiteRepository{db: db}
}

const siteColumns = `id, field_worker_id, latitude, longitude, plantation_type, area, uploaded_image_url,
		       date_of_plantation, ndvi_avg, carbon_estimate_tonnes, created_at, updated_at`

// List returns sites newest first together with the total count.
func (r *SiteRepository) List(ctx context.Context, offset, limit int) ([]types.Site, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM sites`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT ` + siteColumns + `
		FROM sites
		ORDER BY created_at DESC
		OFFSET $1 LIMIT $2`
	sites, err := r.query(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return sites, total, nil
}

func (r *SiteRepository) ListByFieldWorker(ctx context.Context, fieldWorkerID string) ([]types.Site, error) {
	const query = `
		SELECT ` + siteColumns + `
		FROM sites
		WHERE field_worker_id = $1
		ORDER BY created_at DESC`
	return r.query(ctx, query, fieldWorkerID)
}

func (r *SiteRepository) Create(ctx context.Context, site types.Site) (types.Site, error) {
	now := time.Now()
	site.ID = uuid.NewString()
	site.CreatedAt = now
	site.UpdatedAt = now

	const query = `
		INSERT INTO sites (
			id, field_worker_id, latitude, longitude, plantation_type, area,
			uploaded_image_url, date_of_plantation, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		site.ID,
		site.FieldWorkerID,
		site.Latitude,
		site.Longitude,
		site.PlantationType,
		site.Area,
		site.UploadedImageURL,
		site.DateOfPlantation,
		site.CreatedAt,
		site.UpdatedAt,
	); err != nil {
		return types.Site{}, err
	}
	return site, nil
}

func (r *SiteRepository) query(ctx context.Context, query string, args ...any) ([]types.Site, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sites := make([]types.Site, 0)
	for rows.Next() {
		var site types.Site
		if err := rows.Scan(
			&site.ID,
			&site.FieldWorkerID,
			&site.Latitude,
			&site.Longitude,
			&site.PlantationType,
			&site.Area,
			&site.UploadedImageURL,
			&site.DateOfPlantation,
			&site.NDVIAvg,
			&site.CarbonEstimateTonnes,
			&site.CreatedAt,
			&site.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sites, nil
}
