package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bluecarbon-mrv/portal/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// NGORepository handles persistence for NGO registrations.
type NGORepository struct {
	db DBTX
}

func NewNGORepository(db DBTX) *NGORepository {
	return &NGORepository{db: db}
}

// ExistsForFieldWorker reports whether the field worker already registered an NGO.
func (r *NGORepository) ExistsForFieldWorker(ctx context.Context, fieldWorkerID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM ngos WHERE field_worker_id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, fieldWorkerID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *NGORepository) GetByFieldWorker(ctx context.Context, fieldWorkerID string) (types.NGO, error) {
	const query = `
		SELECT id, field_worker_id, ngo_name, ngo_type, registration_number, date_of_registration,
		       act_of_registration, ngo_pan_number, has_12a_80g_registration, certificate_12a_80g_url,
		       has_fcra_registration, fcra_certificate_url, registration_certificate_url,
		       registered_office_address, contact_email, contact_phone, key_person_name,
		       key_person_designation, key_person_contact, website_social_links, areas_of_work,
		       geographic_focus, past_current_projects, annual_report_url, created_at, updated_at
		FROM ngos
		WHERE field_worker_id = $1`
	var ngo types.NGO
	err := r.db.QueryRowContext(ctx, query, fieldWorkerID).Scan(
		&ngo.ID,
		&ngo.FieldWorkerID,
		&ngo.NGOName,
		&ngo.NGOType,
		&ngo.RegistrationNumber,
		&ngo.DateOfRegistration,
		&ngo.ActOfRegistration,
		&ngo.PANNumber,
		&ngo.Has12A80G,
		&ngo.Certificate12A80GURL,
		&ngo.HasFCRA,
		&ngo.FCRACertificateURL,
		&ngo.RegistrationCertificateURL,
		&ngo.RegisteredOfficeAddress,
		&ngo.ContactEmail,
		&ngo.ContactPhone,
		&ngo.KeyPersonName,
		&ngo.KeyPersonDesignation,
		&ngo.KeyPersonContact,
		&ngo.WebsiteSocialLinks,
		pq.Array(&ngo.AreasOfWork),
		&ngo.GeographicFocus,
		&ngo.PastCurrentProjects,
		&ngo.AnnualReportURL,
		&ngo.CreatedAt,
		&ngo.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.NGO{}, ErrNotFound
		}
		return types.NGO{}, err
	}
	return ngo, nil
}

// Create inserts a registration. A second registration for the same field
// worker fails with ErrAlreadyExists.
func (r *NGORepository) Create(ctx context.Context, ngo types.NGO) (types.NGO, error) {
	now := time.Now()
	ngo.ID = uuid.NewString()
	ngo.CreatedAt = now
	ngo.UpdatedAt = now
	if ngo.AreasOfWork == nil {
		ngo.AreasOfWork = []string{}
	}

	const query = `
		INSERT INTO ngos (
			id, field_worker_id, ngo_name, ngo_type, registration_number, date_of_registration,
			act_of_registration, ngo_pan_number, has_12a_80g_registration, certificate_12a_80g_url,
			has_fcra_registration, fcra_certificate_url, registration_certificate_url,
			registered_office_address, contact_email, contact_phone, key_person_name,
			key_person_designation, key_person_contact, website_social_links, areas_of_work,
			geographic_focus, past_current_projects, annual_report_url, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		ngo.ID,
		ngo.FieldWorkerID,
		ngo.NGOName,
		ngo.NGOType,
		ngo.RegistrationNumber,
		ngo.DateOfRegistration,
		ngo.ActOfRegistration,
		ngo.PANNumber,
		ngo.Has12A80G,
		ngo.Certificate12A80GURL,
		ngo.HasFCRA,
		ngo.FCRACertificateURL,
		ngo.RegistrationCertificateURL,
		ngo.RegisteredOfficeAddress,
		ngo.ContactEmail,
		ngo.ContactPhone,
		ngo.KeyPersonName,
		ngo.KeyPersonDesignation,
		ngo.KeyPersonContact,
		ngo.WebsiteSocialLinks,
		pq.Array(ngo.AreasOfWork),
		ngo.GeographicFocus,
		ngo.PastCurrentProjects,
		ngo.AnnualReportURL,
		ngo.CreatedAt,
		ngo.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.NGO{}, ErrAlreadyExists
		}
		return types.NGO{}, err
	}
	return ngo, nil
}
