package types

import "time"

// AreasOfWork lists the accepted values for NGO.AreasOfWork.
var AreasOfWork = []string{"Education", "Health", "Environment", "Livelihood", "Other"}

// NGO is the organisational registration collected from a field worker
// during onboarding. A field worker owns at most one NGO record.
type NGO struct {
	// ID is the unique identifier of the registration.
	ID string `json:"id" db:"id"`

	// FieldWorkerID is the identity that submitted the registration.
	FieldWorkerID string `json:"field_worker_id" db:"field_worker_id"`

	NGOName            string     `json:"ngo_name" db:"ngo_name"`
	NGOType            string     `json:"ngo_type" db:"ngo_type"`
	RegistrationNumber string     `json:"registration_number" db:"registration_number"`
	DateOfRegistration *time.Time `json:"date_of_registration,omitempty" db:"date_of_registration"`
	ActOfRegistration  string     `json:"act_of_registration,omitempty" db:"act_of_registration"`
	PANNumber          string     `json:"ngo_pan_number,omitempty" db:"ngo_pan_number"`

	// Has12A80G marks a 12A/80G tax registration; Certificate12A80GURL holds
	// the stored certificate object key when one was uploaded.
	Has12A80G            bool    `json:"has_12a_80g_registration" db:"has_12a_80g_registration"`
	Certificate12A80GURL *string `json:"certificate_12a_80g_url,omitempty" db:"certificate_12a_80g_url"`

	// HasFCRA marks a foreign contribution registration.
	HasFCRA            bool    `json:"has_fcra_registration" db:"has_fcra_registration"`
	FCRACertificateURL *string `json:"fcra_certificate_url,omitempty" db:"fcra_certificate_url"`

	RegistrationCertificateURL *string `json:"registration_certificate_url,omitempty" db:"registration_certificate_url"`

	RegisteredOfficeAddress string `json:"registered_office_address,omitempty" db:"registered_office_address"`
	ContactEmail            string `json:"contact_email" db:"contact_email"`
	ContactPhone            string `json:"contact_phone,omitempty" db:"contact_phone"`
	KeyPersonName           string `json:"key_person_name" db:"key_person_name"`
	KeyPersonDesignation    string `json:"key_person_designation,omitempty" db:"key_person_designation"`
	KeyPersonContact        string `json:"key_person_contact,omitempty" db:"key_person_contact"`
	WebsiteSocialLinks      string `json:"website_social_links,omitempty" db:"website_social_links"`

	// AreasOfWork is a set of values drawn from AreasOfWork.
	AreasOfWork []string `json:"areas_of_work" db:"areas_of_work"`

	GeographicFocus     string  `json:"geographic_focus,omitempty" db:"geographic_focus"`
	PastCurrentProjects string  `json:"past_current_projects,omitempty" db:"past_current_projects"`
	AnnualReportURL     *string `json:"annual_report_url,omitempty" db:"annual_report_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
