package types

import "time"

// Site is a geotagged restoration-site record submitted by a field worker.
// Sites are immutable once created.
type Site struct {
	// ID is the unique identifier of the site.
	ID string `json:"id" db:"id"`

	// FieldWorkerID is the identity that recorded the site.
	FieldWorkerID string `json:"field_worker_id" db:"field_worker_id"`

	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`

	// PlantationType names the restored ecosystem (mangrove, seagrass, ...).
	PlantationType string `json:"plantation_type" db:"plantation_type"`

	// Area is the covered area in hectares.
	Area float64 `json:"area" db:"area"`

	// UploadedImageURL is the public URL of the first stored site image.
	UploadedImageURL *string `json:"uploaded_image_url,omitempty" db:"uploaded_image_url"`

	DateOfPlantation time.Time `json:"date_of_plantation" db:"date_of_plantation"`

	// NDVIAvg and CarbonEstimateTonnes are filled by the satellite pipeline,
	// which lives outside this service.
	NDVIAvg              *float64 `json:"ndvi_avg,omitempty" db:"ndvi_avg"`
	CarbonEstimateTonnes *float64 `json:"carbon_estimate_tonnes,omitempty" db:"carbon_estimate_tonnes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreditPurchase records credits bought by a buyer. Payment itself is
// handled elsewhere; only the record is kept here.
type CreditPurchase struct {
	ID            int64     `json:"id" db:"id"`
	BuyerID       string    `json:"buyer_id" db:"buyer_id"`
	SiteID        *string   `json:"site_id,omitempty" db:"site_id"`
	Credits       float64   `json:"credits" db:"credits"`
	PricePerTonne float64   `json:"price_per_tonne" db:"price_per_tonne"`
	Currency      string    `json:"currency" db:"currency"`
	PurchasedAt   time.Time `json:"purchased_at" db:"purchased_at"`
}
