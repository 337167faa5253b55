package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bluecarbon-mrv/portal/internal/mq"
	"github.com/bluecarbon-mrv/portal/types"
	"go.uber.org/zap"
)

const siteImagesFolder = "sites"

// SiteRepository defines persistence operations for restoration sites.
type SiteRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Site, int, error)
	ListByFieldWorker(ctx context.Context, fieldWorkerID string) ([]types.Site, error)
	Create(ctx context.Context, site types.Site) (types.Site, error)
}

// SiteForm is the site submission form. Numbers arrive as text.
type SiteForm struct {
	Latitude         string
	Longitude        string
	PlantationType   string
	Area             string
	DateOfPlantation string
	Images           []*types.UploadedFile
}

func (f SiteForm) RequiredFields() []RequiredField {
	return []RequiredField{
		Field("latitude", strings.TrimSpace(f.Latitude)),
		Field("longitude", strings.TrimSpace(f.Longitude)),
		Field("plantation_type", strings.TrimSpace(f.PlantationType)),
		Field("area", strings.TrimSpace(f.Area)),
	}
}

// SiteSubmission is a saved site and the images that failed to upload.
type SiteSubmission struct {
	Site   types.Site
	Failed []*SubmitError
}

// SiteService records restoration sites and serves the public listing.
type SiteService struct {
	repo     SiteRepository
	uploader *Uploader
	events   EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

func NewSiteService(repo SiteRepository, uploader *Uploader, events EventPublisher, logger *zap.Logger) *SiteService {
	return &SiteService{
		repo:     repo,
		uploader: uploader,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// List returns sites newest first.
func (s *SiteService) List(ctx context.Context, offset, limit int) ([]types.Site, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *SiteService) ListByFieldWorker(ctx context.Context, fieldWorkerID string) ([]types.Site, error) {
	return s.repo.ListByFieldWorker(ctx, fieldWorkerID)
}

// Submit stores a site for fieldWorkerID. The record keeps the URL of the
// first image that was stored.
func (s *SiteService) Submit(ctx context.Context, fieldWorkerID string, form SiteForm) (SiteSubmission, error) {
	site, err := s.parse(form)
	if err != nil {
		return SiteSubmission{}, err
	}
	site.FieldWorkerID = fieldWorkerID

	attachments := make([]Attachment, 0, len(form.Images))
	for i, image := range form.Images {
		attachments = append(attachments, Attachment{
			Slot:   fmt.Sprintf("image-%d", i+1),
			Folder: siteImagesFolder,
			File:   image,
			Policy: ImagePolicy,
		})
	}

	submission, err := s.uploader.SubmitWithAttachments(ctx, fieldWorkerID, attachments, func(ctx context.Context, stored map[string]StoredAttachment) (string, error) {
		for _, a := range attachments {
			if image, ok := stored[a.Slot]; ok {
				url := image.URL
				site.UploadedImageURL = &url
				break
			}
		}
		created, err := s.repo.Create(ctx, site)
		if err != nil {
			return "", err
		}
		site = created
		return created.ID, nil
	})
	if err != nil {
		return SiteSubmission{Failed: submission.Failed}, err
	}

	publishEvent(ctx, s.events, s.logger, mq.EventSiteSubmitted, SiteSubmittedEvent{
		SiteID:         site.ID,
		FieldWorkerID:  site.FieldWorkerID,
		Latitude:       site.Latitude,
		Longitude:      site.Longitude,
		Area:           site.Area,
		PlantationType: site.PlantationType,
		HasImage:       site.UploadedImageURL != nil,
	})

	return SiteSubmission{Site: site, Failed: submission.Failed}, nil
}

func (s *SiteService) parse(form SiteForm) (types.Site, error) {
	if err := ValidateRequiredFields(form.RequiredFields()...); err != nil {
		return types.Site{}, err
	}

	var invalid []string
	latitude, ok := parseFinite(form.Latitude)
	if !ok || latitude < -90 || latitude > 90 {
		invalid = append(invalid, "latitude")
	}
	longitude, ok := parseFinite(form.Longitude)
	if !ok || longitude < -180 || longitude > 180 {
		invalid = append(invalid, "longitude")
	}
	area, ok := parseFinite(form.Area)
	if !ok || area <= 0 {
		invalid = append(invalid, "area")
	}

	plantedOn := s.now().UTC()
	if date := strings.TrimSpace(form.DateOfPlantation); date != "" {
		parsed, err := parseDate(date)
		if err != nil {
			invalid = append(invalid, "date_of_plantation")
		} else {
			plantedOn = parsed
		}
	}

	if len(invalid) > 0 {
		return types.Site{}, &ValidationError{Kind: InvalidValue, Fields: invalid}
	}

	return types.Site{
		Latitude:         latitude,
		Longitude:        longitude,
		PlantationType:   strings.TrimSpace(form.PlantationType),
		Area:             area,
		DateOfPlantation: plantedOn,
	}, nil
}

// parseFinite rejects NaN and infinities, which ParseFloat accepts.
func parseFinite(value string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseDate(value string) (time.Time, error) {
	if parsed, err := time.Parse(dateLayout, value); err == nil {
		return parsed, nil
	}
	return time.Parse(time.RFC3339, value)
}
