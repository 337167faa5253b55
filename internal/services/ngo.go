package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bluecarbon-mrv/portal/internal/mq"
	"github.com/bluecarbon-mrv/portal/internal/store"
	"github.com/bluecarbon-mrv/portal/types"
	"go.uber.org/zap"
)

// Document slots of the NGO registration form.
const (
	Slot12A80G       = "12a-80g"
	SlotFCRA         = "fcra"
	SlotRegistration = "registration"
	SlotAnnualReport = "annual-reports"
)

const (
	dateLayout             = "2006-01-02"
	defaultDocumentLinkTTL = 15 * time.Minute
)

// DocumentSigner issues expiring links to private documents.
type DocumentSigner interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// DocumentLink is a temporary download link.
type DocumentLink struct {
	URL       string
	ExpiresAt time.Time
}

// NGORepository defines persistence operations for NGO registrations.
type NGORepository interface {
	ExistsForFieldWorker(ctx context.Context, fieldWorkerID string) (bool, error)
	GetByFieldWorker(ctx context.Context, fieldWorkerID string) (types.NGO, error)
	Create(ctx context.Context, ngo types.NGO) (types.NGO, error)
}

// NGORegistrationForm is the onboarding form of a field worker.
type NGORegistrationForm struct {
	NGOName                 string
	NGOType                 string
	RegistrationNumber      string
	DateOfRegistration      string
	ActOfRegistration       string
	PANNumber               string
	Has12A80G               bool
	HasFCRA                 bool
	RegisteredOfficeAddress string
	ContactEmail            string
	ContactPhone            string
	KeyPersonName           string
	KeyPersonDesignation    string
	KeyPersonContact        string
	WebsiteSocialLinks      string
	AreasOfWork             []string
	GeographicFocus         string
	PastCurrentProjects     string

	Certificate12A80G       *types.UploadedFile
	FCRACertificate         *types.UploadedFile
	RegistrationCertificate *types.UploadedFile
	AnnualReport            *types.UploadedFile
}

func (f NGORegistrationForm) RequiredFields() []RequiredField {
	return []RequiredField{
		Field("ngo_name", f.NGOName),
		Field("ngo_type", f.NGOType),
		Field("registration_number", f.RegistrationNumber),
		Field("contact_email", f.ContactEmail),
		Field("key_person_name", f.KeyPersonName),
	}
}

// attachments returns the document slots. Tax certificates are only taken
// when the matching registration is declared.
func (f NGORegistrationForm) attachments() []Attachment {
	var attachments []Attachment
	if f.Has12A80G {
		attachments = append(attachments, Attachment{Slot: Slot12A80G, Folder: Slot12A80G, File: f.Certificate12A80G, Policy: DocumentPolicy})
	}
	if f.HasFCRA {
		attachments = append(attachments, Attachment{Slot: SlotFCRA, Folder: SlotFCRA, File: f.FCRACertificate, Policy: DocumentPolicy})
	}
	return append(attachments,
		Attachment{Slot: SlotRegistration, Folder: SlotRegistration, File: f.RegistrationCertificate, Policy: DocumentPolicy},
		Attachment{Slot: SlotAnnualReport, Folder: SlotAnnualReport, File: f.AnnualReport, Policy: DocumentPolicy},
	)
}

// NGORegistration is a saved registration and the slots that failed to upload.
type NGORegistration struct {
	NGO    types.NGO
	Failed []*SubmitError
}

// NGOService registers field worker NGOs.
type NGOService struct {
	repo       NGORepository
	uploader   *Uploader
	onboarding *Onboarding
	events     EventPublisher
	signer     DocumentSigner
	linkTTL    time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewNGOService(
	repo NGORepository,
	uploader *Uploader,
	onboarding *Onboarding,
	events EventPublisher,
	signer DocumentSigner,
	linkTTL time.Duration,
	logger *zap.Logger,
) *NGOService {
	if linkTTL <= 0 {
		linkTTL = defaultDocumentLinkTTL
	}
	return &NGOService{
		repo:       repo,
		uploader:   uploader,
		onboarding: onboarding,
		events:     events,
		signer:     signer,
		linkTTL:    linkTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// Get returns the registration of a field worker.
func (s *NGOService) Get(ctx context.Context, fieldWorkerID string) (types.NGO, error) {
	return s.repo.GetByFieldWorker(ctx, fieldWorkerID)
}

// DocumentLink returns an expiring link to the document a field worker
// uploaded in slot. store.ErrNotFound means there is no NGO or no document.
func (s *NGOService) DocumentLink(ctx context.Context, fieldWorkerID, slot string) (DocumentLink, error) {
	ngo, err := s.repo.GetByFieldWorker(ctx, fieldWorkerID)
	if err != nil {
		return DocumentLink{}, err
	}

	var key *string
	switch slot {
	case Slot12A80G:
		key = ngo.Certificate12A80GURL
	case SlotFCRA:
		key = ngo.FCRACertificateURL
	case SlotRegistration:
		key = ngo.RegistrationCertificateURL
	case SlotAnnualReport:
		key = ngo.AnnualReportURL
	default:
		return DocumentLink{}, &ValidationError{Kind: InvalidValue, Fields: []string{"slot"}}
	}
	if key == nil || *key == "" {
		return DocumentLink{}, store.ErrNotFound
	}

	url, err := s.signer.SignedURL(ctx, *key, s.linkTTL)
	if err != nil {
		return DocumentLink{}, fmt.Errorf("sign %s document: %w", slot, err)
	}
	return DocumentLink{URL: url, ExpiresAt: s.now().Add(s.linkTTL)}, nil
}

// Register validates form, uploads its documents and stores the NGO for the
// signed-in field worker. Success ends onboarding for the session.
func (s *NGOService) Register(ctx context.Context, resolved *ResolvedSession, form NGORegistrationForm) (NGORegistration, error) {
	ngo, err := form.toNGO()
	if err != nil {
		return NGORegistration{}, err
	}
	ngo.FieldWorkerID = resolved.Identity().ID

	exists, err := s.repo.ExistsForFieldWorker(ctx, ngo.FieldWorkerID)
	if err != nil {
		return NGORegistration{}, fmt.Errorf("check ngo: %w", err)
	}
	if exists {
		return NGORegistration{}, store.ErrAlreadyExists
	}

	submission, err := s.uploader.SubmitWithAttachments(ctx, ngo.FieldWorkerID, form.attachments(), func(ctx context.Context, stored map[string]StoredAttachment) (string, error) {
		ngo.Certificate12A80GURL = storedKey(stored, Slot12A80G)
		ngo.FCRACertificateURL = storedKey(stored, SlotFCRA)
		ngo.RegistrationCertificateURL = storedKey(stored, SlotRegistration)
		ngo.AnnualReportURL = storedKey(stored, SlotAnnualReport)

		created, err := s.repo.Create(ctx, ngo)
		if err != nil {
			return "", err
		}
		ngo = created
		return created.ID, nil
	})
	if err != nil {
		return NGORegistration{Failed: submission.Failed}, err
	}

	if _, err := s.onboarding.Dismiss(ctx, resolved); err != nil {
		s.logger.Warn("mark onboarding done failed", zap.String("session_id", resolved.Session.ID), zap.Error(err))
	}
	publishEvent(ctx, s.events, s.logger, mq.EventNGORegistered, NGORegisteredEvent{
		NGOID:         ngo.ID,
		FieldWorkerID: ngo.FieldWorkerID,
		NGOName:       ngo.NGOName,
		ContactEmail:  ngo.ContactEmail,
		FailedUploads: len(submission.Failed),
	})

	return NGORegistration{NGO: ngo, Failed: submission.Failed}, nil
}

func (f NGORegistrationForm) toNGO() (types.NGO, error) {
	f.NGOName = strings.TrimSpace(f.NGOName)
	f.NGOType = strings.TrimSpace(f.NGOType)
	f.RegistrationNumber = strings.TrimSpace(f.RegistrationNumber)
	f.ContactEmail = strings.TrimSpace(f.ContactEmail)
	f.KeyPersonName = strings.TrimSpace(f.KeyPersonName)

	if err := ValidateRequiredFields(f.RequiredFields()...); err != nil {
		return types.NGO{}, err
	}
	if !ValidateEmail(f.ContactEmail) {
		return types.NGO{}, &ValidationError{Kind: InvalidEmail, Fields: []string{"contact_email"}}
	}

	var invalid []string
	var registeredOn *time.Time
	if date := strings.TrimSpace(f.DateOfRegistration); date != "" {
		parsed, err := time.Parse(dateLayout, date)
		if err != nil {
			invalid = append(invalid, "date_of_registration")
		} else {
			registeredOn = &parsed
		}
	}
	areas := []string{}
	for _, area := range f.AreasOfWork {
		area = strings.TrimSpace(area)
		if area == "" || slices.Contains(areas, area) {
			continue
		}
		if !slices.Contains(types.AreasOfWork, area) {
			invalid = append(invalid, "areas_of_work")
			break
		}
		areas = append(areas, area)
	}
	if len(invalid) > 0 {
		return types.NGO{}, &ValidationError{Kind: InvalidValue, Fields: invalid}
	}

	return types.NGO{
		NGOName:                 f.NGOName,
		NGOType:                 f.NGOType,
		RegistrationNumber:      f.RegistrationNumber,
		DateOfRegistration:      registeredOn,
		ActOfRegistration:       strings.TrimSpace(f.ActOfRegistration),
		PANNumber:               strings.TrimSpace(f.PANNumber),
		Has12A80G:               f.Has12A80G,
		HasFCRA:                 f.HasFCRA,
		RegisteredOfficeAddress: strings.TrimSpace(f.RegisteredOfficeAddress),
		ContactEmail:            f.ContactEmail,
		ContactPhone:            strings.TrimSpace(f.ContactPhone),
		KeyPersonName:           f.KeyPersonName,
		KeyPersonDesignation:    strings.TrimSpace(f.KeyPersonDesignation),
		KeyPersonContact:        strings.TrimSpace(f.KeyPersonContact),
		WebsiteSocialLinks:      strings.TrimSpace(f.WebsiteSocialLinks),
		AreasOfWork:             areas,
		GeographicFocus:         strings.TrimSpace(f.GeographicFocus),
		PastCurrentProjects:     strings.TrimSpace(f.PastCurrentProjects),
	}, nil
}

// IsConflict reports whether err means the record already exists.
func IsConflict(err error) bool {
	return errors.Is(err, store.ErrAlreadyExists)
}

func storedKey(stored map[string]StoredAttachment, slot string) *string {
	a, ok := stored[slot]
	if !ok {
		return nil
	}
	key := a.Key
	return &key
}
