package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/bluecarbon-mrv/portal/internal/services"
	"github.com/bluecarbon-mrv/portal/internal/store"
	"github.com/bluecarbon-mrv/portal/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Multipart field names of the NGO and site forms.
const (
	formFieldNGOName                 = "ngo_name"
	formFieldNGOType                 = "ngo_type"
	formFieldRegistrationNumber      = "registration_number"
	formFieldDateOfRegistration      = "date_of_registration"
	formFieldActOfRegistration       = "act_of_registration"
	formFieldPANNumber               = "ngo_pan_number"
	formFieldHas12A80G               = "has_12a_80g_registration"
	formFieldHasFCRA                 = "has_fcra_registration"
	formFieldRegisteredOfficeAddress = "registered_office_address"
	formFieldContactEmail            = "contact_email"
	formFieldContactPhone            = "contact_phone"
	formFieldKeyPersonName           = "key_person_name"
	formFieldKeyPersonDesignation    = "key_person_designation"
	formFieldKeyPersonContact        = "key_person_contact"
	formFieldWebsiteSocialLinks      = "website_social_links"
	formFieldAreasOfWork             = "areas_of_work"
	formFieldGeographicFocus         = "geographic_focus"
	formFieldPastCurrentProjects     = "past_current_projects"
	formFieldCertificate12A80G       = "certificate_12a_80g"
	formFieldFCRACertificate         = "fcra_certificate"
	formFieldRegistrationCertificate = "registration_certificate"
	formFieldAnnualReport            = "annual_report"

	formFieldLatitude         = "latitude"
	formFieldLongitude        = "longitude"
	formFieldPlantationType   = "plantation_type"
	formFieldArea             = "area"
	formFieldDateOfPlantation = "date_of_plantation"
	formFieldImages           = "images"
)

const (
	ngoDocumentSlots = 4

	// maxSiteImages sizes the body limit of a site submission.
	maxSiteImages = 5
)

// OnboardingState reports whether the NGO form should be shown.
func (h *PortalHandler) OnboardingState(w http.ResponseWriter, r *http.Request) {
	resolved, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp := OnboardingResponse{
		State:       h.onboarding.State(r.Context(), resolved).String(),
		AreasOfWork: types.AreasOfWork,
	}
	ngo, err := h.ngos.Get(r.Context(), resolved.Identity().ID)
	switch {
	case err == nil:
		resp.NGO = &ngo
	case !errors.Is(err, store.ErrNotFound):
		h.logger.Warn("load ngo failed", zap.String("user_id", resolved.Identity().ID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SkipOnboarding dismisses the NGO form for the rest of the session.
func (h *PortalHandler) SkipOnboarding(w http.ResponseWriter, r *http.Request) {
	resolved, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	state, err := h.onboarding.Dismiss(r.Context(), resolved)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to skip onboarding")
		return
	}
	writeJSON(w, http.StatusOK, OnboardingResponse{State: state.String(), Redirect: services.FieldWorkerPortal.HomePath})
}

// RegisterNGO stores the onboarding form of the signed-in field worker.
func (h *PortalHandler) RegisterNGO(w http.ResponseWriter, r *http.Request) {
	resolved, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	form, err := parseNGOForm(w, r)
	if err != nil {
		writeFormError(w, err)
		return
	}

	result, err := h.ngos.Register(r.Context(), resolved, form)
	if err != nil {
		if services.IsConflict(err) {
			writeError(w, http.StatusConflict, "NGO details have already been submitted.")
			return
		}
		writeServiceError(w, h.logger, err, "Failed to save NGO details. Please try again.")
		return
	}

	writeJSON(w, http.StatusCreated, NGOResponse{
		NGO:      result.NGO,
		Failed:   failedUploads(result.Failed),
		State:    services.OnboardingProceed.String(),
		Redirect: services.FieldWorkerPortal.HomePath,
		Message:  "NGO details saved successfully!",
	})
}

// SubmitSite records a restoration site with optional photos.
func (h *PortalHandler) SubmitSite(w http.ResponseWriter, r *http.Request) {
	resolved, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	form, err := parseSiteForm(w, r)
	if err != nil {
		writeFormError(w, err)
		return
	}

	result, err := h.sites.Submit(r.Context(), resolved.Identity().ID, form)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to submit site data. Please try again.")
		return
	}

	writeJSON(w, http.StatusCreated, SiteResponse{
		Site:    result.Site,
		Failed:  failedUploads(result.Failed),
		Message: "Your restoration site data has been successfully recorded.",
	})
}

// DocumentLink returns a short-lived link to an uploaded NGO document.
func (h *PortalHandler) DocumentLink(w http.ResponseWriter, r *http.Request) {
	resolved, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	link, err := h.ngos.DocumentLink(r.Context(), resolved.Identity().ID, chi.URLParam(r, "slot"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeServiceError(w, h.logger, err, "failed to load document")
		return
	}
	writeJSON(w, http.StatusOK, DocumentLinkResponse{URL: link.URL, ExpiresAt: link.ExpiresAt})
}

func parseNGOForm(w http.ResponseWriter, r *http.Request) (services.NGORegistrationForm, error) {
	if err := parseMultipart(w, r, ngoDocumentSlots); err != nil {
		return services.NGORegistrationForm{}, err
	}

	form := services.NGORegistrationForm{
		NGOName:                 r.FormValue(formFieldNGOName),
		NGOType:                 r.FormValue(formFieldNGOType),
		RegistrationNumber:      r.FormValue(formFieldRegistrationNumber),
		DateOfRegistration:      r.FormValue(formFieldDateOfRegistration),
		ActOfRegistration:       r.FormValue(formFieldActOfRegistration),
		PANNumber:               r.FormValue(formFieldPANNumber),
		Has12A80G:               parseBool(r.FormValue(formFieldHas12A80G)),
		HasFCRA:                 parseBool(r.FormValue(formFieldHasFCRA)),
		RegisteredOfficeAddress: r.FormValue(formFieldRegisteredOfficeAddress),
		ContactEmail:            r.FormValue(formFieldContactEmail),
		ContactPhone:            r.FormValue(formFieldContactPhone),
		KeyPersonName:           r.FormValue(formFieldKeyPersonName),
		KeyPersonDesignation:    r.FormValue(formFieldKeyPersonDesignation),
		KeyPersonContact:        r.FormValue(formFieldKeyPersonContact),
		WebsiteSocialLinks:      r.FormValue(formFieldWebsiteSocialLinks),
		AreasOfWork:             parseList(r.MultipartForm.Value[formFieldAreasOfWork]),
		GeographicFocus:         r.FormValue(formFieldGeographicFocus),
		PastCurrentProjects:     r.FormValue(formFieldPastCurrentProjects),
	}

	var err error
	if form.Certificate12A80G, err = formFile(r.MultipartForm, formFieldCertificate12A80G); err != nil {
		return form, err
	}
	if form.FCRACertificate, err = formFile(r.MultipartForm, formFieldFCRACertificate); err != nil {
		return form, err
	}
	if form.RegistrationCertificate, err = formFile(r.MultipartForm, formFieldRegistrationCertificate); err != nil {
		return form, err
	}
	if form.AnnualReport, err = formFile(r.MultipartForm, formFieldAnnualReport); err != nil {
		return form, err
	}
	return form, nil
}

func parseSiteForm(w http.ResponseWriter, r *http.Request) (services.SiteForm, error) {
	if err := parseMultipart(w, r, maxSiteImages); err != nil {
		return services.SiteForm{}, err
	}

	images, err := formFiles(r.MultipartForm, formFieldImages)
	if err != nil {
		return services.SiteForm{}, err
	}

	return services.SiteForm{
		Latitude:         r.FormValue(formFieldLatitude),
		Longitude:        r.FormValue(formFieldLongitude),
		PlantationType:   r.FormValue(formFieldPlantationType),
		Area:             r.FormValue(formFieldArea),
		DateOfPlantation: r.FormValue(formFieldDateOfPlantation),
		Images:           images,
	}, nil
}

type OnboardingResponse struct {
	State       string     `json:"state"`
	Redirect    string     `json:"redirect,omitempty"`
	NGO         *types.NGO `json:"ngo,omitempty"`
	AreasOfWork []string   `json:"areas_of_work,omitempty"`
}

type NGOResponse struct {
	NGO      types.NGO      `json:"ngo"`
	Failed   []FailedUpload `json:"failed_uploads"`
	State    string         `json:"state"`
	Redirect string         `json:"redirect"`
	Message  string         `json:"message"`
}

type DocumentLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SiteResponse struct {
	Site    types.Site     `json:"site"`
	Failed  []FailedUpload `json:"failed_uploads"`
	Message string         `json:"message"`
}
