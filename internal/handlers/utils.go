package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/bluecarbon-mrv/portal/internal/services"
	"github.com/bluecarbon-mrv/portal/types"
	"go.uber.org/zap"
)

const (
	defaultPage        = 1
	defaultLimit       = 20
	maxLimit           = 100
	maxMultipartMemory = 32 << 20

	// multipartSlack covers the text fields and part headers of a form.
	multipartSlack = 1 << 20
)

var (
	errInvalidMultipart = errors.New("invalid multipart form")
	errRequestTooLarge  = errors.New("request too large")
)

type contextKey string

const contextSessionKey contextKey = "session"

// ErrorResponse is the error payload of every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`

	// Fields lists the form keys that failed validation.
	Fields []string `json:"fields,omitempty"`

	// Slot names the attachment that failed validation.
	Slot string `json:"slot,omitempty"`

	// Redirect is the login page to send the client to.
	Redirect string `json:"redirect,omitempty"`
}

// ListResponse is a page of items.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// FailedUpload reports an attachment that could not be stored.
type FailedUpload struct {
	Slot    string `json:"slot"`
	Message string `json:"message"`
}

func withSession(ctx context.Context, resolved *services.ResolvedSession) context.Context {
	return context.WithValue(ctx, contextSessionKey, resolved)
}

func sessionFromContext(ctx context.Context) (*services.ResolvedSession, error) {
	resolved, ok := ctx.Value(contextSessionKey).(*services.ResolvedSession)
	if !ok || resolved == nil {
		return nil, errors.New("missing session")
	}
	return resolved, nil
}

// writeJSON encodes value before committing status, so an unencodable value
// becomes a 500 instead of an empty body.
func writeJSON(w http.ResponseWriter, status int, value any) {
	body, err := json.Marshal(value)
	if err != nil {
		zap.L().Error("encode response", zap.Int("status", status), zap.Error(err))
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps the service error taxonomy to a status code and a
// user-facing message. Anything else is logged and reported as fallback.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	var (
		verr  *services.ValidationError
		aerr  *services.AuthError
		azerr *services.AuthorizationError
		serr  *services.SubmitError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Message(), Fields: verr.Fields, Slot: verr.Slot})
	case errors.As(err, &azerr):
		status := http.StatusUnauthorized
		if azerr.Kind == services.WrongRole {
			status = http.StatusForbidden
		}
		writeJSON(w, status, ErrorResponse{Error: azerr.Message(), Redirect: azerr.Portal.LoginPath})
	case errors.As(err, &aerr):
		status := http.StatusServiceUnavailable
		switch aerr.Kind {
		case services.InvalidCredentials:
			status = http.StatusUnauthorized
		case services.InvalidResetToken:
			status = http.StatusBadRequest
		}
		writeError(w, status, aerr.Message())
	case errors.As(err, &serr) && serr.Kind == services.PersistFailed:
		writeError(w, http.StatusInternalServerError, serr.Message())
	default:
		logger.Error(fallback, zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func failedUploads(failed []*services.SubmitError) []FailedUpload {
	out := make([]FailedUpload, 0, len(failed))
	for _, f := range failed {
		out = append(out, FailedUpload{Slot: f.Slot, Message: f.Message()})
	}
	return out
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("per_page"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}

func parseList(values []string) []string {
	var out []string
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			if item := strings.TrimSpace(part); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// formFile returns the first file of field, or nil when none was sent.
func formFile(form *multipart.Form, field string) (*types.UploadedFile, error) {
	if form == nil || len(form.File[field]) == 0 {
		return nil, nil
	}
	return readUpload(form.File[field][0])
}

func formFiles(form *multipart.Form, field string) ([]*types.UploadedFile, error) {
	if form == nil {
		return nil, nil
	}
	files := make([]*types.UploadedFile, 0, len(form.File[field]))
	for _, header := range form.File[field] {
		file, err := readUpload(header)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

// readUpload reads a multipart file. Oversized files are returned without
// data so validation can reject them by size.
func readUpload(header *multipart.FileHeader) (*types.UploadedFile, error) {
	upload := &types.UploadedFile{
		Name:      header.Filename,
		MimeType:  strings.TrimSpace(header.Header.Get("Content-Type")),
		SizeBytes: header.Size,
	}
	if header.Size > services.MaxUploadBytes {
		return upload, nil
	}

	file, err := header.Open()
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	data, err := readFileLimited(file, services.MaxUploadBytes)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	upload.Data = data
	upload.SizeBytes = int64(len(data))
	if upload.MimeType == "" || upload.MimeType == "application/octet-stream" {
		upload.MimeType = strings.SplitN(http.DetectContentType(data), ";", 2)[0]
	}
	return upload, nil
}

// parseMultipart caps the body at files full-size uploads plus slack before
// parsing, so oversized requests stop streaming instead of filling temp files.
func parseMultipart(w http.ResponseWriter, r *http.Request, files int) error {
	r.Body = http.MaxBytesReader(w, r.Body, multipartLimit(files))
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return errRequestTooLarge
		}
		return errInvalidMultipart
	}
	return nil
}

func multipartLimit(files int) int64 {
	return int64(files)*services.MaxUploadBytes + multipartSlack
}

// writeFormError reports a multipart parse failure.
func writeFormError(w http.ResponseWriter, err error) {
	if errors.Is(err, errRequestTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "The upload is too large. Please upload files smaller than 10MB.")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
