package services

import (
	"regexp"
	"slices"
	"sync"

	"github.com/bluecarbon-mrv/portal/types"
	"github.com/go-playground/validator/v10"
)

// MaxUploadBytes is the size limit shared by document and image uploads.
const MaxUploadBytes int64 = 10 << 20

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	validatorOnce sync.Once
	validate      *validator.Validate
)

func fieldValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// FilePolicy describes what an upload slot accepts.
type FilePolicy struct {
	AllowedMimeTypes []string
	MaxSizeBytes     int64

	// Required rejects a missing file.
	Required bool

	// Label is the human list of accepted formats.
	Label string
}

// DocumentPolicy applies to NGO certificates and reports.
var DocumentPolicy = FilePolicy{
	AllowedMimeTypes: []string{"application/pdf", "image/jpeg", "image/png"},
	MaxSizeBytes:     MaxUploadBytes,
	Label:            "PDF, JPG, or PNG",
}

// ImagePolicy applies to site photos.
var ImagePolicy = FilePolicy{
	AllowedMimeTypes: []string{"image/jpeg", "image/png", "image/webp"},
	MaxSizeBytes:     MaxUploadBytes,
	Label:            "JPG, PNG, or WEBP",
}

// RequiredField pairs a form key with its submitted value.
type RequiredField struct {
	Key   string
	Value any
}

// Field is shorthand for building a RequiredField.
func Field(key string, value any) RequiredField {
	return RequiredField{Key: key, Value: value}
}

// ValidateEmail reports whether s looks like local@domain.tld.
func ValidateEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// ValidateRequiredFields fails with MissingFields naming every field whose
// value is the zero value of its type.
func ValidateRequiredFields(fields ...RequiredField) error {
	var missing []string
	for _, field := range fields {
		if isEmpty(field.Value) {
			missing = append(missing, field.Key)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Kind: MissingFields, Fields: missing}
	}
	return nil
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	return fieldValidator().Var(value, "required") != nil
}

// ValidateFile checks file against policy. A nil file passes unless the
// policy marks it required.
func ValidateFile(file *types.UploadedFile, policy FilePolicy) error {
	if file == nil {
		if policy.Required {
			return &ValidationError{Kind: MissingFields, Policy: policy}
		}
		return nil
	}
	if !slices.Contains(policy.AllowedMimeTypes, file.MimeType) {
		return &ValidationError{Kind: UnsupportedType, Policy: policy}
	}
	if file.SizeBytes > policy.MaxSizeBytes {
		return &ValidationError{Kind: TooLarge, Policy: policy}
	}
	return nil
}
