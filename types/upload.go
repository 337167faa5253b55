package types

// UploadedFile is a binary attachment received from a client, before it is
// handed to object storage.
type UploadedFile struct {
	// Name is the client-side file name; its extension names the stored object.
	Name string `json:"name"`

	// MimeType is the declared content type.
	MimeType string `json:"mime_type"`

	// SizeBytes is the payload length.
	SizeBytes int64 `json:"size_bytes"`

	// Data holds the payload.
	Data []byte `json:"-"`
}
