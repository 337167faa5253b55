package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/bluecarbon-mrv/portal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultUploadConcurrency = 4

// ObjectStore is the object storage an uploader writes to. PublicURL is
// empty for private buckets.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PublicURL(key string) string
}

// Attachment is one optional file slot of a submission.
type Attachment struct {
	// Slot identifies the attachment in results and errors.
	Slot string

	// Folder is the logical folder the object is stored under.
	Folder string

	File   *types.UploadedFile
	Policy FilePolicy
}

// StoredAttachment is an attachment that reached object storage.
type StoredAttachment struct {
	Slot string `json:"slot"`
	Key  string `json:"key"`
	URL  string `json:"url"`
}

// PersistFunc writes the record once every upload has settled and returns
// its id. stored holds only the slots whose upload succeeded.
type PersistFunc func(ctx context.Context, stored map[string]StoredAttachment) (string, error)

// Submission is the outcome of SubmitWithAttachments.
type Submission struct {
	RecordID string
	Stored   map[string]StoredAttachment
	Failed   []*SubmitError
}

// Uploader validates attachments, uploads them in parallel and persists the
// owning record.
type Uploader struct {
	store       ObjectStore
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

func NewUploader(store ObjectStore, concurrency int, logger *zap.Logger) *Uploader {
	if concurrency <= 0 {
		concurrency = defaultUploadConcurrency
	}
	return &Uploader{
		store:       store,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// SubmitWithAttachments validates every attachment before touching storage.
// A failed upload leaves its slot empty and is reported in Failed; only a
// persist failure fails the submission.
func (u *Uploader) SubmitWithAttachments(ctx context.Context, ownerID string, attachments []Attachment, persist PersistFunc) (Submission, error) {
	for _, a := range attachments {
		if err := ValidateFile(a.File, a.Policy); err != nil {
			verr := err.(*ValidationError)
			verr.Slot = a.Slot
			return Submission{}, verr
		}
	}

	type result struct {
		stored *StoredAttachment
		err    error
	}
	results := make([]result, len(attachments))

	var g errgroup.Group
	g.SetLimit(u.concurrency)
	for i, a := range attachments {
		if a.File == nil {
			continue
		}
		g.Go(func() error {
			key := ObjectKey(ownerID, a.Folder, a.File.Name, a.File.MimeType, u.now())
			err := u.store.Put(ctx, key, bytes.NewReader(a.File.Data), a.File.SizeBytes, a.File.MimeType)
			if err != nil {
				results[i] = result{err: err}
				return nil
			}
			results[i] = result{stored: &StoredAttachment{Slot: a.Slot, Key: key, URL: u.store.PublicURL(key)}}
			return nil
		})
	}
	_ = g.Wait()

	submission := Submission{Stored: map[string]StoredAttachment{}}
	for i, r := range results {
		slot := attachments[i].Slot
		switch {
		case r.stored != nil:
			submission.Stored[slot] = *r.stored
		case r.err != nil:
			u.logger.Warn("attachment upload failed",
				zap.String("owner_id", ownerID),
				zap.String("slot", slot),
				zap.Error(r.err),
			)
			submission.Failed = append(submission.Failed, &SubmitError{Kind: UploadFailed, Slot: slot, Err: r.err})
		}
	}

	id, err := persist(ctx, submission.Stored)
	if err != nil {
		u.logger.Error("persist submission failed", zap.String("owner_id", ownerID), zap.Error(err))
		return submission, &SubmitError{Kind: PersistFailed, Err: err}
	}
	submission.RecordID = id
	return submission, nil
}

// ObjectKey builds {owner}/{folder}/{unix_millis}-{random}.{ext}.
func ObjectKey(ownerID, folder, fileName, mimeType string, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s/%s/%d-%s%s", ownerID, folder, at.UnixMilli(), suffix, fileExtension(fileName, mimeType))
}

func fileExtension(name, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" && ext != "." {
		return ext
	}
	switch mimeType {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
