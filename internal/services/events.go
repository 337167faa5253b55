package services

import (
	"context"

	"go.uber.org/zap"
)

// EventPublisher publishes domain events for downstream consumers.
type EventPublisher interface {
	PublishJSON(ctx context.Context, event string, v any) error
}

// publishEvent is best effort: the write it announces has already succeeded.
func publishEvent(ctx context.Context, events EventPublisher, logger *zap.Logger, name string, payload any) {
	if events == nil {
		return
	}
	if err := events.PublishJSON(ctx, name, payload); err != nil {
		logger.Warn("publish event failed", zap.String("event", name), zap.Error(err))
	}
}

// NGORegisteredEvent is the payload of an ngo.registered event.
type NGORegisteredEvent struct {
	NGOID         string `json:"ngo_id"`
	FieldWorkerID string `json:"field_worker_id"`
	NGOName       string `json:"ngo_name"`
	ContactEmail  string `json:"contact_email"`
	FailedUploads int    `json:"failed_uploads"`
}

// SiteSubmittedEvent is the payload of a site.submitted event. Consumers
// schedule NDVI and carbon estimation from it.
type SiteSubmittedEvent struct {
	SiteID         string  `json:"site_id"`
	FieldWorkerID  string  `json:"field_worker_id"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Area           float64 `json:"area"`
	PlantationType string  `json:"plantation_type"`
	HasImage       bool    `json:"has_image"`
}
