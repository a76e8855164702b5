package integration

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProviderWooCommerce is the provider tag of events sent by the commerce platform
const ProviderWooCommerce = "woocommerce"

// WebhookStatus represents the processing state of a webhook event
type WebhookStatus string

const (
	WebhookStatusReceived  WebhookStatus = "received"
	WebhookStatusProcessed WebhookStatus = "processed"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// IsValid returns true if the webhook status is valid
func (s WebhookStatus) IsValid() bool {
	switch s {
	case WebhookStatusReceived, WebhookStatusProcessed, WebhookStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of WebhookStatus
func (s WebhookStatus) String() string {
	return string(s)
}

// TopicKind is the reconciliation route selected by an event topic
type TopicKind int

const (
	// TopicKindUnknown topics are left untouched by the processor
	TopicKindUnknown TopicKind = iota
	TopicKindOrder
	TopicKindProduct
)

// HandledTopicPrefixes are the topic prefixes ClassifyTopic routes to a reconciler
func HandledTopicPrefixes() []string {
	return []string{"order.", "product."}
}

// ClassifyTopic routes a topic by its prefix: "order." and "product."
func ClassifyTopic(topic string) TopicKind {
	switch {
	case strings.HasPrefix(topic, "order."):
		return TopicKindOrder
	case strings.HasPrefix(topic, "product."):
		return TopicKindProduct
	default:
		return TopicKindUnknown
	}
}

// WebhookEvent is an inbound platform notification.
// It is created by the receiving endpoint with status received and from then
// on mutated only by the webhook processor. Failed events stay failed.
type WebhookEvent struct {
	ID          uuid.UUID
	Provider    string
	Topic       string
	StoreID     uuid.UUID
	Payload     []byte
	Status      WebhookStatus
	Attempts    int
	Error       *string
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewWebhookEvent creates a received event
func NewWebhookEvent(provider, topic string, storeID uuid.UUID, payload []byte) *WebhookEvent {
	now := time.Now().UTC()
	return &WebhookEvent{
		ID:        uuid.New(),
		Provider:  provider,
		Topic:     topic,
		StoreID:   storeID,
		Payload:   payload,
		Status:    WebhookStatusReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Kind returns the reconciliation route for the event topic
func (e *WebhookEvent) Kind() TopicKind {
	return ClassifyTopic(e.Topic)
}

// MarkProcessed records a successful reconciliation
func (e *WebhookEvent) MarkProcessed(now time.Time) error {
	if e.Status != WebhookStatusReceived {
		return ErrInvalidEventState
	}
	e.Status = WebhookStatusProcessed
	e.Attempts++
	e.Error = nil
	e.ProcessedAt = &now
	e.UpdatedAt = now
	return nil
}

// MarkFailed records a failed reconciliation. processedAt stays unset.
func (e *WebhookEvent) MarkFailed(cause error, now time.Time) error {
	if e.Status != WebhookStatusReceived {
		return ErrInvalidEventState
	}
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	e.Status = WebhookStatusFailed
	e.Attempts++
	e.Error = &msg
	e.UpdatedAt = now
	return nil
}
