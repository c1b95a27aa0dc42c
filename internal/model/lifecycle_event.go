// internal/model/lifecycle_event.go
package model

import "time"

// Lifecycle event types. The events table is append-only.
const (
	EventSent         = "sent"
	EventBounced      = "bounced"
	EventOpened       = "opened"
	EventReplied      = "replied"
	EventUnsubscribed = "unsubscribed"
)

type LifecycleEvent struct {
	ID         int       `db:"id" json:"id"`
	CampaignID int       `db:"campaign_id" json:"campaign_id"`
	ContactID  int       `db:"contact_id" json:"contact_id"`
	Type       string    `db:"type" json:"type"`
	Metadata   string    `db:"metadata" json:"metadata,omitempty"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}
