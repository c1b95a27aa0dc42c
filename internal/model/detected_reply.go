// internal/model/detected_reply.go
package model

import "time"

// DetectedReply is produced by the reply detector. When correlation fails,
// the row is persisted with Matched=false and nil campaign/contact so it can
// be reviewed manually instead of guessed at.
type DetectedReply struct {
	ID                int       `db:"id" json:"id"`
	CampaignID        *int      `db:"campaign_id" json:"campaign_id,omitempty"`
	ContactID         *int      `db:"contact_id" json:"contact_id,omitempty"`
	OriginalMessageID string    `db:"original_message_id" json:"original_message_id"`
	ReplyMessageID    string    `db:"reply_message_id" json:"reply_message_id"`
	Subject           string    `db:"subject" json:"subject"`
	Body              string    `db:"body" json:"body"`
	SenderEmail       string    `db:"sender_email" json:"sender_email"`
	Matched           bool      `db:"matched" json:"matched"`
	ReceivedAt        time.Time `db:"received_at" json:"received_at"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
