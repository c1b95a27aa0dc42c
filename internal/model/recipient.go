// internal/model/recipient.go
package model

import "time"

// Recipient statuses. A recipient is terminal once it can receive no further
// sequence sends.
const (
	RecipientPending      = "pending"
	RecipientInProgress   = "in_progress"
	RecipientCompleted    = "completed"
	RecipientFailed       = "failed"
	RecipientBounced      = "bounced"
	RecipientReplied      = "replied"
	RecipientUnsubscribed = "unsubscribed"
)

// CampaignRecipient tracks one contact through a campaign's send sequence.
// SequenceStartedAt is immutable once set: every subsequent send time is
// derived from it plus the message's day offset, never from the clock at
// send time.
type CampaignRecipient struct {
	ID                 int        `db:"id" json:"id"`
	CampaignID         int        `db:"campaign_id" json:"campaign_id"`
	ContactID          int        `db:"contact_id" json:"contact_id"`
	Status             string     `db:"status" json:"status"`
	CurrentEmailNumber int        `db:"current_email_number" json:"current_email_number"`
	TotalEmails        int        `db:"total_emails" json:"total_emails"`
	SequenceStartedAt  *time.Time `db:"sequence_started_at" json:"sequence_started_at,omitempty"`
	NextEmailSendAt    *time.Time `db:"next_email_send_at" json:"next_email_send_at,omitempty"`
	LastEmailSentAt    *time.Time `db:"last_email_sent_at" json:"last_email_sent_at,omitempty"`
	LastError          string     `db:"last_error" json:"last_error,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

func RecipientTerminal(status string) bool {
	switch status {
	case RecipientCompleted, RecipientFailed, RecipientBounced, RecipientReplied, RecipientUnsubscribed:
		return true
	}
	return false
}
