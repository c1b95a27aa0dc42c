// internal/model/sequence_message.go
package model

import "time"

// SequenceMessage is one pre-rendered step of a recipient's sequence,
// produced ahead of launch and read-only to the worker. Ordinal is 1-based;
// OffsetDays is counted from the recipient's sequence_started_at anchor.
type SequenceMessage struct {
	ID         int       `db:"id" json:"id"`
	CampaignID int       `db:"campaign_id" json:"campaign_id"`
	ContactID  int       `db:"contact_id" json:"contact_id"`
	Ordinal    int       `db:"ordinal" json:"ordinal"`
	OffsetDays int       `db:"offset_days" json:"offset_days"`
	Subject    string    `db:"subject" json:"subject"`
	Body       string    `db:"body" json:"body"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
