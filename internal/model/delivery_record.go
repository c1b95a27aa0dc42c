// internal/model/delivery_record.go
package model

import "time"

const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"

	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// DeliveryRecord is the audit row for one transport call. For outbound sends
// ProviderMessageID is the correlation key replies are matched against.
type DeliveryRecord struct {
	ID                int       `db:"id" json:"id"`
	CampaignID        int       `db:"campaign_id" json:"campaign_id"`
	ContactID         int       `db:"contact_id" json:"contact_id"`
	Direction         string    `db:"direction" json:"direction"`
	SendingAccountID  int       `db:"sending_account_id" json:"sending_account_id"`
	ProviderMessageID string    `db:"provider_message_id" json:"provider_message_id"`
	Status            string    `db:"status" json:"status"`
	Diagnostics       string    `db:"diagnostics" json:"diagnostics,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
