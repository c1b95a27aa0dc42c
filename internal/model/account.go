// internal/model/account.go
package model

import "time"

const (
	AccountActive   = "active"
	AccountDisabled = "disabled"
)

// SendingAccount is a connected mailbox used both for outbound sends and,
// when IMAPCapable, for inbound reply polling.
type SendingAccount struct {
	ID          int        `db:"id" json:"id"`
	OwnerID     int        `db:"owner_id" json:"owner_id"`
	Email       string     `db:"email" json:"email"`
	DisplayName string     `db:"display_name" json:"display_name"`
	Status      string     `db:"status" json:"status"`
	IMAPCapable bool       `db:"imap_capable" json:"imap_capable"`
	VerifiedAt  *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
