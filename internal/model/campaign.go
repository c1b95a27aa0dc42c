// internal/model/campaign.go
package model

import "time"

// Campaign lifecycle statuses. Terminal statuses have no outgoing transition.
const (
	CampaignDraft     = "draft"
	CampaignReady     = "ready"
	CampaignRunning   = "running"
	CampaignPaused    = "paused"
	CampaignCancelled = "cancelled"
	CampaignCompleted = "completed"
)

type Campaign struct {
	ID               int        `db:"id" json:"id"`
	OwnerID          int        `db:"owner_id" json:"owner_id"`
	Name             string     `db:"name" json:"name"`
	Status           string     `db:"status" json:"status"`
	Subject          string     `db:"subject" json:"subject"`
	Body             string     `db:"body" json:"body"`
	SendingAccountID *int       `db:"sending_account_id" json:"sending_account_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// IsTerminal reports whether no further transition is allowed.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCancelled || c.Status == CampaignCompleted
}
