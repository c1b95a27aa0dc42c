package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/outreach-backend/internal/model"
)

// EventRepositoryInterface appends to the lifecycle event log. The table is
// append-only; there is no update path.
type EventRepositoryInterface interface {
	Append(ev *model.LifecycleEvent) error
}

type EventRepository struct {
	DB *sql.DB
}

func (r *EventRepository) Append(ev *model.LifecycleEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	return r.DB.QueryRow(`
        INSERT INTO lifecycle_events (campaign_id, contact_id, type, metadata, occurred_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `, ev.CampaignID, ev.ContactID, ev.Type, ev.Metadata, ev.OccurredAt).Scan(&ev.ID)
}

var _ EventRepositoryInterface = (*EventRepository)(nil)
