package repository

import (
	"database/sql"

	"github.com/unclebandit/outreach-backend/internal/model"
)

type SequenceRepositoryInterface interface {
	// GetByOrdinal returns nil when the recipient's sequence has no message at
	// that ordinal (exhausted or never built).
	GetByOrdinal(campaignID, contactID, ordinal int) (*model.SequenceMessage, error)
	CountForContact(campaignID, contactID int) (int, error)
	// CountRecipientsWithoutSequence counts attached recipients that have no
	// pre-built messages at all; used by launch validation.
	CountRecipientsWithoutSequence(campaignID int) (int, error)
}

type SequenceRepository struct {
	DB *sql.DB
}

func (r *SequenceRepository) GetByOrdinal(campaignID, contactID, ordinal int) (*model.SequenceMessage, error) {
	var m model.SequenceMessage
	err := r.DB.QueryRow(`
        SELECT id, campaign_id, contact_id, ordinal, offset_days, subject, body, created_at
        FROM sequence_messages
        WHERE campaign_id=$1 AND contact_id=$2 AND ordinal=$3
    `, campaignID, contactID, ordinal).Scan(
		&m.ID, &m.CampaignID, &m.ContactID, &m.Ordinal, &m.OffsetDays, &m.Subject, &m.Body, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *SequenceRepository) CountForContact(campaignID, contactID int) (int, error) {
	var n int
	err := r.DB.QueryRow(
		`SELECT COUNT(*) FROM sequence_messages WHERE campaign_id=$1 AND contact_id=$2`,
		campaignID, contactID).Scan(&n)
	return n, err
}

func (r *SequenceRepository) CountRecipientsWithoutSequence(campaignID int) (int, error) {
	var n int
	err := r.DB.QueryRow(`
        SELECT COUNT(*) FROM campaign_recipients cr
        WHERE cr.campaign_id=$1 AND NOT EXISTS (
            SELECT 1 FROM sequence_messages sm
            WHERE sm.campaign_id = cr.campaign_id AND sm.contact_id = cr.contact_id
        )
    `, campaignID).Scan(&n)
	return n, err
}

var _ SequenceRepositoryInterface = (*SequenceRepository)(nil)
