package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/outreach-backend/internal/model"
)

type DeliveryRepositoryInterface interface {
	Create(rec *model.DeliveryRecord) error
	// FindOutbound correlates a reply candidate: the provider message id must
	// match an outbound record on the same sending account. Returns nil when
	// nothing matches.
	FindOutbound(providerMessageID string, sendingAccountID int) (*model.DeliveryRecord, error)
	StatsByCampaign(campaignID int) (map[string]int, error)
}

type DeliveryRepository struct {
	DB *sql.DB
}

func (r *DeliveryRepository) Create(rec *model.DeliveryRecord) error {
	rec.CreatedAt = time.Now()
	return r.DB.QueryRow(`
        INSERT INTO delivery_records (campaign_id, contact_id, direction, sending_account_id, provider_message_id, status, diagnostics, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `, rec.CampaignID, rec.ContactID, rec.Direction, rec.SendingAccountID,
		rec.ProviderMessageID, rec.Status, rec.Diagnostics, rec.CreatedAt).Scan(&rec.ID)
}

func (r *DeliveryRepository) FindOutbound(providerMessageID string, sendingAccountID int) (*model.DeliveryRecord, error) {
	var rec model.DeliveryRecord
	err := r.DB.QueryRow(`
        SELECT id, campaign_id, contact_id, direction, sending_account_id, provider_message_id, status, diagnostics, created_at
        FROM delivery_records
        WHERE provider_message_id=$1 AND sending_account_id=$2 AND direction='outbound'
    `, providerMessageID, sendingAccountID).Scan(
		&rec.ID, &rec.CampaignID, &rec.ContactID, &rec.Direction, &rec.SendingAccountID,
		&rec.ProviderMessageID, &rec.Status, &rec.Diagnostics, &rec.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *DeliveryRepository) StatsByCampaign(campaignID int) (map[string]int, error) {
	rows, err := r.DB.Query(
		`SELECT status, COUNT(*) FROM delivery_records WHERE campaign_id=$1 AND direction='outbound' GROUP BY status`,
		campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"sent": 0, "failed": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ DeliveryRepositoryInterface = (*DeliveryRepository)(nil)
