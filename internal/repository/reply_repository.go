package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/outreach-backend/internal/model"
)

type ReplyRepositoryInterface interface {
	// Create persists a detected reply. The detector re-scans a lookback
	// window every poll, so reply_message_id is unique and a duplicate insert
	// is a no-op; the return value reports whether the row is new.
	Create(reply *model.DetectedReply) (bool, error)
}

type ReplyRepository struct {
	DB *sql.DB
}

func (r *ReplyRepository) Create(reply *model.DetectedReply) (bool, error) {
	reply.CreatedAt = time.Now()
	res, err := r.DB.Exec(`
        INSERT INTO detected_replies
            (campaign_id, contact_id, original_message_id, reply_message_id, subject, body, sender_email, matched, received_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (reply_message_id) DO NOTHING
    `, reply.CampaignID, reply.ContactID, reply.OriginalMessageID, reply.ReplyMessageID,
		reply.Subject, reply.Body, reply.SenderEmail, reply.Matched, reply.ReceivedAt, reply.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

var _ ReplyRepositoryInterface = (*ReplyRepository)(nil)
