package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/outreach-backend/internal/model"
)

type RecipientRepositoryInterface interface {
	Get(campaignID, contactID int) (*model.CampaignRecipient, error)
	ListPending(campaignID int) ([]*model.CampaignRecipient, error)
	CountByCampaign(campaignID int) (int, error)

	// SeedProgress initializes sequence tracking at launch. sequence_started_at
	// is only ever written here, and only when still NULL: the anchor is
	// immutable once set.
	SeedProgress(campaignID, contactID, totalEmails int, startedAt time.Time) error

	// AdvanceProgress moves the cursor to the next ordinal after a successful
	// send and records when the following message is due.
	AdvanceProgress(campaignID, contactID, nextEmailNumber int, nextSendAt, sentAt time.Time) error

	MarkCompleted(campaignID, contactID int, sentAt *time.Time) error
	MarkFailed(campaignID, contactID int, reason string) error

	// MarkReplied flips a recipient to replied, but only from a state that can
	// still receive sends. Returns false when the recipient was already
	// terminal.
	MarkReplied(campaignID, contactID int) (bool, error)
}

type RecipientRepository struct {
	DB *sql.DB
}

const recipientColumns = `id, campaign_id, contact_id, status, current_email_number, total_emails,
    sequence_started_at, next_email_send_at, last_email_sent_at, last_error, created_at, updated_at`

func scanRecipient(row interface{ Scan(...any) error }) (*model.CampaignRecipient, error) {
	var rec model.CampaignRecipient
	var lastError sql.NullString
	err := row.Scan(&rec.ID, &rec.CampaignID, &rec.ContactID, &rec.Status,
		&rec.CurrentEmailNumber, &rec.TotalEmails, &rec.SequenceStartedAt,
		&rec.NextEmailSendAt, &rec.LastEmailSentAt, &lastError,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.LastError = lastError.String
	return &rec, nil
}

func (r *RecipientRepository) Get(campaignID, contactID int) (*model.CampaignRecipient, error) {
	rec, err := scanRecipient(r.DB.QueryRow(
		`SELECT `+recipientColumns+` FROM campaign_recipients WHERE campaign_id=$1 AND contact_id=$2`,
		campaignID, contactID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (r *RecipientRepository) ListPending(campaignID int) ([]*model.CampaignRecipient, error) {
	rows, err := r.DB.Query(
		`SELECT `+recipientColumns+` FROM campaign_recipients WHERE campaign_id=$1 AND status='pending' ORDER BY id`,
		campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []*model.CampaignRecipient{}
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

func (r *RecipientRepository) CountByCampaign(campaignID int) (int, error) {
	var n int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM campaign_recipients WHERE campaign_id=$1`, campaignID).Scan(&n)
	return n, err
}

func (r *RecipientRepository) SeedProgress(campaignID, contactID, totalEmails int, startedAt time.Time) error {
	_, err := r.DB.Exec(`
        UPDATE campaign_recipients SET
            current_email_number = 1,
            total_emails = $3,
            sequence_started_at = COALESCE(sequence_started_at, $4),
            next_email_send_at = $4,
            updated_at = NOW()
        WHERE campaign_id=$1 AND contact_id=$2
    `, campaignID, contactID, totalEmails, startedAt)
	return err
}

func (r *RecipientRepository) AdvanceProgress(campaignID, contactID, nextEmailNumber int, nextSendAt, sentAt time.Time) error {
	_, err := r.DB.Exec(`
        UPDATE campaign_recipients SET
            status = 'in_progress',
            current_email_number = $3,
            next_email_send_at = $4,
            last_email_sent_at = $5,
            updated_at = NOW()
        WHERE campaign_id=$1 AND contact_id=$2
    `, campaignID, contactID, nextEmailNumber, nextSendAt, sentAt)
	return err
}

func (r *RecipientRepository) MarkCompleted(campaignID, contactID int, sentAt *time.Time) error {
	_, err := r.DB.Exec(`
        UPDATE campaign_recipients SET
            status = 'completed',
            next_email_send_at = NULL,
            last_email_sent_at = COALESCE($3, last_email_sent_at),
            updated_at = NOW()
        WHERE campaign_id=$1 AND contact_id=$2
    `, campaignID, contactID, sentAt)
	return err
}

func (r *RecipientRepository) MarkFailed(campaignID, contactID int, reason string) error {
	_, err := r.DB.Exec(`
        UPDATE campaign_recipients SET status='failed', last_error=$3, updated_at=NOW()
        WHERE campaign_id=$1 AND contact_id=$2
    `, campaignID, contactID, reason)
	return err
}

func (r *RecipientRepository) MarkReplied(campaignID, contactID int) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE campaign_recipients SET status='replied', next_email_send_at=NULL, updated_at=NOW()
        WHERE campaign_id=$1 AND contact_id=$2 AND status IN ('pending','in_progress')
    `, campaignID, contactID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
