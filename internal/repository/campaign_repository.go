package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"

	"github.com/lib/pq"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(ownerID, id int) (*model.Campaign, error)
	// GetByIDAny loads without owner scoping; the worker owns no user context.
	GetByIDAny(id int) (*model.Campaign, error)
	ListCampaigns(ownerID, offset, limit int, status string) ([]*model.Campaign, int, error)

	// TransitionStatus performs the conditional lifecycle update. It reports
	// false when the row exists but was not in any of the allowed source
	// states; a missing row surfaces as ErrCampaignNotFound.
	TransitionStatus(ownerID, id int, to string, from ...string) (bool, error)

	// CompleteIfAllTerminal flips running -> completed once no recipient is
	// still pending or in progress. Safe to call repeatedly and concurrently:
	// at most one caller updates the row.
	CompleteIfAllTerminal(campaignID int) (bool, error)

	// DeleteCascade removes the campaign and all dependent rows in one
	// transaction. The caller is responsible for checking the status gate.
	DeleteCascade(id int) error
}

type CampaignRepository struct {
	DB *sql.DB
}

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO campaigns (owner_id, name, status, subject, body, sending_account_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.OwnerID, c.Name, c.Status, c.Subject, c.Body, c.SendingAccountID, c.CreatedAt).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(ownerID, id int) (*model.Campaign, error) {
	return r.get(`SELECT id, owner_id, name, status, subject, body, sending_account_id, created_at, updated_at
        FROM campaigns WHERE id=$1 AND owner_id=$2`, id, id, ownerID)
}

func (r *CampaignRepository) GetByIDAny(id int) (*model.Campaign, error) {
	return r.get(`SELECT id, owner_id, name, status, subject, body, sending_account_id, created_at, updated_at
        FROM campaigns WHERE id=$1`, id, id)
}

func (r *CampaignRepository) get(query string, id int, args ...any) (*model.Campaign, error) {
	var c model.Campaign
	err := r.DB.QueryRow(query, args...).Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.Status, &c.Subject, &c.Body,
		&c.SendingAccountID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(ownerID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT id, owner_id, name, status, subject, body, sending_account_id, created_at, updated_at
        FROM campaigns WHERE owner_id=$1`
	args := []any{ownerID}
	argPos := 2
	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Status, &c.Subject, &c.Body,
			&c.SendingAccountID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE owner_id=$1`
	countArgs := []any{ownerID}
	if status != "" {
		countQuery += ` AND status=$2`
		countArgs = append(countArgs, status)
	}
	var total int
	if err := r.DB.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

func (r *CampaignRepository) TransitionStatus(ownerID, id int, to string, from ...string) (bool, error) {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND owner_id=$3 AND status = ANY($4)`
	res, err := r.DB.Exec(query, to, id, ownerID, pq.Array(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	// Zero rows: distinguish illegal transition from not-found.
	if _, err := r.GetByID(ownerID, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *CampaignRepository) CompleteIfAllTerminal(campaignID int) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE campaigns SET status='completed', updated_at=NOW()
        WHERE id=$1 AND status='running'
          AND NOT EXISTS (
              SELECT 1 FROM campaign_recipients
              WHERE campaign_id=$1 AND status IN ('pending','in_progress')
          )
    `, campaignID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CampaignRepository) DeleteCascade(id int) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Dependent rows first; jobs are matched by payload since the queue
	// itself knows nothing about campaigns.
	deletes := []string{
		`DELETE FROM unsubscribe_tokens WHERE campaign_id=$1`,
		`DELETE FROM detected_replies WHERE campaign_id=$1`,
		`DELETE FROM lifecycle_events WHERE campaign_id=$1`,
		`DELETE FROM delivery_records WHERE campaign_id=$1`,
		`DELETE FROM sequence_messages WHERE campaign_id=$1`,
		`DELETE FROM campaign_recipients WHERE campaign_id=$1`,
		`DELETE FROM jobs WHERE queue='campaign_sends' AND (payload->>'campaign_id')::int = $1`,
		`DELETE FROM campaigns WHERE id=$1`,
	}
	for _, q := range deletes {
		if _, err := tx.Exec(q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
