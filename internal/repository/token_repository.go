package repository

import (
	"database/sql"

	"github.com/google/uuid"
)

type TokenRepositoryInterface interface {
	// CreateUnsubscribeToken mints a token for one (campaign, contact) pair
	// and returns it for embedding in the rendered body.
	CreateUnsubscribeToken(campaignID, contactID int) (string, error)
}

type TokenRepository struct {
	DB *sql.DB
}

func (r *TokenRepository) CreateUnsubscribeToken(campaignID, contactID int) (string, error) {
	token := uuid.NewString()
	_, err := r.DB.Exec(`
        INSERT INTO unsubscribe_tokens (token, campaign_id, contact_id, created_at)
        VALUES ($1, $2, $3, NOW())
    `, token, campaignID, contactID)
	if err != nil {
		return "", err
	}
	return token, nil
}

var _ TokenRepositoryInterface = (*TokenRepository)(nil)
