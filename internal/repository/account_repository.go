package repository

import (
	"database/sql"

	"github.com/unclebandit/outreach-backend/internal/model"
)

type AccountRepositoryInterface interface {
	GetByID(ownerID, id int) (*model.SendingAccount, error)
	// ListActiveMailboxes returns every active account the reply detector
	// should poll.
	ListActiveMailboxes() ([]model.SendingAccount, error)
}

type AccountRepository struct {
	DB *sql.DB
}

const accountColumns = `id, owner_id, email, display_name, status, imap_capable, verified_at, created_at`

func (r *AccountRepository) GetByID(ownerID, id int) (*model.SendingAccount, error) {
	var a model.SendingAccount
	err := r.DB.QueryRow(
		`SELECT `+accountColumns+` FROM sending_accounts WHERE id=$1 AND owner_id=$2`,
		id, ownerID).Scan(
		&a.ID, &a.OwnerID, &a.Email, &a.DisplayName, &a.Status, &a.IMAPCapable, &a.VerifiedAt, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) ListActiveMailboxes() ([]model.SendingAccount, error) {
	rows, err := r.DB.Query(
		`SELECT ` + accountColumns + ` FROM sending_accounts WHERE status='active' AND imap_capable`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []model.SendingAccount{}
	for rows.Next() {
		var a model.SendingAccount
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Email, &a.DisplayName, &a.Status,
			&a.IMAPCapable, &a.VerifiedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

var _ AccountRepositoryInterface = (*AccountRepository)(nil)
