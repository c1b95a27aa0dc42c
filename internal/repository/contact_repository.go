package repository

import (
	"database/sql"

	"github.com/unclebandit/outreach-backend/internal/model"
)

// ContactRepositoryInterface is the read-only accessor the worker and
// renderer need; contact CRUD lives elsewhere.
type ContactRepositoryInterface interface {
	GetByID(ownerID, id int) (*model.Contact, error)
}

type ContactRepository struct {
	DB *sql.DB
}

func (r *ContactRepository) GetByID(ownerID, id int) (*model.Contact, error) {
	var c model.Contact
	err := r.DB.QueryRow(`
        SELECT id, owner_id, email, first_name, last_name, company
        FROM contacts WHERE id=$1 AND owner_id=$2
    `, id, ownerID).Scan(&c.ID, &c.OwnerID, &c.Email, &c.FirstName, &c.LastName, &c.Company)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
