// internal/model/contact.go
package model

type Contact struct {
	ID        int    `db:"id" json:"id"`
	OwnerID   int    `db:"owner_id" json:"owner_id"`
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Company   string `db:"company" json:"company"`
}
