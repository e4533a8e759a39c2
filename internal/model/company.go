package model

import (
	"github.com/google/uuid"
)

type Company struct {
	Base
	Name     string    `db:"name" json:"name"`
	OwnerID  uuid.UUID `db:"owner_id" json:"owner_id"`
	IsActive bool      `db:"is_active" json:"is_active"`
	Language string    `db:"language" json:"language"`
	Currency string    `db:"currency" json:"currency"`

	// Outbound mail credentials; empty host means the shared default connection.
	MailHost     string `db:"mail_host" json:"mail_host,omitempty"`
	MailPort     int    `db:"mail_port" json:"mail_port,omitempty"`
	MailUser     string `db:"mail_user" json:"mail_user,omitempty"`
	MailPassword string `db:"mail_password" json:"-"`
	MailFrom     string `db:"mail_from" json:"mail_from,omitempty"`
}

// HasMailCredentials reports whether the company sends through its own SMTP server.
func (c *Company) HasMailCredentials() bool {
	return c.MailHost != ""
}

func (c *Company) IsOwner(userID uuid.UUID) bool {
	return c.OwnerID == userID
}

func (c *Company) Ref() Ref {
	return RefTo(KindCompany, c.ID)
}

type CreateCompanyRequest struct {
	Name     string `json:"name" binding:"required,max=120"`
	Language string `json:"language" binding:"omitempty,bcp47_language_tag"`
}

type UpdateCompanyRequest struct {
	Name         *string `json:"name" binding:"omitempty,max=120"`
	Language     *string `json:"language" binding:"omitempty,bcp47_language_tag"`
	MailHost     *string `json:"mail_host"`
	MailPort     *int    `json:"mail_port" binding:"omitempty,min=1,max=65535"`
	MailUser     *string `json:"mail_user"`
	MailPassword *string `json:"mail_password"`
	MailFrom     *string `json:"mail_from" binding:"omitempty,email"`
}
